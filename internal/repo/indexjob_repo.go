// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the IndexJob
// queue that drives background folder indexing.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// EnqueueIndexJob inserts a pending job for a folder, available immediately.
func EnqueueIndexJob(ctx context.Context, db *gorm.DB, folderID, ownerID string) (*domain.IndexJob, error) {
	now := time.Now().UTC()
	j := &domain.IndexJob{
		ID:          uuid.NewString(),
		FolderID:    folderID,
		OwnerID:     ownerID,
		Status:      domain.JobStatusPending,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// ClaimIndexJobs selects up to batch due pending jobs and marks them
// processing inside one transaction. On Postgres the select takes
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same row.
func ClaimIndexJobs(ctx context.Context, db *gorm.DB, now time.Time, batch int) ([]domain.IndexJob, error) {
	if batch <= 0 {
		batch = 10
	}
	var jobs []domain.IndexJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := "SELECT * FROM index_jobs WHERE status = ? AND available_at <= ? ORDER BY created_at ASC LIMIT ?"
		if isPostgres(tx) {
			query += " FOR UPDATE SKIP LOCKED"
		}
		if err := tx.Raw(query, domain.JobStatusPending, now, batch).Scan(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		return tx.Model(&domain.IndexJob{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     domain.JobStatusProcessing,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].Status = domain.JobStatusProcessing
	}
	return jobs, nil
}

// RescheduleIndexJob returns a job to pending with an incremented retry
// count, deferred until availableAt.
func RescheduleIndexJob(ctx context.Context, db *gorm.DB, id string, retryCount int, availableAt time.Time, lastError string) error {
	return db.WithContext(ctx).
		Model(&domain.IndexJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.JobStatusPending,
			"retry_count":  retryCount,
			"available_at": availableAt,
			"last_error":   lastError,
			"updated_at":   time.Now().UTC(),
		}).Error
}

// FinishIndexJob moves a job to a terminal status (done or failed).
func FinishIndexJob(ctx context.Context, db *gorm.DB, id, status, lastError string) error {
	return db.WithContext(ctx).
		Model(&domain.IndexJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ActiveIndexJob returns the newest pending or processing job of a folder,
// or ErrNotFound. A second index request observes this run instead of
// starting its own.
func ActiveIndexJob(ctx context.Context, db *gorm.DB, folderID string) (*domain.IndexJob, error) {
	var j domain.IndexJob
	err := db.WithContext(ctx).
		Where("folder_id = ? AND status IN ?", folderID, []string{domain.JobStatusPending, domain.JobStatusProcessing}).
		Order("created_at desc").
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}
