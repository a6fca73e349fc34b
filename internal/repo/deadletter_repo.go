// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for dead-letter
// records: tasks that exhausted their retry budget and are retained for
// diagnosis and manual resubmission.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// DeadLetterArgs is the serialized argument set of a dead-lettered task.
type DeadLetterArgs struct {
	FolderID string `json:"folder_id"`
	OwnerID  string `json:"owner_id"`
}

// CreateDeadLetter records a dead-lettered task. Internal diagnostic detail
// (error type, stack) lives only here, never on the folder row.
func CreateDeadLetter(ctx context.Context, db *gorm.DB, taskName string, args DeadLetterArgs, errorType, errorMessage, stack string, retryCount int) (*domain.DeadLetterTask, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	d := &domain.DeadLetterTask{
		ID:           uuid.NewString(),
		TaskName:     taskName,
		Args:         string(payload),
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		Stack:        stack,
		RetryCount:   retryCount,
		FailedAt:     time.Now().UTC(),
	}
	return d, db.WithContext(ctx).Create(d).Error
}

// ListDeadLetters returns dead letters newest first.
func ListDeadLetters(ctx context.Context, db *gorm.DB, limit int) ([]domain.DeadLetterTask, error) {
	var out []domain.DeadLetterTask
	q := db.WithContext(ctx).Order("failed_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ResubmitDeadLetter re-enqueues the original task arguments as a fresh
// index job and removes the dead-letter row. Returns ErrNotFound when the
// record does not exist.
func ResubmitDeadLetter(ctx context.Context, db *gorm.DB, id string) (*domain.IndexJob, error) {
	var job *domain.IndexJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.DeadLetterTask
		if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
			return err
		}
		var args DeadLetterArgs
		if err := json.Unmarshal([]byte(d.Args), &args); err != nil {
			return err
		}
		j := &domain.IndexJob{
			ID:          uuid.NewString(),
			FolderID:    args.FolderID,
			OwnerID:     args.OwnerID,
			Status:      domain.JobStatusPending,
			AvailableAt: time.Now().UTC(),
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if err := tx.Create(j).Error; err != nil {
			return err
		}
		job = j
		return tx.Delete(&domain.DeadLetterTask{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
