// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Folder model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a folder is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Status transitions deserve a note: the folder index status is the
// authoritative per-folder run lock. TryMarkIndexing performs an atomic
// conditional UPDATE, so exactly one caller can move a folder into the
// "indexing" state at a time regardless of process count.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateFolder inserts a new Folder row owned by ownerID in status "pending".
// The folder ID is a randomly generated UUID, and CreatedAt is set to UTC.
func CreateFolder(ctx context.Context, db *gorm.DB, ownerID, providerRef, name string) (*domain.Folder, error) {
	f := &domain.Folder{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		ProviderRef: providerRef,
		Name:        name,
		IndexStatus: domain.FolderStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// GetFolder fetches a single folder by its ID and owner. If the record does
// not exist, it returns ErrNotFound.
func GetFolder(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Folder, error) {
	var f domain.Folder
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFolders returns all folders belonging to ownerID, ordered by creation
// time descending (most recent first).
func ListFolders(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Folder, error) {
	var out []domain.Folder
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// TryMarkIndexing atomically claims the folder for an indexing run. It
// succeeds only when the folder is not already indexing; on success the
// progress counters and the previous error are reset. Returns false when
// another run holds the folder.
func TryMarkIndexing(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("id = ? AND index_status <> ?", id, domain.FolderStatusIndexing).
		Updates(map[string]any{
			"index_status":  domain.FolderStatusIndexing,
			"files_total":   0,
			"files_indexed": 0,
			"last_error":    "",
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetFolderStatus moves the folder to a terminal status with an optional
// user-facing error summary.
func SetFolderStatus(ctx context.Context, db *gorm.DB, id, status, lastError string) error {
	res := db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"index_status": status,
			"last_error":   lastError,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetFolderFilesTotal records the number of files discovered at the provider.
func SetFolderFilesTotal(ctx context.Context, db *gorm.DB, id string, total int) error {
	return db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"files_total": total,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// IncFolderFilesIndexed bumps the processed-files counter by one. The update
// is self-contained so concurrent status readers observe progress mid-run.
func IncFolderFilesIndexed(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"files_indexed": gorm.Expr("files_indexed + 1"),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteFolder hard-deletes a folder unless an indexing run is active.
// It returns (deleted, indexing, error): indexing=true signals the caller to
// answer with a conflict instead of queueing the delete.
func DeleteFolder(ctx context.Context, db *gorm.DB, id, ownerID string) (bool, bool, error) {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND index_status <> ?", id, ownerID, domain.FolderStatusIndexing).
		Delete(&domain.Folder{})
	if res.Error != nil {
		return false, false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, false, nil
	}

	// Distinguish "missing" from "busy indexing".
	var cnt int64
	err := db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Count(&cnt).Error
	if err != nil {
		return false, false, err
	}
	return false, cnt > 0, nil
}

// SweepStaleIndexing fails folders stuck in "indexing" since before cutoff.
// Covers runs whose process crashed without releasing the status lock.
func SweepStaleIndexing(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Folder{}).
		Where("index_status = ? AND updated_at < ?", domain.FolderStatusIndexing, cutoff).
		Updates(map[string]any{
			"index_status": domain.FolderStatusFailed,
			"last_error":   "indexing interrupted; please retry",
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
