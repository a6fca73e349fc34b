// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the File model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// CreateFile inserts a new file row in status "pending".
func CreateFile(ctx context.Context, db *gorm.DB, folderID, providerFileID, name, mimeType string) (*domain.File, error) {
	f := &domain.File{
		ID:             uuid.NewString(),
		FolderID:       folderID,
		ProviderFileID: providerFileID,
		Name:           name,
		MimeType:       mimeType,
		IndexStatus:    domain.FileStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// ListFiles returns the files of a folder ordered by name for deterministic
// iteration.
func ListFiles(ctx context.Context, db *gorm.DB, folderID string) ([]domain.File, error) {
	var out []domain.File
	err := db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("name ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MarkFileIndexed records a successful per-file indexing outcome.
func MarkFileIndexed(ctx context.Context, db *gorm.DB, id string) error {
	return setFileStatus(ctx, db, id, domain.FileStatusIndexed, "")
}

// MarkFileFailed records a terminal per-file failure. The file still counts
// as processed for folder progress; only the error text distinguishes it.
func MarkFileFailed(ctx context.Context, db *gorm.DB, id, reason string) error {
	return setFileStatus(ctx, db, id, domain.FileStatusFailed, reason)
}

func setFileStatus(ctx context.Context, db *gorm.DB, id, status, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.File{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"index_status": status,
			"index_error":  reason,
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

// DeleteFolderFiles removes all file rows (and, via FK cascade, chunks) of a
// folder. Used at the start of a re-indexing run so the chunk set is
// replaced wholesale.
func DeleteFolderFiles(ctx context.Context, db *gorm.DB, folderID string) error {
	return db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Delete(&domain.File{}).Error
}
