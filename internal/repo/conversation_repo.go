// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// Error semantics mirror the rest of the package: missing rows surface as
// gorm.ErrRecordNotFound (aliased ErrNotFound), raw DB errors propagate.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// CreateConversation inserts a new conversation row scoped to a folder.
func CreateConversation(ctx context.Context, db *gorm.DB, folderID, title string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		FolderID:  folderID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation by ID, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the conversations of a folder ordered by last
// activity descending (updated_at is bumped on every appended message).
// A limit <= 0 returns the full list.
func ListConversations(ctx context.Context, db *gorm.DB, folderID string, limit int) ([]domain.Conversation, error) {
	q := db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("updated_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Conversation
	err := q.Find(&out).Error
	return out, err
}

// TouchConversation bumps updated_at so listings reflect recent activity.
func TouchConversation(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateConversationTitle renames a conversation. Returns ErrNotFound when
// no row matches.
func UpdateConversationTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
