// Package services – FolderService
//
// This file implements the FolderService, which manages the lifecycle of
// registered document folders. It validates and normalizes display names,
// enforces ownership rules, and coordinates repository operations for
// registering folders, polling indexing progress, triggering re-indexing and
// deleting. Indexing itself is asynchronous: registration only enqueues a
// durable job for the background workers.
//
// Service-level errors (e.g., ErrFolderNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/repo"
)

// FolderStatus is the polling view of one folder's indexing progress.
type FolderStatus struct {
	Status       string `json:"status"`
	FilesTotal   int    `json:"files_total"`
	FilesIndexed int    `json:"files_indexed"`
	LastError    string `json:"last_error,omitempty"`
}

// FolderService provides folder-level operations such as registering,
// listing, polling and deleting folders. It enforces naming rules and
// ownership constraints.
type FolderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// NameMaxLen caps stored display names by rune length.
	NameMaxLen int
}

// NewFolderService constructs a FolderService with sane naming defaults.
func NewFolderService(db *gorm.DB) *FolderService {
	return &FolderService{DB: db, NameMaxLen: 120}
}

// Register creates a folder owned by ownerID pointing at providerRef and
// enqueues its first indexing run. The folder starts in "pending" and the
// caller polls Status until it settles.
func (s *FolderService) Register(ctx context.Context, ownerID, providerRef, name string) (*domain.Folder, error) {
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return nil, errors.New("provider reference is empty")
	}
	name = normalizeName(name)
	if name == "" {
		name = providerRef
	}
	name = s.clip(name)

	var folder *domain.Folder
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := repo.CreateFolder(ctx, tx, ownerID, providerRef, name)
		if err != nil {
			return err
		}
		if _, err := repo.EnqueueIndexJob(ctx, tx, f.ID, ownerID); err != nil {
			return err
		}
		folder = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// List returns all folders belonging to the user, most recent first.
func (s *FolderService) List(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	return repo.ListFolders(ctx, s.DB, ownerID)
}

// Get fetches one folder, ensuring it belongs to the user.
func (s *FolderService) Get(ctx context.Context, ownerID, id string) (*domain.Folder, error) {
	f, err := repo.GetFolder(ctx, s.DB, id, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return f, nil
}

// Status returns the indexing progress snapshot used by clients to poll.
func (s *FolderService) Status(ctx context.Context, ownerID, id string) (*FolderStatus, error) {
	f, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return &FolderStatus{
		Status:       f.IndexStatus,
		FilesTotal:   f.FilesTotal,
		FilesIndexed: f.FilesIndexed,
		LastError:    f.LastError,
	}, nil
}

// Reindex queues a fresh indexing run for the folder. When a run is already
// queued or in flight the existing job is returned instead of a new one, so
// repeated requests collapse onto the same run.
func (s *FolderService) Reindex(ctx context.Context, ownerID, id string) (*domain.IndexJob, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}

	if job, err := repo.ActiveIndexJob(ctx, s.DB, id); err == nil {
		return job, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var job *domain.IndexJob
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.SetFolderStatus(ctx, tx, id, domain.FolderStatusPending, ""); err != nil {
			return err
		}
		j, err := repo.EnqueueIndexJob(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a folder and everything under it. Deletion is refused with
// ErrFolderIndexing while an indexing run holds the folder.
func (s *FolderService) Delete(ctx context.Context, ownerID, id string) error {
	deleted, indexing, err := repo.DeleteFolder(ctx, s.DB, id, ownerID)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}
	if indexing {
		return ErrFolderIndexing
	}
	return ErrFolderNotFound
}

// clip truncates a folder name to the configured maximum rune length.
func (s *FolderService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
