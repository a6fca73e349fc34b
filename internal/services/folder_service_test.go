package services

import (
	"context"
	"errors"
	"testing"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/repo"
)

func TestFolderService_Register_CreatesPendingAndEnqueues(t *testing.T) {
	db := newServiceDB(t)
	svc := NewFolderService(db)

	f, err := svc.Register(context.Background(), "u1", "bucket/contracts", "  Quarterly   Contracts  ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.Name != "Quarterly Contracts" {
		t.Fatalf("name not normalized: %q", f.Name)
	}
	if f.IndexStatus != domain.FolderStatusPending {
		t.Fatalf("new folder status = %q, want pending", f.IndexStatus)
	}

	var jobs int64
	db.Model(&domain.IndexJob{}).Where("folder_id = ? AND status = ?", f.ID, domain.JobStatusPending).Count(&jobs)
	if jobs != 1 {
		t.Fatalf("expected one queued job, got %d", jobs)
	}
}

func TestFolderService_Register_NameFallsBackToRef(t *testing.T) {
	db := newServiceDB(t)
	svc := NewFolderService(db)

	f, err := svc.Register(context.Background(), "u1", "bucket/docs", "   ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.Name != "bucket/docs" {
		t.Fatalf("blank name must fall back to the reference, got %q", f.Name)
	}

	if _, err := svc.Register(context.Background(), "u1", "  ", "x"); err == nil {
		t.Fatalf("empty provider ref must be rejected")
	}
}

func TestFolderService_Status(t *testing.T) {
	db := newServiceDB(t)
	seedServiceFolder(t, db, "f1", "u1", domain.FolderStatusIndexing)
	db.Model(&domain.Folder{}).Where("id = ?", "f1").
		Updates(map[string]any{"files_total": 4, "files_indexed": 2})

	svc := NewFolderService(db)
	st, err := svc.Status(context.Background(), "u1", "f1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != domain.FolderStatusIndexing || st.FilesTotal != 4 || st.FilesIndexed != 2 {
		t.Fatalf("status snapshot wrong: %+v", st)
	}

	if _, err := svc.Status(context.Background(), "u2", "f1"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("foreign owner must see not found, got %v", err)
	}
	if _, err := svc.Status(context.Background(), "u1", "missing"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("missing folder must be not found, got %v", err)
	}
}

func TestFolderService_Reindex_CollapsesOnActiveJob(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedServiceFolder(t, db, "f1", "u1", domain.FolderStatusReady)

	existing, err := repo.EnqueueIndexJob(ctx, db, "f1", "u1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	svc := NewFolderService(db)
	job, err := svc.Reindex(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if job.ID != existing.ID {
		t.Fatalf("active job must be reused, got new job %s", job.ID)
	}

	var total int64
	db.Model(&domain.IndexJob{}).Count(&total)
	if total != 1 {
		t.Fatalf("duplicate job queued: %d rows", total)
	}
}

func TestFolderService_Reindex_QueuesWhenIdle(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	seedServiceFolder(t, db, "f1", "u1", domain.FolderStatusFailed)

	svc := NewFolderService(db)
	job, err := svc.Reindex(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("new job status = %q", job.Status)
	}

	var folder domain.Folder
	if err := db.First(&folder, "id = ?", "f1").Error; err != nil {
		t.Fatalf("load folder: %v", err)
	}
	if folder.IndexStatus != domain.FolderStatusPending {
		t.Fatalf("reindex must reset the folder to pending, got %q", folder.IndexStatus)
	}
}

func TestFolderService_Delete_Semantics(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := NewFolderService(db)

	seedServiceFolder(t, db, "ready", "u1", domain.FolderStatusReady)
	if err := svc.Delete(ctx, "u1", "ready"); err != nil {
		t.Fatalf("delete ready folder: %v", err)
	}

	seedServiceFolder(t, db, "busy", "u1", domain.FolderStatusIndexing)
	if err := svc.Delete(ctx, "u1", "busy"); !errors.Is(err, ErrFolderIndexing) {
		t.Fatalf("busy folder must conflict, got %v", err)
	}

	if err := svc.Delete(ctx, "u1", "missing"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("missing folder: got %v", err)
	}
	if err := svc.Delete(ctx, "u2", "busy"); !errors.Is(err, ErrFolderNotFound) {
		t.Fatalf("foreign owner must see not found, got %v", err)
	}
}
