package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

func TestCreateDeadLetter_PersistsDiagnostics(t *testing.T) {
	db := newRepoDB(t, &domain.DeadLetterTask{})

	d, err := CreateDeadLetter(context.Background(), db, "index_folder",
		DeadLetterArgs{FolderID: "f1", OwnerID: "u1"},
		"ProviderError", "listing failed: 503", "goroutine 1 [running]: ...", 3)
	if err != nil {
		t.Fatalf("CreateDeadLetter: %v", err)
	}
	if d.ID == "" || d.TaskName != "index_folder" || d.RetryCount != 3 {
		t.Fatalf("unexpected DeadLetterTask fields: %+v", d)
	}

	var got domain.DeadLetterTask
	if err := db.First(&got, "id = ?", d.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ErrorType != "ProviderError" || got.ErrorMessage != "listing failed: 503" || got.Stack == "" {
		t.Fatalf("diagnostics not persisted: %+v", got)
	}
	if got.Args == "" {
		t.Fatalf("args not persisted: %+v", got)
	}
}

func TestListDeadLetters_NewestFirstWithLimit(t *testing.T) {
	db := newRepoDB(t, &domain.DeadLetterTask{})

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"d1", "d2", "d3"} {
		d := domain.DeadLetterTask{
			ID:       id,
			TaskName: "index_folder",
			Args:     `{"folder_id":"f1","owner_id":"u1"}`,
			FailedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.Create(&d).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	list, err := ListDeadLetters(context.Background(), db, 2)
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(list) != 2 || list[0].ID != "d3" || list[1].ID != "d2" {
		t.Fatalf("unexpected list: %#v", list)
	}
}

func TestResubmitDeadLetter_RequeuesAndRemoves(t *testing.T) {
	db := newRepoDB(t, &domain.DeadLetterTask{}, &domain.IndexJob{})
	ctx := context.Background()

	d, err := CreateDeadLetter(ctx, db, "index_folder",
		DeadLetterArgs{FolderID: "f1", OwnerID: "u1"},
		"ProviderError", "listing failed", "", 3)
	if err != nil {
		t.Fatalf("CreateDeadLetter: %v", err)
	}

	job, err := ResubmitDeadLetter(ctx, db, d.ID)
	if err != nil {
		t.Fatalf("ResubmitDeadLetter: %v", err)
	}
	if job.FolderID != "f1" || job.OwnerID != "u1" {
		t.Fatalf("resubmitted job args mismatch: %+v", job)
	}
	if job.Status != domain.JobStatusPending || job.RetryCount != 0 {
		t.Fatalf("resubmitted job must start fresh: %+v", job)
	}

	var nDead int64
	if err := db.Model(&domain.DeadLetterTask{}).Count(&nDead).Error; err != nil {
		t.Fatalf("count dead letters: %v", err)
	}
	if nDead != 0 {
		t.Fatalf("dead letter not removed, %d remain", nDead)
	}

	if _, err := ResubmitDeadLetter(ctx, db, d.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on second resubmit, got %v", err)
	}
}

func TestResubmitDeadLetter_BadArgs(t *testing.T) {
	db := newRepoDB(t, &domain.DeadLetterTask{}, &domain.IndexJob{})

	d := domain.DeadLetterTask{ID: "bad", TaskName: "index_folder", Args: "not json", FailedAt: time.Now().UTC()}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := ResubmitDeadLetter(context.Background(), db, "bad"); err == nil {
		t.Fatalf("expected error for malformed args")
	}

	// The transaction must roll back: the record stays, no job is created.
	var nDead, nJobs int64
	if err := db.Model(&domain.DeadLetterTask{}).Count(&nDead).Error; err != nil {
		t.Fatalf("count dead letters: %v", err)
	}
	if err := db.Model(&domain.IndexJob{}).Count(&nJobs).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if nDead != 1 || nJobs != 0 {
		t.Fatalf("rollback failed: dead=%d jobs=%d", nDead, nJobs)
	}
}
