// Package domain – background indexing jobs and dead letters.
package domain

import "time"

// Index job statuses. A job moves pending → processing → done | pending
// (retry with backoff) and terminally to failed once its retry budget is
// exhausted, at which point a DeadLetterTask row is written.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// IndexJob is a durable unit of background indexing work for one folder.
// Jobs are claimed in batches by indexer workers; AvailableAt defers a job
// until its next retry window.
type IndexJob struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	FolderID    string    `json:"folder_id"    gorm:"type:char(36);not null;index:idx_folder_jobs"`
	OwnerID     string    `json:"owner_id"     gorm:"type:varchar(64);not null"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'pending';index:idx_job_claim,priority:1;check:status IN ('pending','processing','done','failed')"`
	RetryCount  int       `json:"retry_count"  gorm:"not null;default:0"`
	AvailableAt time.Time `json:"available_at" gorm:"not null;index:idx_job_claim,priority:2"`
	LastError   string    `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for IndexJob.
func (IndexJob) TableName() string { return "index_jobs" }

// DeadLetterTask records a job that exhausted its retry budget. It keeps the
// internal diagnostic detail (error class, message, stack) out of the
// user-facing folder error, and retains enough to resubmit the task by hand.
type DeadLetterTask struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	TaskName     string    `json:"task_name"     gorm:"type:varchar(128);not null"`
	Args         string    `json:"args"          gorm:"type:text;not null"`
	ErrorType    string    `json:"error_type"    gorm:"type:varchar(255);not null"`
	ErrorMessage string    `json:"error_message" gorm:"type:text;not null"`
	Stack        string    `json:"stack"         gorm:"type:text"`
	RetryCount   int       `json:"retry_count"   gorm:"not null;default:0"`
	FailedAt     time.Time `json:"failed_at"     gorm:"not null"`
}

// TableName returns the database table name for DeadLetterTask.
func (DeadLetterTask) TableName() string { return "dead_letter_tasks" }
