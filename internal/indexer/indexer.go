// Package indexer implements the background pipeline that turns a registered
// folder into retrievable chunks: list the provider files, extract text,
// chunk, embed and persist, while advancing the folder status machine
// (pending → indexing → ready | failed).
//
// Work arrives as durable IndexJob rows. Workers claim due jobs in batches,
// transient failures are retried with a growing backoff, and jobs that
// exhaust their retry budget land in the dead-letter table with full
// diagnostic detail. The folder row itself only ever carries a short,
// user-facing failure summary.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/chunker"
	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/provider"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/provider/storage"
	"github.com/docgrove/go-docchat-backend/internal/repo"
)

// Config tunes the worker pool and retry policy.
type Config struct {
	Workers      int
	PollInterval time.Duration
	ClaimBatch   int
	RetryMax     int
	RetryBackoff time.Duration
	StaleAfter   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.ClaimBatch <= 0 {
		c.ClaimBatch = 10
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	return c
}

// Indexer owns the worker pool processing index jobs.
type Indexer struct {
	db       *gorm.DB
	store    storage.Provider
	embedder ai.Embedder
	split    *chunker.Splitter
	cfg      Config
	log      zerolog.Logger

	// locks holds one mutex per folder as an in-process fast path; the
	// conditional status UPDATE on the folder row is the authoritative
	// cross-process lock.
	locks sync.Map
}

// New builds an Indexer. The splitter decides chunk sizing; cfg controls
// workers and retries.
func New(db *gorm.DB, store storage.Provider, embedder ai.Embedder, split *chunker.Splitter, cfg Config, log zerolog.Logger) *Indexer {
	return &Indexer{
		db:       db,
		store:    store,
		embedder: embedder,
		split:    split,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "indexer").Logger(),
	}
}

// Start runs the worker pool and the stale-run sweeper until ctx is
// cancelled. It blocks; run it in a goroutine.
func (ix *Indexer) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < ix.cfg.Workers; i++ {
		g.Go(func() error {
			ix.workerLoop(ctx)
			return nil
		})
	}
	g.Go(func() error {
		ix.sweepLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (ix *Indexer) workerLoop(ctx context.Context) {
	for {
		if err := ix.RunOnce(ctx); err != nil && ctx.Err() == nil {
			ix.log.Warn().Err(err).Msg("index worker pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ix.cfg.PollInterval):
		}
	}
}

// RunOnce claims one batch of due jobs and processes them sequentially.
func (ix *Indexer) RunOnce(ctx context.Context) error {
	jobs, err := repo.ClaimIndexJobs(ctx, ix.db, time.Now().UTC(), ix.cfg.ClaimBatch)
	if err != nil {
		return fmt.Errorf("claim jobs: %w", err)
	}
	for _, job := range jobs {
		ix.processJob(ctx, job)
	}
	return nil
}

func (ix *Indexer) sweepLoop(ctx context.Context) {
	interval := ix.cfg.StaleAfter / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		cutoff := time.Now().UTC().Add(-ix.cfg.StaleAfter)
		if n, err := repo.SweepStaleIndexing(ctx, ix.db, cutoff); err != nil {
			ix.log.Warn().Err(err).Msg("stale indexing sweep failed")
		} else if n > 0 {
			ix.log.Warn().Int64("folders", n).Msg("recovered folders stuck in indexing")
		}
	}
}

// processJob drives one claimed job to a terminal or rescheduled state.
func (ix *Indexer) processJob(ctx context.Context, job domain.IndexJob) {
	log := ix.log.With().Str("job_id", job.ID).Str("folder_id", job.FolderID).Logger()

	muVal, _ := ix.locks.LoadOrStore(job.FolderID, &sync.Mutex{})
	mu := muVal.(*sync.Mutex)
	if !mu.TryLock() {
		// Another worker in this process is on the folder; that run covers
		// this request.
		ix.finishJob(ctx, job.ID, domain.JobStatusDone, "superseded by active run")
		return
	}
	defer mu.Unlock()

	ok, err := repo.TryMarkIndexing(ctx, ix.db, job.FolderID)
	if err != nil {
		log.Error().Err(err).Msg("claim folder for indexing")
		ix.handleFailure(ctx, job, err)
		return
	}
	if !ok {
		// Folder is gone or already indexing; either way this job is moot.
		ix.finishJob(ctx, job.ID, domain.JobStatusDone, "superseded by active run")
		return
	}

	start := time.Now()
	err = ix.indexFolder(ctx, job)
	if err == nil {
		if serr := repo.SetFolderStatus(ctx, ix.db, job.FolderID, domain.FolderStatusReady, ""); serr != nil {
			log.Error().Err(serr).Msg("mark folder ready")
		}
		ix.finishJob(ctx, job.ID, domain.JobStatusDone, "")
		log.Info().Dur("took", time.Since(start)).Msg("folder indexed")
		return
	}
	if ctx.Err() != nil {
		// Shutdown mid-run: release the folder so the sweep or a retry can
		// pick it up, and put the job back.
		_ = repo.SetFolderStatus(context.Background(), ix.db, job.FolderID, domain.FolderStatusPending, "")
		_ = repo.RescheduleIndexJob(context.Background(), ix.db, job.ID, job.RetryCount, time.Now().UTC(), "interrupted by shutdown")
		return
	}

	log.Warn().Err(err).Msg("index run failed")
	ix.handleFailure(ctx, job, err)
}

// handleFailure reschedules transient failures with linear backoff until the
// retry budget runs out, then dead-letters the job and fails the folder.
func (ix *Indexer) handleFailure(ctx context.Context, job domain.IndexJob, cause error) {
	transient := provider.Classify(cause)
	if transient && job.RetryCount < ix.cfg.RetryMax {
		retry := job.RetryCount + 1
		delay := ix.cfg.RetryBackoff * time.Duration(retry)
		// Back to pending so the next attempt can reclaim the folder.
		if err := repo.SetFolderStatus(ctx, ix.db, job.FolderID, domain.FolderStatusPending, userFacing(cause)); err != nil && !errors.Is(err, repo.ErrNotFound) {
			ix.log.Error().Err(err).Str("folder_id", job.FolderID).Msg("reset folder after transient failure")
		}
		if err := repo.RescheduleIndexJob(ctx, ix.db, job.ID, retry, time.Now().UTC().Add(delay), cause.Error()); err != nil {
			ix.log.Error().Err(err).Str("job_id", job.ID).Msg("reschedule job")
		}
		return
	}

	if err := repo.SetFolderStatus(ctx, ix.db, job.FolderID, domain.FolderStatusFailed, userFacing(cause)); err != nil && !errors.Is(err, repo.ErrNotFound) {
		ix.log.Error().Err(err).Str("folder_id", job.FolderID).Msg("mark folder failed")
	}
	ix.finishJob(ctx, job.ID, domain.JobStatusFailed, cause.Error())

	if transient {
		// Retries exhausted: keep the full diagnostic detail for operators.
		if _, err := repo.CreateDeadLetter(ctx, ix.db, "index_folder",
			repo.DeadLetterArgs{FolderID: job.FolderID, OwnerID: job.OwnerID},
			fmt.Sprintf("%T", rootCause(cause)), cause.Error(), "", job.RetryCount,
		); err != nil {
			ix.log.Error().Err(err).Str("job_id", job.ID).Msg("record dead letter")
		}
	}
}

func (ix *Indexer) finishJob(ctx context.Context, jobID, status, lastError string) {
	if err := repo.FinishIndexJob(ctx, ix.db, jobID, status, lastError); err != nil {
		ix.log.Error().Err(err).Str("job_id", jobID).Msg("finish job")
	}
}

// indexFolder replaces the folder's file and chunk set from the provider
// listing. Per-file permanent failures are recorded on the file row and
// count as processed; transient failures abort the run for retry.
func (ix *Indexer) indexFolder(ctx context.Context, job domain.IndexJob) error {
	folder, err := repo.GetFolder(ctx, ix.db, job.FolderID, job.OwnerID)
	if err != nil {
		return fmt.Errorf("load folder: %w", err)
	}

	metas, err := ix.store.List(ctx, folder.ProviderRef)
	if err != nil {
		return fmt.Errorf("list provider folder: %w", err)
	}

	// Replace wholesale: prior files (and their chunks via cascade) go away
	// before the new set is written.
	if err := repo.DeleteFolderFiles(ctx, ix.db, folder.ID); err != nil {
		return fmt.Errorf("clear previous files: %w", err)
	}
	if err := repo.SetFolderFilesTotal(ctx, ix.db, folder.ID, len(metas)); err != nil {
		return fmt.Errorf("record file total: %w", err)
	}

	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		file, err := repo.CreateFile(ctx, ix.db, folder.ID, meta.ID, meta.Name, meta.MimeType)
		if err != nil {
			return fmt.Errorf("create file row: %w", err)
		}

		if err := ix.indexFile(ctx, folder, file, meta); err != nil {
			if provider.Classify(err) {
				return fmt.Errorf("index %s: %w", meta.Name, err)
			}
			// Permanent per-file failure: record and move on.
			if merr := repo.MarkFileFailed(ctx, ix.db, file.ID, userFacing(err)); merr != nil {
				return fmt.Errorf("mark file failed: %w", merr)
			}
			ix.log.Warn().Err(err).Str("file", meta.Name).Msg("file skipped")
		} else {
			if merr := repo.MarkFileIndexed(ctx, ix.db, file.ID); merr != nil {
				return fmt.Errorf("mark file indexed: %w", merr)
			}
		}
		if err := repo.IncFolderFilesIndexed(ctx, ix.db, folder.ID); err != nil {
			return fmt.Errorf("bump progress: %w", err)
		}
	}
	return nil
}

// indexFile extracts, chunks, embeds and persists one document. Native
// documents (formats with no raw byte form, like Google Workspace files) are
// fetched through Export as a plain-text rendition; everything else downloads
// as-is.
func (ix *Indexer) indexFile(ctx context.Context, folder *domain.Folder, file *domain.File, meta storage.FileMetadata) error {
	var (
		rc  io.ReadCloser
		err error
	)
	if target, ok := nativeExportTarget(meta.MimeType); ok {
		rc, err = ix.store.Export(ctx, meta.ID, target)
		meta.MimeType = target
	} else {
		rc, err = ix.store.Download(ctx, meta.ID)
	}
	if err != nil {
		return fmt.Errorf("fetch %s: %w", meta.Name, err)
	}
	defer rc.Close()

	units, err := extract(meta, rc)
	if err != nil {
		return err
	}

	var pieces []chunker.Piece
	for _, u := range units {
		pieces = append(pieces, ix.split.Split(u.text, u.meta)...)
	}
	if len(pieces) == 0 {
		return nil // empty document indexes to zero chunks
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(pieces) {
		return fmt.Errorf("embedder returned %d vectors for %d pieces", len(vectors), len(pieces))
	}

	chunks := make([]domain.Chunk, len(pieces))
	now := time.Now().UTC()
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			ID:          uuid.NewString(),
			FileID:      file.ID,
			OwnerID:     folder.OwnerID,
			Position:    i,
			Text:        p.Text,
			Page:        p.Page,
			HeadingPath: p.HeadingPath,
			Embedding:   pgvector.NewVector(vectors[i]),
			CreatedAt:   now,
		}
	}
	if err := repo.CreateChunks(ctx, ix.db, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}
	return nil
}

func rootCause(err error) error {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
}

// userFacing trims an error to a short summary safe to show on the folder
// or file row. Internal chains stay in logs and dead letters.
func userFacing(err error) string {
	switch {
	case errors.Is(err, provider.ErrNotFound):
		return "source folder or file not found at the storage provider"
	case errors.Is(err, provider.ErrAccessDenied):
		return "access to the storage provider was denied"
	case errors.Is(err, ErrUnsupportedType):
		return "file type is not supported for indexing"
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
