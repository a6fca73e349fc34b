// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// Postgres (with pgvector) and SQLite (pure Go driver), plus schema
// migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// sqlitePragmas are carried in the DSN so every pooled connection applies
// them. SQLite pragmas are per-connection; a one-off Exec would prime only
// whichever connection happened to serve it, and foreign_keys in particular
// must hold on all of them or cascades silently stop firing.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

// SQLiteDSN appends the connection pragmas to a SQLite path or DSN.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + sqlitePragmas
}

// OpenSQLite opens (or creates) a SQLite database with the pool pragmas.
// SQLite carries the full schema including the embedding column; similarity
// queries fall back to an in-process scan (see SearchChunks).
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a Postgres database and ensures the pgvector extension
// exists so the chunks.embedding column migrates as a native vector type.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Open dispatches on the DSN: anything that looks like a Postgres DSN opens
// Postgres, everything else is treated as a SQLite file path.
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return OpenPostgres(dsn)
	}
	return OpenSQLite(dsn)
}

// AutoMigrate creates or updates the full application schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Folder{},
		&domain.File{},
		&domain.Chunk{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.IndexJob{},
		&domain.DeadLetterTask{},
	)
}

// isPostgres reports whether the connection speaks the Postgres dialect,
// which gates the native pgvector similarity path.
func isPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres"
}
