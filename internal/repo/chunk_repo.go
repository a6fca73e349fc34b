// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chunk
// model, including the vector-similarity query primitive.
//
// Similarity search runs natively on Postgres through the pgvector cosine
// distance operator. On SQLite (tests, small single-node deployments) the
// same contract is served by an in-process scan over the candidate rows.
// Both paths filter on owner_id in addition to the folder join; tenant
// isolation never relies on the join chain alone.
package repo

import (
	"context"
	"math"
	"sort"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// ChunkHit is one similarity-search result: the chunk, its source file name,
// and the cosine distance to the query vector (smaller = more similar).
type ChunkHit struct {
	domain.Chunk `gorm:"embedded"`
	FileName     string  `gorm:"column:file_name"`
	Distance     float64 `gorm:"column:distance"`
}

// CreateChunks batch-inserts chunk rows.
func CreateChunks(ctx context.Context, db *gorm.DB, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(chunks, 100).Error
}

// CountFolderChunks returns the number of chunks reachable from a folder.
func CountFolderChunks(ctx context.Context, db *gorm.DB, folderID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chunk{}).
		Joins("JOIN files ON files.id = chunks.file_id").
		Where("files.folder_id = ?", folderID).
		Count(&total).Error
	return total, err
}

// SearchChunks returns up to limit chunks of (folderID, ownerID) ordered by
// cosine distance to the query vector, ascending.
func SearchChunks(ctx context.Context, db *gorm.DB, folderID, ownerID string, query []float32, limit int) ([]ChunkHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if isPostgres(db) {
		return searchChunksPG(ctx, db, folderID, ownerID, query, limit)
	}
	return searchChunksScan(ctx, db, folderID, ownerID, query, limit)
}

// searchChunksPG uses the pgvector cosine distance operator.
func searchChunksPG(ctx context.Context, db *gorm.DB, folderID, ownerID string, query []float32, limit int) ([]ChunkHit, error) {
	var hits []ChunkHit
	err := db.WithContext(ctx).Raw(`
		SELECT chunks.*, files.name AS file_name, chunks.embedding <=> ? AS distance
		FROM chunks
		JOIN files ON files.id = chunks.file_id
		WHERE chunks.owner_id = ? AND files.folder_id = ?
		ORDER BY distance ASC, chunks.id ASC
		LIMIT ?`,
		pgvector.NewVector(query), ownerID, folderID, limit,
	).Scan(&hits).Error
	return hits, err
}

// searchChunksScan loads the candidate rows and ranks them in process.
func searchChunksScan(ctx context.Context, db *gorm.DB, folderID, ownerID string, query []float32, limit int) ([]ChunkHit, error) {
	type row struct {
		domain.Chunk `gorm:"embedded"`
		FileName     string `gorm:"column:file_name"`
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.Chunk{}).
		Select("chunks.*, files.name AS file_name").
		Joins("JOIN files ON files.id = chunks.file_id").
		Where("chunks.owner_id = ? AND files.folder_id = ?", ownerID, folderID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]ChunkHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, ChunkHit{
			Chunk:    r.Chunk,
			FileName: r.FileName,
			Distance: cosineDistance(query, r.Embedding.Slice()),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosineDistance is 1 - cosine similarity, matching pgvector's <=> operator.
// Degenerate vectors (zero norm, dimension mismatch) rank last.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.MaxFloat64
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return math.MaxFloat64
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
