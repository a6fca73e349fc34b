// Package storage abstracts the document source a folder points at. The
// indexing pipeline only sees this interface; concrete backends (MinIO for
// production, an in-memory fake for tests and demos) live alongside it.
package storage

import (
	"context"
	"io"
)

// FileMetadata describes one document discovered while listing a folder.
type FileMetadata struct {
	// ID is the provider-scoped reference used for later Download/Export
	// calls.
	ID string

	// Name is the display file name, unique within its folder listing.
	Name string

	// MimeType is the detected content type; backends that do not track
	// one report application/octet-stream.
	MimeType string

	// Size in bytes, when known.
	Size int64
}

// Provider lists and fetches the documents of a registered folder.
//
// List must exhaust provider-side pagination and return the complete file
// set. Errors distinguish a missing or inaccessible resource
// (provider.ErrNotFound, provider.ErrAccessDenied) from transport failures.
type Provider interface {
	// List returns metadata for every file under folderRef.
	List(ctx context.Context, folderRef string) ([]FileMetadata, error)

	// Download fetches the raw bytes of a file. The caller closes the
	// reader.
	Download(ctx context.Context, fileRef string) (io.ReadCloser, error)

	// Export fetches a converted rendition of a native document, for
	// backends that can transcode (e.g. a docs format to text/plain).
	// Backends without conversion return the raw content.
	Export(ctx context.Context, fileRef, mimeType string) (io.ReadCloser, error)
}
