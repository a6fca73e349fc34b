package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/docgrove/go-docchat-backend/internal/provider"
)

// Memory is an in-process Provider for tests and single-binary demos.
// Folders and files are plain maps; a fileRef is "folderRef/fileName".
type Memory struct {
	mu      sync.RWMutex
	folders map[string]map[string]MemoryFile
}

// MemoryFile is one stored document.
type MemoryFile struct {
	MimeType string
	Content  []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{folders: make(map[string]map[string]MemoryFile)}
}

// Put stores (or replaces) a file under a folder, creating the folder on
// first use.
func (m *Memory) Put(folderRef, name, mimeType string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.folders[folderRef] == nil {
		m.folders[folderRef] = make(map[string]MemoryFile)
	}
	m.folders[folderRef][name] = MemoryFile{MimeType: mimeType, Content: content}
}

// List returns the folder's files sorted by name.
func (m *Memory) List(ctx context.Context, folderRef string) ([]FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	files, ok := m.folders[folderRef]
	if !ok {
		return nil, fmt.Errorf("folder %q: %w", folderRef, provider.ErrNotFound)
	}
	out := make([]FileMetadata, 0, len(files))
	for name, f := range files {
		out = append(out, FileMetadata{
			ID:       folderRef + "/" + name,
			Name:     name,
			MimeType: f.MimeType,
			Size:     int64(len(f.Content)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Download returns the stored bytes of fileRef.
func (m *Memory) Download(ctx context.Context, fileRef string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := strings.LastIndexByte(fileRef, '/')
	if i < 0 {
		return nil, fmt.Errorf("file %q: %w", fileRef, provider.ErrNotFound)
	}
	folderRef, name := fileRef[:i], fileRef[i+1:]
	f, ok := m.folders[folderRef][name]
	if !ok {
		return nil, fmt.Errorf("file %q: %w", fileRef, provider.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// Export is Download; the fake stores no convertible formats.
func (m *Memory) Export(ctx context.Context, fileRef, mimeType string) (io.ReadCloser, error) {
	return m.Download(ctx, fileRef)
}
