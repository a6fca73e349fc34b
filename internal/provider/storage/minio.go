package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/docgrove/go-docchat-backend/internal/provider"
)

// MinIO serves folders stored as object prefixes in a MinIO (or any
// S3-compatible) deployment. A folderRef is "bucket" or "bucket/prefix"; a
// fileRef is "bucket/objectKey".
type MinIO struct {
	client *minio.Client
}

// MinIOConfig holds connection settings for NewMinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// NewMinIO connects to the object store and verifies credentials with a
// bucket listing.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if _, err := c.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("minio health check: %w", mapMinioErr(err))
	}
	return &MinIO{client: c}, nil
}

// List walks every object under the folder prefix. minio-go paginates
// internally, so the returned set is already complete.
func (m *MinIO) List(ctx context.Context, folderRef string) ([]FileMetadata, error) {
	bucket, prefix, err := splitRef(folderRef)
	if err != nil {
		return nil, err
	}

	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, mapMinioErr(err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", bucket, provider.ErrNotFound)
	}

	var out []FileMetadata
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, mapMinioErr(obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") { // directory placeholder
			continue
		}
		mime := obj.ContentType
		if mime == "" {
			mime = "application/octet-stream"
		}
		out = append(out, FileMetadata{
			ID:       bucket + "/" + obj.Key,
			Name:     baseName(obj.Key),
			MimeType: mime,
			Size:     obj.Size,
		})
	}
	return out, nil
}

// Download fetches the object bytes. The not-found mapping happens lazily on
// first read, so Stat first to surface it eagerly.
func (m *MinIO) Download(ctx context.Context, fileRef string) (io.ReadCloser, error) {
	bucket, key, err := splitRef(fileRef)
	if err != nil {
		return nil, err
	}
	if _, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, mapMinioErr(err)
	}
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

// Export returns the raw object; object stores hold documents as uploaded
// and offer no server-side conversion.
func (m *MinIO) Export(ctx context.Context, fileRef, mimeType string) (io.ReadCloser, error) {
	return m.Download(ctx, fileRef)
}

func splitRef(ref string) (bucket, rest string, err error) {
	ref = strings.Trim(ref, "/")
	if ref == "" {
		return "", "", fmt.Errorf("empty storage reference: %w", provider.ErrNotFound)
	}
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		return ref[:i], ref[i+1:], nil
	}
	return ref, "", nil
}

func baseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// mapMinioErr folds the minio error codes into the shared taxonomy, leaving
// everything else untouched for Classify.
func mapMinioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		return fmt.Errorf("%s: %w", resp.Code, provider.ErrNotFound)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%s: %w", resp.Code, provider.ErrAccessDenied)
	}
	return err
}
