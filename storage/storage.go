package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrArtifactNotFound is returned when a requested artifact does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidPath is returned when a path is empty, absolute, or escapes the root.
	ErrInvalidPath = errors.New("invalid artifact path")
)

// BlobStorage stores execution artifacts (screenshots, traces).
type BlobStorage interface {
	// Upload stores data from the reader at the given path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download retrieves the artifact at the given path.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the artifact at the given path.
	Delete(ctx context.Context, path string) error

	// Exists checks whether an artifact exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// GetURL returns a URL for fetching the artifact. S3 returns a presigned
	// URL; local storage returns the filesystem path.
	GetURL(ctx context.Context, path string) (string, error)
}

// Config selects and configures a storage backend.
type Config struct {
	Type          string // "local" or "s3"
	BaseDir       string // local: root directory
	S3Bucket      string
	S3Region      string
	PresignExpiry time.Duration
}

// New creates a BlobStorage from config.
func New(cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "local":
		if cfg.BaseDir == "" {
			return nil, fmt.Errorf("%w: base_dir is required for local storage", ErrInvalidPath)
		}
		return NewLocalStorage(cfg.BaseDir)

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("bucket is required for S3 storage")
		}
		if cfg.S3Region == "" {
			return nil, errors.New("region is required for S3 storage")
		}
		s3Storage, err := NewS3Storage(cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		if cfg.PresignExpiry > 0 {
			s3Storage.presignExpiry = cfg.PresignExpiry
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
