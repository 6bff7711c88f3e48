package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// DocumentStore abstracts the object backend holding appeal documents
// and model artifacts. Paths are slash-separated object keys.
type DocumentStore interface {
	// Upload stores the object and returns its path. Pass size < 0 when
	// the length is unknown.
	Upload(ctx context.Context, objectPath string, data io.Reader, size int64, contentType string) (string, error)

	// Fetch returns the full object body.
	Fetch(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes the object.
	Delete(ctx context.Context, objectPath string) error

	// GenerateURL returns a time-limited download URL for the object.
	GenerateURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// LocalDocumentStore keeps objects on the local filesystem. Development
// fallback when no S3 endpoint is configured; GenerateURL returns
// file:// URLs that only make sense on the same host.
type LocalDocumentStore struct {
	baseDir string
}

func NewLocalDocumentStore(baseDir string) (*LocalDocumentStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("document dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}
	return &LocalDocumentStore{baseDir: baseDir}, nil
}

func (r *LocalDocumentStore) Upload(_ context.Context, objectPath string, data io.Reader, _ int64, _ string) (string, error) {
	full, err := r.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create object file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	return objectPath, nil
}

func (r *LocalDocumentStore) Fetch(_ context.Context, objectPath string) ([]byte, error) {
	full, err := r.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", objectPath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (r *LocalDocumentStore) Delete(_ context.Context, objectPath string) error {
	full, err := r.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (r *LocalDocumentStore) GenerateURL(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	full, err := r.resolve(objectPath)
	if err != nil {
		return "", err
	}
	return "file://" + full, nil
}

// resolve maps an object key onto the base dir, rejecting keys that
// would escape it.
func (r *LocalDocumentStore) resolve(objectPath string) (string, error) {
	if objectPath == "" {
		return "", fmt.Errorf("object path is required")
	}
	clean := filepath.Clean(filepath.FromSlash(objectPath))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(r.baseDir, clean), nil
}
