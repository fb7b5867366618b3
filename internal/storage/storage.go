// Package storage keeps finished export archives, on local disk or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("storage: object not found")
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Location tells a caller how to hand an object to a client: either a local
// Path to serve, or a URL to redirect to.
type Location struct {
	Path string
	URL  string
}

// Store is the only thing export jobs depend on; the backend is chosen at
// startup.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Locate(ctx context.Context, key string) (Location, error)
	Delete(ctx context.Context, key string) error
	Kind() string
}

// ArchiveKey returns the object key for a job's archive: exports/{job_id}/{filename}.
func ArchiveKey(jobID, filename string) string {
	return path.Join("exports", jobID, path.Base(filename))
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
