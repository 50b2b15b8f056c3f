// Package blob stores uploaded file contents on disk or in an S3-compatible
// bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNotFound = errors.New("blob not found")

// Store keeps opaque blobs keyed by their stored name.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes a blob. A missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
