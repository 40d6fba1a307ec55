// Package blob defines the binary file persistence contract and its
// filesystem and S3 backends. The core stores only blob keys; streaming
// bytes in and out never touches the authorization path.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no stored blob.
var ErrNotFound = errors.New("blob not found")

// Store persists file binaries under opaque keys.
type Store interface {
	// Put writes the blob under key, replacing any existing content.
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	// Get opens the blob for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}
