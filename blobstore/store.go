package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist in the store.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound) for missing blobs.
var ErrNotFound = os.ErrNotExist

// Store provides access to immutable blobs such as index snapshots and
// version markers. Blob names use forward slashes as separators
// regardless of the backing medium.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Open opens the named blob for reading and reports its size in
	// bytes. The caller owns the returned reader and must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)

	// Put creates or replaces the named blob with the contents of r.
	// The blob becomes visible to readers only once Put returns.
	Put(ctx context.Context, name string, r io.Reader) error

	// Delete removes the named blob. Deleting a blob that does not
	// exist is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs whose name starts with
	// prefix, sorted in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}
