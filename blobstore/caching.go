package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// CachingStore wraps a Store with a read-through copy of each opened
// blob on local disk. It is intended for remote stores whose blobs are
// immutable once written, such as published index snapshots: the first
// Open downloads the blob, later Opens are served from the local copy.
//
// Put and Delete invalidate the local copy before reaching the wrapped
// store, so a renamed blob is never served stale.
type CachingStore struct {
	inner Store
	dir   string

	// mu serializes fills so concurrent Opens of the same blob do not
	// download it twice.
	mu sync.Mutex
}

var _ Store = (*CachingStore)(nil)

// NewCachingStore creates a caching store that spools blobs from inner
// into dir.
func NewCachingStore(inner Store, dir string) *CachingStore {
	return &CachingStore{inner: inner, dir: dir}
}

func (s *CachingStore) cachePath(name string) string {
	// Escaping keeps the spool flat and prevents blob names from
	// addressing paths outside the cache directory.
	return filepath.Join(s.dir, url.PathEscape(name))
}

// Open opens the named blob, downloading it into the spool on a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	path := s.cachePath(name)

	if rc, size, err := openFile(path); err == nil {
		return rc, size, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have filled the entry while we waited.
	if rc, size, err := openFile(path); err == nil {
		return rc, size, nil
	}

	if err := s.fill(ctx, name, path); err != nil {
		return nil, 0, err
	}

	return openFile(path)
}

func (s *CachingStore) fill(ctx context.Context, name, path string) error {
	rc, size, err := s.inner.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".fill-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	n, err := io.Copy(tmp, rc)
	if err == nil && n != size {
		err = fmt.Errorf("caching blob %q: got %d bytes, want %d", name, n, size)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}

// Put invalidates the local copy and writes the blob to the wrapped store.
func (s *CachingStore) Put(ctx context.Context, name string, r io.Reader) error {
	s.mu.Lock()
	os.Remove(s.cachePath(name))
	s.mu.Unlock()

	return s.inner.Put(ctx, name, r)
}

// Delete invalidates the local copy and removes the blob from the
// wrapped store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	os.Remove(s.cachePath(name))
	s.mu.Unlock()

	return s.inner.Delete(ctx, name)
}

// List lists blobs in the wrapped store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}
