package blobstore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts how often blobs are opened on the wrapped store.
type countingStore struct {
	Store
	opens atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	s.opens.Add(1)
	return s.Store.Open(ctx, name)
}

func TestCachingStoreReadThrough(t *testing.T) {
	inner := &countingStore{Store: NewMemory()}
	store := NewCachingStore(inner, t.TempDir())

	put(t, inner, "orders/000001.snap", "snapshot payload")

	// 1. The first open downloads the blob.
	content, size := read(t, store, "orders/000001.snap")
	assert.Equal(t, "snapshot payload", content)
	assert.Equal(t, int64(len("snapshot payload")), size)
	assert.EqualValues(t, 1, inner.opens.Load())

	// 2. Later opens are served from the spool, even after the remote
	// blob is gone.
	require.NoError(t, inner.Delete(context.Background(), "orders/000001.snap"))

	content, size = read(t, store, "orders/000001.snap")
	assert.Equal(t, "snapshot payload", content)
	assert.Equal(t, int64(len("snapshot payload")), size)
	assert.EqualValues(t, 1, inner.opens.Load())
}

func TestCachingStoreConcurrentOpens(t *testing.T) {
	inner := &countingStore{Store: NewMemory()}
	store := NewCachingStore(inner, t.TempDir())

	put(t, inner, "orders/000001.snap", "snapshot payload")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			content, _ := read(t, store, "orders/000001.snap")
			assert.Equal(t, "snapshot payload", content)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, inner.opens.Load())
}

func TestCachingStorePutInvalidates(t *testing.T) {
	store := NewCachingStore(NewMemory(), t.TempDir())

	put(t, store, "marker", "v1")
	content, _ := read(t, store, "marker")
	require.Equal(t, "v1", content)

	put(t, store, "marker", "v2")
	content, _ = read(t, store, "marker")
	assert.Equal(t, "v2", content)
}

func TestCachingStoreDeleteInvalidates(t *testing.T) {
	store := NewCachingStore(NewMemory(), t.TempDir())

	put(t, store, "marker", "v1")
	_, _ = read(t, store, "marker")

	require.NoError(t, store.Delete(context.Background(), "marker"))

	_, _, err := store.Open(context.Background(), "marker")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachingStoreTruncatedFill(t *testing.T) {
	inner := &lyingStore{Store: NewMemory()}
	store := NewCachingStore(inner, t.TempDir())

	put(t, inner, "marker", "v1")

	// A short download must not be cached.
	_, _, err := store.Open(context.Background(), "marker")
	assert.ErrorContains(t, err, "got 2 bytes, want 3")
}

// lyingStore reports one byte more than each blob holds.
type lyingStore struct {
	Store
}

func (s *lyingStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	rc, size, err := s.Store.Open(ctx, name)
	return rc, size + 1, err
}

func TestCachingStoreList(t *testing.T) {
	inner := NewMemory()
	store := NewCachingStore(inner, t.TempDir())

	put(t, inner, "orders/000001.snap", "a")
	put(t, inner, "orders/000002.snap", "b")

	names, err := store.List(context.Background(), "orders/")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders/000001.snap", "orders/000002.snap"}, names)
}
