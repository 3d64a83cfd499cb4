package integration_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/joingo"
	"github.com/hupe1980/joingo/blobstore"
	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
	"github.com/hupe1980/joingo/index"
	"github.com/hupe1980/joingo/index/memory"
	"github.com/hupe1980/joingo/registry"
	"github.com/hupe1980/joingo/session"
)

func newOrders(t *testing.T) *memory.Index {
	t.Helper()

	b, err := memory.NewBuilder(memory.Schema{Fields: []memory.FieldConfig{
		{Name: "status"},
		{Name: "vendor"},
	}})
	require.NoError(t, err)

	for _, doc := range []memory.Document{
		{"status": {"open"}, "vendor": {"1"}},
		{"status": {"open"}, "vendor": {"2"}},
		{"status": {"closed"}, "vendor": {"7"}},
		{"status": {"open"}, "vendor": {"5"}},
	} {
		_, err := b.Add(doc)
		require.NoError(t, err)
	}

	return b.Build()
}

func newProducts(t *testing.T) *memory.Index {
	t.Helper()

	b, err := memory.NewBuilder(memory.Schema{Fields: []memory.FieldConfig{
		{Name: "vendor"},
		{Name: "category"},
	}})
	require.NoError(t, err)

	for _, doc := range []memory.Document{
		{"vendor": {"2"}, "category": {"tools"}},
		{"vendor": {"3"}, "category": {"tools"}},
		{"vendor": {"5"}, "category": {"parts"}},
		{"vendor": {"5"}, "category": {"parts"}},
		{"vendor": {"9"}, "category": {"tools"}},
	} {
		_, err := b.Add(doc)
		require.NoError(t, err)
	}

	return b.Build()
}

func snapshotTo(t *testing.T, store blobstore.Store, name string, ix *memory.Index) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, ix.WriteSnapshot(&buf))
	require.NoError(t, store.Put(context.Background(), name, &buf))
}

func collect(s docset.DocSet) []core.DocID {
	var ids []core.DocID
	for id := range s.Iterator() {
		ids = append(ids, id)
	}
	return ids
}

func TestE2E_SnapshotRestart(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocal(t.TempDir())

	orig := newProducts(t)

	// 1. Publish a snapshot
	snapshotTo(t, store, "products/000001.snap", orig)

	// 2. Restore it
	r, _, err := store.Open(ctx, "products/000001.snap")
	require.NoError(t, err)

	restored, err := memory.ReadSnapshot(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// 3. The same join answers identically on both
	joiner := joingo.NewJoiner()

	run := func(ix *memory.Index) []core.DocID {
		join := joingo.New("vendor", "vendor",
			&index.TermQuery{Field: "category", Value: []byte("tools")})

		w, err := joiner.Weight(ctx, &joingo.Request{Searcher: ix.Searcher()}, join)
		require.NoError(t, err)

		res, err := w.Result(ctx)
		require.NoError(t, err)

		return collect(res.Docs())
	}

	assert.Equal(t, run(orig), run(restored))
}

func TestE2E_ColdMountWarmsOnce(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocal(t.TempDir())

	snapshotTo(t, store, "orders/000001.snap", newOrders(t))

	var warms atomic.Int64
	reg := registry.New(
		registry.WithMaxConcurrentWarms(2),
		registry.WithWarmObserver(func(name string, version uint64, bytes int64, elapsed time.Duration) {
			warms.Add(1)
		}),
	)
	require.NoError(t, reg.Mount("orders", registry.MountConfig{
		Store: store,
		Key:   "orders/000001.snap",
	}))

	joiner := joingo.NewJoiner(joingo.WithManager(reg))
	products := newProducts(t).Searcher()

	const callers = 8

	var wg sync.WaitGroup
	results := make([][]core.DocID, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			scope := session.NewScope()
			defer scope.Close()

			join := joingo.New("vendor", "vendor",
				&index.TermQuery{Field: "status", Value: []byte("open")},
				joingo.WithFromIndex("orders"),
			)

			w, err := joiner.Weight(ctx, &joingo.Request{
				IndexName: "products",
				Searcher:  products,
				Scope:     scope,
			}, join)
			if err != nil {
				errs[i] = err
				return
			}

			res, err := w.Result(ctx)
			if err != nil {
				errs[i] = err
				return
			}

			results[i] = collect(res.Docs())
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []core.DocID{0, 2, 3}, results[i])
	}

	// All eight requests shared a single warm, and closing every scope
	// returned the handles.
	assert.EqualValues(t, 1, warms.Load())
	assert.EqualValues(t, 0, reg.Refs("orders"))
}

type stubVersions struct {
	key     string
	version uint64
}

func (s *stubVersions) Current(ctx context.Context, index string) (string, uint64, error) {
	return s.key, s.version, nil
}

func TestE2E_VersionSourcePicksCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocal(t.TempDir())

	// Generation 1 has no open orders; generation 2 is the live fixture.
	closedB, err := memory.NewBuilder(memory.Schema{Fields: []memory.FieldConfig{
		{Name: "status"},
		{Name: "vendor"},
	}})
	require.NoError(t, err)
	for _, vendor := range []string{"1", "2", "5"} {
		_, err := closedB.Add(memory.Document{"status": {"closed"}, "vendor": {vendor}})
		require.NoError(t, err)
	}

	snapshotTo(t, store, "orders/000001.snap", closedB.Build())
	snapshotTo(t, store, "orders/000002.snap", newOrders(t))

	var warmedVersion atomic.Uint64
	reg := registry.New(
		registry.WithWarmObserver(func(name string, version uint64, bytes int64, elapsed time.Duration) {
			warmedVersion.Store(version)
		}),
	)
	require.NoError(t, reg.Mount("orders", registry.MountConfig{
		Store:    store,
		Versions: &stubVersions{key: "orders/000002.snap", version: 2},
	}))

	joiner := joingo.NewJoiner(joingo.WithManager(reg))

	scope := session.NewScope()
	defer scope.Close()

	join := joingo.New("vendor", "vendor",
		&index.TermQuery{Field: "status", Value: []byte("open")},
		joingo.WithFromIndex("orders"),
	)

	w, err := joiner.Weight(ctx, &joingo.Request{
		IndexName: "products",
		Searcher:  newProducts(t).Searcher(),
		Scope:     scope,
	}, join)
	require.NoError(t, err)

	res, err := w.Result(ctx)
	require.NoError(t, err)

	// Generation 1 would have produced an empty set.
	assert.Equal(t, []core.DocID{0, 2, 3}, collect(res.Docs()))
	assert.EqualValues(t, 2, warmedVersion.Load())
}

type countingStore struct {
	blobstore.Store
	opens atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	s.opens.Add(1)
	return s.Store.Open(ctx, name)
}

func TestE2E_CachingStoreSpoolsWarm(t *testing.T) {
	ctx := context.Background()

	inner := &countingStore{Store: blobstore.NewMemory()}
	snapshotTo(t, inner, "orders/000001.snap", newOrders(t))

	cached := blobstore.NewCachingStore(inner, t.TempDir())
	products := newProducts(t).Searcher()

	// Two registries simulate two process lifetimes sharing a spool
	// directory. Only the first warm reaches the remote store.
	for i := 0; i < 2; i++ {
		reg := registry.New()
		require.NoError(t, reg.Mount("orders", registry.MountConfig{
			Store: cached,
			Key:   "orders/000001.snap",
		}))

		joiner := joingo.NewJoiner(joingo.WithManager(reg))

		scope := session.NewScope()

		join := joingo.New("vendor", "vendor",
			&index.TermQuery{Field: "status", Value: []byte("open")},
			joingo.WithFromIndex("orders"),
		)

		w, err := joiner.Weight(ctx, &joingo.Request{
			IndexName: "products",
			Searcher:  products,
			Scope:     scope,
		}, join)
		require.NoError(t, err)

		res, err := w.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.DocID{0, 2, 3}, collect(res.Docs()))

		require.NoError(t, scope.Close())
	}

	assert.EqualValues(t, 1, inner.opens.Load())
}
