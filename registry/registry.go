// Package registry is the reference index.Manager: it resolves symbolic
// index names to ref-counted searcher handles, serving registered live
// indexes immediately and warming mounted ones from snapshot blobs on
// first use.
package registry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/joingo/blobstore"
	"github.com/hupe1980/joingo/cache"
	"github.com/hupe1980/joingo/index"
	"github.com/hupe1980/joingo/index/memory"
)

// VersionSource resolves the snapshot blob currently published for an
// index. blobstore/s3.VersionStore implements it.
type VersionSource interface {
	Current(ctx context.Context, index string) (key string, version uint64, err error)
}

// MountConfig describes where a cold index loads its snapshot from.
type MountConfig struct {
	// Store holds the snapshot blobs.
	Store blobstore.Store

	// Key is the blob name of the snapshot. Leave empty when Versions
	// is set.
	Key string

	// Versions resolves the current snapshot key at warm time. When set
	// it takes precedence over Key.
	Versions VersionSource
}

// Options configure a Registry.
type Options struct {
	// MaxConcurrentWarms bounds how many snapshots load at once.
	// Defaults to 1.
	MaxConcurrentWarms int64

	// WarmBytesPerSec throttles snapshot reads during warms.
	// Zero means unlimited.
	WarmBytesPerSec int64

	// Cache is attached to every searcher the registry creates.
	Cache cache.DocSetCache

	// OnWarm is invoked after each successful warm.
	OnWarm func(name string, version uint64, bytes int64, elapsed time.Duration)
}

// WithMaxConcurrentWarms bounds how many snapshots load at once.
func WithMaxConcurrentWarms(n int64) func(o *Options) {
	return func(o *Options) {
		o.MaxConcurrentWarms = n
	}
}

// WithWarmRateLimit throttles snapshot reads to n bytes per second.
func WithWarmRateLimit(n int64) func(o *Options) {
	return func(o *Options) {
		o.WarmBytesPerSec = n
	}
}

// WithDocSetCache attaches c to every searcher the registry creates.
func WithDocSetCache(c cache.DocSetCache) func(o *Options) {
	return func(o *Options) {
		o.Cache = c
	}
}

// WithWarmObserver registers fn to be invoked after each successful warm.
func WithWarmObserver(fn func(name string, version uint64, bytes int64, elapsed time.Duration)) func(o *Options) {
	return func(o *Options) {
		o.OnWarm = fn
	}
}

// Registry implements the index.Manager interface.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	warmSem *semaphore.Weighted
	warmLim *rate.Limiter
	flight  singleflight.Group

	cache  cache.DocSetCache
	onWarm func(name string, version uint64, bytes int64, elapsed time.Duration)
}

var _ index.Manager = (*Registry)(nil)

// New creates an empty registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{MaxConcurrentWarms: 1}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentWarms <= 0 {
		opts.MaxConcurrentWarms = 1
	}

	r := &Registry{
		entries: make(map[string]*entry),
		warmSem: semaphore.NewWeighted(opts.MaxConcurrentWarms),
		cache:   opts.Cache,
		onWarm:  opts.OnWarm,
	}

	if opts.WarmBytesPerSec > 0 {
		r.warmLim = rate.NewLimiter(rate.Limit(opts.WarmBytesPerSec), int(opts.WarmBytesPerSec))
	}

	return r
}

// Register adds a live index under the given name, replacing any
// previous registration. The searcher view is opened here, so every
// handle acquired until the next Register shares one OpenTime.
func (r *Registry) Register(name string, ix *memory.Index) {
	e := &entry{}
	e.index = ix
	e.searcher = ix.Searcher(r.searcherOpts()...)

	r.mu.Lock()
	r.entries[name] = e
	r.mu.Unlock()
}

// Mount adds a cold index that is warmed from cfg on first Acquire.
func (r *Registry) Mount(name string, cfg MountConfig) error {
	if cfg.Store == nil {
		return fmt.Errorf("mount %q: store must not be nil", name)
	}
	if cfg.Key == "" && cfg.Versions == nil {
		return fmt.Errorf("mount %q: either key or a version source is required", name)
	}

	r.mu.Lock()
	r.entries[name] = &entry{mount: &cfg}
	r.mu.Unlock()

	return nil
}

// Acquire implements the index.Manager interface. Cold indexes are
// warmed exactly once per flight; every concurrent caller waits on the
// same warm and sees its outcome.
func (r *Registry) Acquire(ctx context.Context, name string) (index.Handle, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("index %q: %w", name, index.ErrNoSuchIndex)
	}

	if h := e.tryAcquire(); h != nil {
		return h, nil
	}

	_, err, _ := r.flight.Do(name, func() (any, error) {
		return nil, r.warm(ctx, name, e)
	})
	if err != nil {
		return nil, err
	}

	h := e.tryAcquire()
	if h == nil {
		return nil, fmt.Errorf("index %q: warm produced no searcher", name)
	}
	return h, nil
}

// Refs reports how many handles on the named index are outstanding.
func (r *Registry) Refs(name string) int64 {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.refs.Load()
}

func (r *Registry) searcherOpts() []func(o *memory.SearcherOptions) {
	if r.cache == nil {
		return nil
	}
	return []func(o *memory.SearcherOptions){memory.WithDocSetCache(r.cache)}
}

// warm loads the entry's snapshot and installs the searcher. It runs at
// most once per name at a time (singleflight) and competes with other
// warms for the semaphore. On failure the entry stays cold, so a later
// Acquire retries.
func (r *Registry) warm(ctx context.Context, name string, e *entry) error {
	// A previous flight may have warmed the entry while this caller was
	// between its cold check and joining the flight.
	if e.warmed() {
		return nil
	}

	if err := r.warmSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.warmSem.Release(1)

	cfg := e.mountConfig()
	if cfg == nil {
		return fmt.Errorf("index %q: not mounted", name)
	}

	start := time.Now()

	key := cfg.Key
	var version uint64
	if cfg.Versions != nil {
		k, v, err := cfg.Versions.Current(ctx, name)
		if err != nil {
			return fmt.Errorf("resolving current snapshot for %q: %w", name, err)
		}
		key, version = k, v
	}

	rc, size, err := cfg.Store.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("opening snapshot %q: %w", key, err)
	}
	defer rc.Close()

	var body io.Reader = rc
	if r.warmLim != nil {
		body = &throttledReader{r: rc, lim: r.warmLim, ctx: ctx}
	}

	ix, err := memory.ReadSnapshot(body)
	if err != nil {
		return fmt.Errorf("loading snapshot %q: %w", key, err)
	}

	e.install(ix, ix.Searcher(r.searcherOpts()...), version)

	if r.onWarm != nil {
		r.onWarm(name, version, size, time.Since(start))
	}

	return nil
}

// entry is the registry's per-name state. A cold entry has a nil
// searcher and a mount config; warming installs the searcher.
type entry struct {
	mu       sync.Mutex
	index    *memory.Index
	searcher *memory.Searcher
	version  uint64
	mount    *MountConfig

	refs atomic.Int64
}

func (e *entry) tryAcquire() index.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.searcher == nil {
		return nil
	}

	e.refs.Add(1)
	return &handle{entry: e, searcher: e.searcher}
}

func (e *entry) warmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.searcher != nil
}

func (e *entry) mountConfig() *MountConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mount
}

func (e *entry) install(ix *memory.Index, s *memory.Searcher, version uint64) {
	e.mu.Lock()
	e.index = ix
	e.searcher = s
	e.version = version
	e.mu.Unlock()
}

// handle is a ref-counted lease on one entry.
type handle struct {
	entry    *entry
	searcher index.Searcher
	released atomic.Bool
}

var _ index.Handle = (*handle)(nil)

// Searcher returns the leased searcher.
func (h *handle) Searcher() index.Searcher { return h.searcher }

// Release returns the lease. Further calls are no-ops.
func (h *handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		h.entry.refs.Add(-1)
	}
}
