// Package cache provides caching of immutable per-term document sets.
package cache

import "github.com/hupe1980/joingo/docset"

// Key identifies one term's document set within one index generation.
// Generation must change whenever document visibility changes, so stale
// entries age out instead of being served.
type Key struct {
	Field      string
	Term       string
	Generation int64
}

// DocSetCache caches immutable per-term document sets.
//
// Implementations must be safe for concurrent use. Cached sets are shared
// between callers and must never be mutated.
type DocSetCache interface {
	// GetOrCompute returns the cached set for key, computing and storing it
	// on a miss. A compute error is returned as-is and nothing is stored.
	GetOrCompute(key Key, compute func() (docset.DocSet, error)) (docset.DocSet, error)
}
