package cache

import (
	"container/list"
	"sync"

	"github.com/hupe1980/joingo/docset"
)

// LRU is an entry-bounded DocSetCache with least-recently-used eviction.
type LRU struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently used
	entries map[Key]*list.Element
}

type lruEntry struct {
	key Key
	set docset.DocSet
}

var _ DocSetCache = (*LRU)(nil)

// NewLRU returns a cache holding at most maxSize sets.
func NewLRU(maxSize int) *LRU {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &LRU{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[Key]*list.Element),
	}
}

// GetOrCompute returns the cached set for key, computing and storing it on a
// miss. Concurrent misses on the same key may run compute more than once;
// the sets are immutable, so the duplicate work is harmless and the first
// stored result wins.
func (c *LRU) GetOrCompute(key Key, compute func() (docset.DocSet, error)) (docset.DocSet, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		set := el.Value.(*lruEntry).set
		c.mu.Unlock()
		return set, nil
	}
	c.mu.Unlock()

	set, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*lruEntry).set, nil
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, set: set})
	for c.order.Len() > c.maxSize {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*lruEntry).key)
	}

	return set, nil
}

// Len returns the number of cached sets.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}
