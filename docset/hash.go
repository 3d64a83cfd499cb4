package docset

import (
	"iter"

	"github.com/hupe1980/joingo/core"
)

// HashDocSet trades memory for constant-time membership. It keeps the
// originating sorted slice so iteration stays ordered.
type HashDocSet struct {
	docs []core.DocID
	m    map[core.DocID]struct{}
}

var _ DocSet = (*HashDocSet)(nil)

// NewHashDocSet builds a hash set over docs, which must be sorted ascending
// and free of duplicates. The slice is retained for iteration.
func NewHashDocSet(docs []core.DocID) *HashDocSet {
	m := make(map[core.DocID]struct{}, len(docs))
	for _, id := range docs {
		m[id] = struct{}{}
	}
	return &HashDocSet{docs: docs, m: m}
}

// Size returns the number of documents in the set.
func (s *HashDocSet) Size() int { return len(s.docs) }

// Contains reports whether id is in the set.
func (s *HashDocSet) Contains(id core.DocID) bool {
	_, ok := s.m[id]
	return ok
}

// Intersects reports whether the set shares at least one document with other.
func (s *HashDocSet) Intersects(other DocSet) bool {
	return intersects(s, other)
}

// Union returns a new set holding all documents of both sets.
func (s *HashDocSet) Union(other DocSet) DocSet {
	return union(s, other)
}

// AddAllTo adds every document of the set to dst.
func (s *HashDocSet) AddAllTo(dst *BitmapDocSet) {
	for _, id := range s.docs {
		dst.Add(id)
	}
}

// Predicate returns a map-lookup membership test.
func (s *HashDocSet) Predicate() func(core.DocID) bool {
	m := s.m
	return func(id core.DocID) bool {
		_, ok := m[id]
		return ok
	}
}

// Iterator iterates the set in ascending DocID order.
func (s *HashDocSet) Iterator() iter.Seq[core.DocID] {
	return func(yield func(core.DocID) bool) {
		for _, id := range s.docs {
			if !yield(id) {
				return
			}
		}
	}
}
