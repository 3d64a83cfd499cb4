package docset

import (
	"iter"
	"slices"

	"github.com/hupe1980/joingo/core"
)

// SortedDocSet stores documents as a sorted slice of DocIDs. It is the
// cheapest representation for small sets; membership is a binary search.
type SortedDocSet struct {
	docs []core.DocID
}

var _ DocSet = (*SortedDocSet)(nil)

// NewSortedDocSet wraps docs, which must be sorted ascending and free of
// duplicates. The slice is retained; callers must not modify it afterwards.
func NewSortedDocSet(docs []core.DocID) *SortedDocSet {
	return &SortedDocSet{docs: docs}
}

// SortedDocSetOf copies, sorts and deduplicates docs.
func SortedDocSetOf(docs ...core.DocID) *SortedDocSet {
	out := slices.Clone(docs)
	slices.Sort(out)
	return &SortedDocSet{docs: slices.Compact(out)}
}

// Size returns the number of documents in the set.
func (s *SortedDocSet) Size() int { return len(s.docs) }

// Contains reports whether id is in the set.
func (s *SortedDocSet) Contains(id core.DocID) bool {
	_, ok := slices.BinarySearch(s.docs, id)
	return ok
}

// Intersects reports whether the set shares at least one document with other.
func (s *SortedDocSet) Intersects(other DocSet) bool {
	if o, ok := other.(*SortedDocSet); ok {
		return intersectsSorted(s.docs, o.docs)
	}
	return intersects(s, other)
}

func intersectsSorted(a, b []core.DocID) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			return true
		}
	}
	return false
}

// Union returns a new set holding all documents of both sets.
func (s *SortedDocSet) Union(other DocSet) DocSet {
	return union(s, other)
}

// AddAllTo adds every document of the set to dst.
func (s *SortedDocSet) AddAllTo(dst *BitmapDocSet) {
	for _, id := range s.docs {
		dst.Add(id)
	}
}

// Predicate returns a binary-search membership test over the backing slice.
func (s *SortedDocSet) Predicate() func(core.DocID) bool {
	docs := s.docs
	return func(id core.DocID) bool {
		_, ok := slices.BinarySearch(docs, id)
		return ok
	}
}

// Iterator iterates the set in ascending DocID order.
func (s *SortedDocSet) Iterator() iter.Seq[core.DocID] {
	return func(yield func(core.DocID) bool) {
		for _, id := range s.docs {
			if !yield(id) {
				return
			}
		}
	}
}
