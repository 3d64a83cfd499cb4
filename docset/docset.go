// Package docset provides immutable sets of documents identified by dense
// 32-bit DocIDs. A set has one of several internal representations that
// trade memory for lookup speed; all representations agree on membership,
// size and ascending iteration order.
package docset

import (
	"iter"

	"github.com/hupe1980/joingo/core"
)

// DocSet is a set of documents. Implementations yield ascending DocIDs from
// Iterator and are safe for concurrent readers once fully constructed.
type DocSet interface {
	// Size returns the number of documents in the set.
	Size() int

	// Contains reports whether id is in the set.
	Contains(id core.DocID) bool

	// Intersects reports whether the set shares at least one document with other.
	Intersects(other DocSet) bool

	// Union returns a new set holding all documents of both sets.
	Union(other DocSet) DocSet

	// AddAllTo adds every document of the set to dst.
	AddAllTo(dst *BitmapDocSet)

	// Predicate returns a membership test bound to the concrete
	// representation, for tight per-document loops.
	Predicate() func(core.DocID) bool

	// Iterator iterates the set in ascending DocID order.
	Iterator() iter.Seq[core.DocID]
}

var emptySet DocSet = &SortedDocSet{}

// Empty returns the shared empty set.
func Empty() DocSet { return emptySet }

// AsFastLookup returns a set with the same contents optimized for random
// membership probes. Sorted sets are rebuilt as hash sets; other
// representations already probe in constant time and are returned unchanged.
func AsFastLookup(s DocSet) DocSet {
	if sd, ok := s.(*SortedDocSet); ok {
		return NewHashDocSet(sd.docs)
	}
	return s
}

// intersects probes the larger set with the members of the smaller one.
func intersects(a, b DocSet) bool {
	if b.Size() < a.Size() {
		a, b = b, a
	}
	pred := b.Predicate()
	for id := range a.Iterator() {
		if pred(id) {
			return true
		}
	}
	return false
}

// union folds both sets into a fresh bitmap.
func union(a, b DocSet) DocSet {
	dst := NewBitmapDocSet()
	a.AddAllTo(dst)
	b.AddAllTo(dst)
	return dst
}
