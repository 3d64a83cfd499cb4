package docset

import (
	"slices"

	"github.com/hupe1980/joingo/core"
)

// Builder accumulates per-term result sets into one merged DocSet.
//
// Small sets are deferred in a list so that joins touching only a handful of
// documents never allocate a bitmap. Once the deferred total would exceed
// maxSortedSize the builder switches to a bitmap and all further
// accumulation goes through it. The final merge deduplicates in either case,
// so callers may feed overlapping sets (multi-valued fields produce them).
type Builder struct {
	maxSortedSize int
	sets          []DocSet
	setDocs       int
	bits          *BitmapDocSet
}

// NewBuilder returns a builder whose deferred lists may hold at most
// maxSortedSize documents before promotion to a bitmap.
func NewBuilder(maxSortedSize int) *Builder {
	return &Builder{maxSortedSize: maxSortedSize}
}

// MaybePromote switches to bitmap accumulation if folding incoming more
// documents into the deferred lists would exceed the sorted-size cap.
// Promotion requires at least one already-deferred set: a single oversized
// set is cheaper to keep in its original representation.
func (b *Builder) MaybePromote(incoming int) {
	if b.bits == nil && incoming+b.setDocs > b.maxSortedSize && len(b.sets) > 0 {
		b.bits = NewBitmapDocSet()
	}
}

// Promoted reports whether the builder accumulates into a bitmap.
func (b *Builder) Promoted() bool { return b.bits != nil }

// AddDoc adds a single document. Valid only after promotion; the direct
// postings path uses it to skip materializing per-term sets.
func (b *Builder) AddDoc(id core.DocID) {
	b.bits.Add(id)
}

// AddSet folds a per-term result set into the accumulation. A bitmap-backed
// set arriving before promotion becomes the accumulator itself.
func (b *Builder) AddSet(s DocSet) {
	b.setDocs += s.Size()

	if b.bits != nil {
		s.AddAllTo(b.bits)
		return
	}

	if bm, ok := s.(*BitmapDocSet); ok {
		b.bits = bm.Clone()
		return
	}

	b.sets = append(b.sets, s)
}

// SetDocs returns the total size of all sets passed to AddSet, duplicates
// included.
func (b *Builder) SetDocs() int { return b.setDocs }

// Deferred returns the number of sets currently parked in the deferred list.
func (b *Builder) Deferred() int { return len(b.sets) }

// Build merges the accumulated sets into the final DocSet.
func (b *Builder) Build() DocSet {
	if b.bits != nil {
		for _, s := range b.sets {
			s.AddAllTo(b.bits)
		}
		return b.bits
	}

	switch len(b.sets) {
	case 0:
		return Empty()
	case 1:
		return b.sets[0]
	}

	docs := make([]core.DocID, 0, b.setDocs)
	for _, s := range b.sets {
		for id := range s.Iterator() {
			docs = append(docs, id)
		}
	}

	slices.Sort(docs)

	return NewSortedDocSet(slices.Compact(docs))
}
