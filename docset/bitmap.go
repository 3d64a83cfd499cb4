package docset

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/joingo/core"
)

// BitmapDocSet implements a 32-bit Roaring Bitmap over DocIDs.
// It wraps the official roaring implementation. It is the only mutable
// representation; mutate it while building only, never after sharing.
type BitmapDocSet struct {
	rb *roaring.Bitmap
}

var _ DocSet = (*BitmapDocSet)(nil)

// NewBitmapDocSet creates a new empty bitmap set.
func NewBitmapDocSet() *BitmapDocSet {
	return &BitmapDocSet{rb: roaring.New()}
}

// BitmapFromRoaring wraps an existing roaring bitmap. The bitmap is retained.
func BitmapFromRoaring(rb *roaring.Bitmap) *BitmapDocSet {
	return &BitmapDocSet{rb: rb}
}

// Add adds a DocID to the set.
func (b *BitmapDocSet) Add(id core.DocID) {
	b.rb.Add(uint32(id))
}

// Remove removes a DocID from the set.
func (b *BitmapDocSet) Remove(id core.DocID) {
	b.rb.Remove(uint32(id))
}

// IsEmpty returns true if the set is empty.
func (b *BitmapDocSet) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Size returns the number of documents in the set.
func (b *BitmapDocSet) Size() int {
	return int(b.rb.GetCardinality())
}

// Contains reports whether id is in the set.
func (b *BitmapDocSet) Contains(id core.DocID) bool {
	return b.rb.Contains(uint32(id))
}

// Intersects reports whether the set shares at least one document with other.
func (b *BitmapDocSet) Intersects(other DocSet) bool {
	if o, ok := other.(*BitmapDocSet); ok {
		return b.rb.Intersects(o.rb)
	}
	return intersects(b, other)
}

// Union returns a new set holding all documents of both sets.
func (b *BitmapDocSet) Union(other DocSet) DocSet {
	if o, ok := other.(*BitmapDocSet); ok {
		return &BitmapDocSet{rb: roaring.Or(b.rb, o.rb)}
	}
	return union(b, other)
}

// And intersects the set with other in place.
func (b *BitmapDocSet) And(other *BitmapDocSet) {
	b.rb.And(other.rb)
}

// AndNot removes every document of other from the set in place.
func (b *BitmapDocSet) AndNot(other *BitmapDocSet) {
	b.rb.AndNot(other.rb)
}

// AddAllTo adds every document of the set to dst.
func (b *BitmapDocSet) AddAllTo(dst *BitmapDocSet) {
	dst.rb.Or(b.rb)
}

// Clone returns a deep copy of the set.
func (b *BitmapDocSet) Clone() *BitmapDocSet {
	return &BitmapDocSet{rb: b.rb.Clone()}
}

// Predicate returns a bitmap membership test.
func (b *BitmapDocSet) Predicate() func(core.DocID) bool {
	rb := b.rb
	return func(id core.DocID) bool {
		return rb.Contains(uint32(id))
	}
}

// Iterator iterates the set in ascending DocID order.
func (b *BitmapDocSet) Iterator() iter.Seq[core.DocID] {
	return func(yield func(core.DocID) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(core.DocID(it.Next())) {
				return
			}
		}
	}
}

// GetSizeInBytes returns the in-memory size of the bitmap in bytes.
func (b *BitmapDocSet) GetSizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}
