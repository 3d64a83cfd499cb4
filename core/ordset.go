package core

import "github.com/bits-and-blooms/bitset"

// OrdSet tracks a set of value ordinals. Ordinal spaces are dense and
// bounded by the value count of a field, so the set is backed by a plain
// bit array rather than a compressed bitmap.
//
// The zero value is not usable; create instances with NewOrdSet.
type OrdSet struct {
	bits *bitset.BitSet
}

// NewOrdSet creates an ordinal set sized for the given value count.
func NewOrdSet(valueCount int64) *OrdSet {
	if valueCount < 0 {
		valueCount = 0
	}

	return &OrdSet{bits: bitset.New(uint(valueCount))}
}

// Set marks the ordinal as present.
func (s *OrdSet) Set(ord int64) {
	s.bits.Set(uint(ord))
}

// Test reports whether the ordinal is present.
func (s *OrdSet) Test(ord int64) bool {
	return s.bits.Test(uint(ord))
}

// Count returns the number of ordinals present.
func (s *OrdSet) Count() int {
	return int(s.bits.Count())
}

// NextSet returns the first present ordinal at or after from, or false when
// no further ordinal is present.
func (s *OrdSet) NextSet(from int64) (int64, bool) {
	if from < 0 {
		from = 0
	}

	ord, ok := s.bits.NextSet(uint(from))
	if !ok {
		return 0, false
	}

	return int64(ord), true
}
