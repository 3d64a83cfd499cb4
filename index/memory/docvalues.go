package memory

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/index"
)

// docValues iterates a frozen value index. Every Searcher.Values call mints
// a fresh instance, so concurrent consumers never share iteration state.
type docValues struct {
	values  [][]byte
	docOrds [][]int64
	cur     []int64
	pos     int
}

var _ index.DocValues = (*docValues)(nil)

func (v *docValues) ValueCount() int64 {
	return int64(len(v.values))
}

func (v *docValues) LookupOrd(ord int64) ([]byte, error) {
	if ord < 0 || ord >= int64(len(v.values)) {
		return nil, fmt.Errorf("memory: ordinal %d out of range [0,%d)", ord, len(v.values))
	}
	return v.values[ord], nil
}

func (v *docValues) LookupValue(value []byte) (int64, error) {
	i, found := slices.BinarySearchFunc(v.values, value, bytes.Compare)
	if found {
		return int64(i), nil
	}
	return -(int64(i) + 1), nil
}

func (v *docValues) AdvanceExact(id core.DocID) (bool, error) {
	if int(id) >= len(v.docOrds) {
		return false, fmt.Errorf("memory: doc %d out of range [0,%d)", id, len(v.docOrds))
	}

	v.cur = v.docOrds[id]
	v.pos = 0

	return len(v.cur) > 0, nil
}

func (v *docValues) NextOrd() (int64, bool) {
	if v.pos >= len(v.cur) {
		return 0, false
	}

	ord := v.cur[v.pos]
	v.pos++

	return ord, true
}
