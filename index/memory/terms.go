package memory

import (
	"bytes"
	"slices"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/index"
)

// termsEnum walks a frozen term dictionary in ascending byte order.
type termsEnum struct {
	f   *field
	pos int // -1 before the first term
}

var _ index.TermsEnum = (*termsEnum)(nil)

func (e *termsEnum) Next() bool {
	e.pos++
	return e.pos < len(e.f.terms)
}

func (e *termsEnum) Term() []byte {
	return e.f.terms[e.pos]
}

func (e *termsEnum) DocFreq() int {
	return e.f.postings[e.pos].docFreq
}

func (e *termsEnum) SeekCeil(target []byte) (index.SeekStatus, error) {
	i, found := slices.BinarySearchFunc(e.f.terms, target, bytes.Compare)
	e.pos = i

	switch {
	case found:
		return index.SeekFound, nil
	case i >= len(e.f.terms):
		return index.SeekEnd, nil
	default:
		return index.SeekNotFound, nil
	}
}

func (e *termsEnum) Postings() (index.Postings, error) {
	return newPostings(e.f.postings[e.pos]), nil
}

func (e *termsEnum) Err() error { return nil }

// postings iterates a segmented posting list, folding each segment's base
// offset into the yielded DocIDs.
type postings struct {
	segs []segmentPostings
	seg  int
	i    int
	cur  core.DocID
}

var _ index.Postings = (*postings)(nil)

func newPostings(pl postingList) *postings {
	return &postings{segs: pl.segs, i: -1}
}

func (p *postings) Next() bool {
	p.i++
	for p.seg < len(p.segs) {
		s := p.segs[p.seg]
		if p.i < len(s.docs) {
			p.cur = s.base + core.DocID(s.docs[p.i])
			return true
		}
		p.seg++
		p.i = 0
	}
	return false
}

func (p *postings) DocID() core.DocID { return p.cur }

func (p *postings) Err() error { return nil }
