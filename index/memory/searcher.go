package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/joingo/cache"
	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
	"github.com/hupe1980/joingo/index"
)

// SearcherOptions configure a point-in-time view.
type SearcherOptions struct {
	// Cache serves per-term document sets. It may be shared across
	// searchers and indexes; keys carry the visibility generation.
	Cache cache.DocSetCache
}

// WithDocSetCache routes TermDocSet lookups through c.
func WithDocSetCache(c cache.DocSetCache) func(o *SearcherOptions) {
	return func(o *SearcherOptions) {
		o.Cache = c
	}
}

// Searcher is a point-in-time view of an Index.
type Searcher struct {
	ix       *Index
	deleted  *roaring.Bitmap // nil when this view has no deletions
	gen      int64
	openTime int64
	cache    cache.DocSetCache
}

var _ index.Searcher = (*Searcher)(nil)

// MaxDoc returns one past the highest DocID ever assigned.
func (s *Searcher) MaxDoc() int { return s.ix.maxDoc }

// OpenTime returns the nanosecond timestamp at which this view was opened.
func (s *Searcher) OpenTime() int64 { return s.openTime }

// LiveDocs returns the live-document mask, or nil when no document has been
// deleted in this view.
func (s *Searcher) LiveDocs() index.Bits {
	if s.deleted == nil {
		return nil
	}
	return liveBits{deleted: s.deleted}
}

type liveBits struct {
	deleted *roaring.Bitmap
}

func (b liveBits) Test(id core.DocID) bool {
	return !b.deleted.Contains(uint32(id))
}

// FieldInfo returns the capabilities of the named field.
func (s *Searcher) FieldInfo(field string) (index.FieldInfo, bool) {
	f, ok := s.ix.fields[field]
	if !ok {
		return index.FieldInfo{}, false
	}
	return f.info, true
}

// Terms returns the term enumeration for field, or nil when the field has
// no indexed terms.
func (s *Searcher) Terms(field string) (index.TermsEnum, error) {
	f, ok := s.ix.fields[field]
	if !ok || f.terms == nil {
		return nil, nil
	}
	return &termsEnum{f: f, pos: -1}, nil
}

// Values returns a fresh ordinal iterator over the field's value index.
func (s *Searcher) Values(field string) (index.DocValues, error) {
	f, ok := s.ix.fields[field]
	if !ok || f.values == nil {
		return nil, fmt.Errorf("memory: field %q has no value index", field)
	}
	return &docValues{values: f.values, docOrds: f.docOrds}, nil
}

// DocSet evaluates q and returns the matching live documents.
func (s *Searcher) DocSet(ctx context.Context, q index.Query) (docset.DocSet, error) {
	switch q := q.(type) {
	case *index.TermQuery:
		return s.TermDocSet(ctx, q.Field, q.Value)

	case *index.TermSetQuery:
		maxSorted := s.ix.maxDoc >> 10
		if maxSorted < 10 {
			maxSorted = 10
		}
		b := docset.NewBuilder(maxSorted)
		for _, v := range q.Values {
			set, err := s.TermDocSet(ctx, q.Field, v)
			if err != nil {
				return nil, err
			}
			if set.Size() == 0 {
				continue
			}
			b.MaybePromote(set.Size())
			b.AddSet(set)
		}
		return b.Build(), nil

	case *index.MatchAllQuery:
		rb := roaring.New()
		if s.ix.maxDoc > 0 {
			rb.AddRange(0, uint64(s.ix.maxDoc))
		}
		if s.deleted != nil {
			rb.AndNot(s.deleted)
		}
		return docset.BitmapFromRoaring(rb), nil

	default:
		return nil, fmt.Errorf("memory: unsupported query type %T", q)
	}
}

// TermDocSet returns the live documents containing term in field, served
// from the configured cache when possible.
func (s *Searcher) TermDocSet(_ context.Context, field string, term []byte) (docset.DocSet, error) {
	if s.cache == nil {
		return s.computeTermDocSet(field, term)
	}

	key := cache.Key{Field: field, Term: string(term), Generation: s.gen}
	return s.cache.GetOrCompute(key, func() (docset.DocSet, error) {
		return s.computeTermDocSet(field, term)
	})
}

func (s *Searcher) computeTermDocSet(field string, term []byte) (docset.DocSet, error) {
	f, ok := s.ix.fields[field]
	if !ok || f.terms == nil {
		return docset.Empty(), nil
	}

	i, found := slices.BinarySearchFunc(f.terms, term, bytes.Compare)
	if !found {
		return docset.Empty(), nil
	}
	pl := f.postings[i]

	// Small sets stay sorted arrays; docFreq bounds the live count.
	if smallSize := s.ix.maxDoc>>6 + 5; pl.docFreq <= smallSize {
		docs := make([]core.DocID, 0, pl.docFreq)
		it := newPostings(pl)
		for it.Next() {
			if id := it.DocID(); s.deleted == nil || !s.deleted.Contains(uint32(id)) {
				docs = append(docs, id)
			}
		}
		return docset.NewSortedDocSet(docs), nil
	}

	bm := docset.NewBitmapDocSet()
	it := newPostings(pl)
	for it.Next() {
		if id := it.DocID(); s.deleted == nil || !s.deleted.Contains(uint32(id)) {
			bm.Add(id)
		}
	}
	return bm, nil
}
