// Package memory provides the reference in-memory implementation of the
// index capabilities: a schema-first builder that freezes an immutable
// index with segmented posting lists, sorted per-field value indexes and a
// live-document mask, plus snapshot serialization for cold storage.
package memory

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/index"
)

// FieldConfig declares one field of the schema.
type FieldConfig struct {
	Name string

	// Multivalued allows more than one value per document.
	Multivalued bool

	// Point marks a numeric point field: values land in the value index,
	// but no terms are indexed.
	Point bool

	// NoValues skips building the sorted value index for the field.
	NoValues bool
}

// Schema is the set of fields an index accepts.
type Schema struct {
	Fields []FieldConfig
}

// Document maps field names to the values of one document.
type Document map[string][]string

// Options configure index construction.
type Options struct {
	// SegmentSize partitions posting lists into fixed-size document ranges,
	// mirroring how segmented on-disk indexes assign per-segment bases.
	// Zero keeps a single segment.
	SegmentSize int
}

// Builder accumulates documents and freezes them into an Index.
type Builder struct {
	schema  Schema
	opts    Options
	fields  map[string]*fieldBuilder
	order   []string
	numDocs int
}

type fieldBuilder struct {
	cfg    FieldConfig
	perDoc [][]string
}

// NewBuilder returns a builder for the given schema.
func NewBuilder(schema Schema, optFns ...func(o *Options)) (*Builder, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Builder{
		schema: schema,
		opts:   opts,
		fields: make(map[string]*fieldBuilder, len(schema.Fields)),
	}

	for _, cfg := range schema.Fields {
		if cfg.Name == "" {
			return nil, fmt.Errorf("memory: field name must not be empty")
		}
		if _, ok := b.fields[cfg.Name]; ok {
			return nil, fmt.Errorf("memory: duplicate field %q", cfg.Name)
		}
		b.fields[cfg.Name] = &fieldBuilder{cfg: cfg}
		b.order = append(b.order, cfg.Name)
	}

	return b, nil
}

// WithSegmentSize partitions posting lists into document ranges of size n.
func WithSegmentSize(n int) func(o *Options) {
	return func(o *Options) {
		o.SegmentSize = n
	}
}

// Add indexes one document and returns its DocID. DocIDs are assigned
// densely in insertion order.
func (b *Builder) Add(doc Document) (core.DocID, error) {
	for name, vals := range doc {
		fb, ok := b.fields[name]
		if !ok {
			return 0, fmt.Errorf("memory: unknown field %q", name)
		}
		if !fb.cfg.Multivalued && len(vals) > 1 {
			return 0, fmt.Errorf("memory: field %q is single-valued, got %d values", name, len(vals))
		}
	}

	id := core.DocID(b.numDocs)
	for name, vals := range doc {
		fb := b.fields[name]
		for len(fb.perDoc) <= b.numDocs {
			fb.perDoc = append(fb.perDoc, nil)
		}
		fb.perDoc[id] = slices.Clone(vals)
	}
	b.numDocs++

	return id, nil
}

// Build freezes the accumulated documents into an immutable Index.
func (b *Builder) Build() *Index {
	ix := &Index{
		schema:  b.schema,
		fields:  make(map[string]*field, len(b.fields)),
		order:   slices.Clone(b.order),
		maxDoc:  b.numDocs,
		segSize: b.opts.SegmentSize,
		deleted: roaring.New(),
	}

	for _, name := range b.order {
		ix.fields[name] = b.fields[name].freeze(b.numDocs, b.opts.SegmentSize)
	}

	return ix
}

func (fb *fieldBuilder) freeze(numDocs, segSize int) *field {
	for len(fb.perDoc) < numDocs {
		fb.perDoc = append(fb.perDoc, nil)
	}

	distinct := make(map[string]struct{})
	for _, vals := range fb.perDoc {
		for _, v := range vals {
			distinct[v] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(distinct))
	for v := range distinct {
		sorted = append(sorted, v)
	}
	slices.Sort(sorted)

	dict := make([][]byte, len(sorted))
	ordOf := make(map[string]int64, len(sorted))
	for i, v := range sorted {
		dict[i] = []byte(v)
		ordOf[v] = int64(i)
	}

	hasTerms := !fb.cfg.Point
	hasValues := !fb.cfg.NoValues

	f := &field{
		info: index.FieldInfo{
			Name:          fb.cfg.Name,
			HasValueIndex: hasValues,
			Multivalued:   fb.cfg.Multivalued,
			Point:         fb.cfg.Point,
		},
	}

	var docOrds [][]int64
	if hasValues {
		docOrds = make([][]int64, numDocs)
	}

	var global [][]uint32
	if hasTerms {
		global = make([][]uint32, len(dict))
	}

	for docID, vals := range fb.perDoc {
		if len(vals) == 0 {
			continue
		}

		ords := make([]int64, 0, len(vals))
		for _, v := range vals {
			ords = append(ords, ordOf[v])
		}
		slices.Sort(ords)
		ords = slices.Compact(ords)

		if hasValues {
			docOrds[docID] = ords
		}
		if hasTerms {
			for _, ord := range ords {
				global[ord] = append(global[ord], uint32(docID))
			}
		}
	}

	if hasValues {
		f.values = dict
		f.docOrds = docOrds
	}
	if hasTerms {
		f.terms = dict
		f.postings = make([]postingList, len(dict))
		for i, docs := range global {
			f.postings[i] = buildPostingList(docs, segSize)
		}
	}

	return f
}

// field is the frozen per-field storage. terms and values alias the same
// dictionary when the field is both indexed and value-indexed.
type field struct {
	info index.FieldInfo

	terms    [][]byte
	postings []postingList

	values  [][]byte
	docOrds [][]int64
}

type postingList struct {
	docFreq int
	segs    []segmentPostings
}

type segmentPostings struct {
	base core.DocID
	docs []uint32 // local ids, ascending
}

func buildPostingList(docs []uint32, segSize int) postingList {
	pl := postingList{docFreq: len(docs)}
	if len(docs) == 0 {
		return pl
	}

	if segSize <= 0 {
		pl.segs = []segmentPostings{{base: 0, docs: docs}}
		return pl
	}

	start := 0
	for start < len(docs) {
		base := int(docs[start]) / segSize * segSize
		end := start
		for end < len(docs) && int(docs[end]) < base+segSize {
			end++
		}

		local := make([]uint32, end-start)
		for i, d := range docs[start:end] {
			local[i] = d - uint32(base)
		}

		pl.segs = append(pl.segs, segmentPostings{base: core.DocID(base), docs: local})
		start = end
	}

	return pl
}

// Index is a frozen document collection. Document content is immutable;
// deletions mutate a versioned live mask that searchers snapshot on open.
type Index struct {
	schema  Schema
	fields  map[string]*field
	order   []string
	maxDoc  int
	segSize int

	mu      sync.RWMutex
	deleted *roaring.Bitmap
	gen     int64
}

// MaxDoc returns one past the highest assigned DocID.
func (ix *Index) MaxDoc() int { return ix.maxDoc }

// DeleteDoc marks a document as deleted. Open searchers keep their view;
// searchers opened afterwards observe the deletion.
func (ix *Index) DeleteDoc(id core.DocID) error {
	if int(id) >= ix.maxDoc {
		return fmt.Errorf("memory: doc %d out of range [0,%d)", id, ix.maxDoc)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !ix.deleted.Contains(uint32(id)) {
		ix.deleted.Add(uint32(id))
		ix.gen++
	}

	return nil
}

// Searcher opens a point-in-time view of the index.
func (ix *Index) Searcher(optFns ...func(o *SearcherOptions)) *Searcher {
	opts := SearcherOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	ix.mu.RLock()
	var deleted *roaring.Bitmap
	if !ix.deleted.IsEmpty() {
		deleted = ix.deleted.Clone()
	}
	gen := ix.gen
	ix.mu.RUnlock()

	return &Searcher{
		ix:       ix,
		deleted:  deleted,
		gen:      gen,
		openTime: time.Now().UnixNano(),
		cache:    opts.Cache,
	}
}
