// Package index defines the capabilities a search index must expose to be
// joinable: term enumeration with document frequencies, posting lists over
// dense DocIDs, a sorted per-field value index with per-document ordinals,
// and set-valued query evaluation. The join engines consume these interfaces
// only; package index/memory provides the reference implementation.
package index

import (
	"context"
	"errors"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
)

// ErrNoSuchIndex is returned when a symbolic index reference cannot be
// resolved to a registered index.
var ErrNoSuchIndex = errors.New("no such index")

// FieldInfo describes a field's capabilities as seen by the join engines.
type FieldInfo struct {
	Name string

	// HasValueIndex reports whether the field carries a sorted value index
	// with per-document ordinals.
	HasValueIndex bool

	// Multivalued reports whether documents may hold more than one value.
	Multivalued bool

	// Point reports whether the field stores numeric points without
	// enumerable terms.
	Point bool
}

// SeekStatus is the outcome of TermsEnum.SeekCeil.
type SeekStatus int

const (
	// SeekFound means the enum is positioned exactly on the target term.
	SeekFound SeekStatus = iota
	// SeekNotFound means the enum is positioned on the smallest term greater
	// than the target.
	SeekNotFound
	// SeekEnd means every term of the field orders before the target.
	SeekEnd
)

// TermsEnum enumerates the terms of one field in ascending byte order.
//
// The enum starts positioned before the first term; Next advances and
// reports whether a term is available. Term, DocFreq and Postings read the
// current position. After Next returns false, Err distinguishes exhaustion
// from an iteration failure.
type TermsEnum interface {
	// Next advances to the next term.
	Next() bool

	// Term returns the current term. The slice is only valid until the next
	// call to Next or SeekCeil.
	Term() []byte

	// DocFreq returns the number of documents containing the current term,
	// deleted documents included.
	DocFreq() int

	// SeekCeil positions the enum at the smallest term >= target.
	SeekCeil(target []byte) (SeekStatus, error)

	// Postings returns the posting list of the current term.
	Postings() (Postings, error)

	// Err returns the first error encountered while iterating.
	Err() error
}

// Postings iterates the documents containing a term in ascending DocID
// order. DocIDs are index-wide; partitioned indexes fold segment offsets in.
type Postings interface {
	// Next advances to the next document.
	Next() bool

	// DocID returns the current document.
	DocID() core.DocID

	// Err returns the first error encountered while iterating.
	Err() error
}

// DocValues is a positional iterator over a field's sorted value index.
//
// The value space assigns each distinct value an ordinal in [0, ValueCount)
// following byte order. Each Searcher.Values call returns an independent
// iterator; they are not safe for concurrent use.
type DocValues interface {
	// ValueCount returns the number of distinct values in the field.
	ValueCount() int64

	// LookupOrd returns the value of the given ordinal.
	LookupOrd(ord int64) ([]byte, error)

	// LookupValue returns the ordinal of value, or, when absent,
	// -(insertionPoint+1) where insertionPoint is the ordinal the value
	// would be inserted at.
	LookupValue(value []byte) (int64, error)

	// AdvanceExact positions the iterator on the given document and reports
	// whether it has at least one value.
	AdvanceExact(id core.DocID) (bool, error)

	// NextOrd returns the document's next ordinal in ascending order.
	// ok is false once the current document's ordinals are exhausted.
	NextOrd() (ord int64, ok bool)
}

// Bits is a read-only bit mask over documents.
type Bits interface {
	Test(id core.DocID) bool
}

// Searcher is a point-in-time view of one index.
type Searcher interface {
	// MaxDoc returns one past the highest DocID ever assigned, deleted
	// documents included.
	MaxDoc() int

	// OpenTime returns the monotonic nanosecond timestamp at which this
	// view was opened. It changes whenever the underlying index is
	// reopened, making it usable as a visibility generation.
	OpenTime() int64

	// LiveDocs returns the live-document mask, or nil when no document has
	// been deleted.
	LiveDocs() Bits

	// FieldInfo returns the capabilities of the named field.
	FieldInfo(field string) (FieldInfo, bool)

	// Terms returns the term enumeration for field, or nil when the field
	// has no indexed terms.
	Terms(field string) (TermsEnum, error)

	// Values returns a fresh ordinal iterator over the field's value index.
	Values(field string) (DocValues, error)

	// DocSet evaluates q and returns the matching live documents.
	DocSet(ctx context.Context, q Query) (docset.DocSet, error)

	// TermDocSet returns the live documents containing term in field.
	// Implementations may serve it from a cache.
	TermDocSet(ctx context.Context, field string, term []byte) (docset.DocSet, error)
}

// Manager resolves symbolic index references to live searchers.
type Manager interface {
	// Acquire returns a ref-counted handle on the named index, warming it
	// first when it is cold. Returns ErrNoSuchIndex for unknown names.
	//
	// Two indexes whose warm-up queries join against each other will
	// deadlock here; keep warm-up queries free of cross-index joins.
	Acquire(ctx context.Context, name string) (Handle, error)
}

// Handle is a ref-counted lease on an index. Release must be called exactly
// once; the searcher must not be used afterwards.
type Handle interface {
	Searcher() Searcher
	Release()
}
