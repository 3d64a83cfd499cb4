// Package engine executes document joins between two searchers. A join maps
// the values of a source field, restricted to the documents matching a
// sub-query, onto the documents of a destination field.
//
// Two strategies are available. The materializing strategy enumerates the
// source terms and builds the full destination document set up front. The
// top-level strategy maps source value ordinals into the destination value
// space and answers membership lazily, one document at a time.
package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
	"github.com/hupe1980/joingo/index"
)

// Mode selects the join strategy.
type Mode int

const (
	// ModeMaterialize enumerates source terms and materializes the complete
	// destination document set.
	ModeMaterialize Mode = iota
	// ModeTopLevel maps source ordinals into the destination value space and
	// answers membership through per-document predicates.
	ModeTopLevel
)

// String implements the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeMaterialize:
		return "materialize"
	case ModeTopLevel:
		return "toplevel"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PointJoinFunc builds the destination query for a join onto a point field.
// It receives the distinct source values selected by the sub-query and
// returns a query to evaluate against the destination searcher.
type PointJoinFunc func(ctx context.Context, toField string, values [][]byte) (index.Query, error)

// Params describes a single join execution.
type Params struct {
	// FromField is the source field whose values drive the join.
	FromField string

	// ToField is the destination field the values are mapped onto.
	ToField string

	// From is the searcher the sub-query runs against.
	From index.Searcher

	// To is the searcher the result refers to.
	To index.Searcher

	// SubQuery selects the source documents.
	SubQuery index.Query

	// ValuePrefix restricts the join to source values with this prefix.
	// Empty means no restriction.
	ValuePrefix []byte

	// MinDocFreqFrom is the document frequency below which a source term is
	// checked by a direct postings scan instead of a cached document set.
	// Zero derives the threshold from the source index size.
	MinDocFreqFrom int

	// MinDocFreqTo is the document frequency below which a destination term
	// is accumulated by a direct postings scan once a bitmap accumulator
	// exists. Zero derives the threshold from the destination index size.
	MinDocFreqTo int

	// MaxSortedSize bounds the total size of sorted sets accumulated before
	// the result switches to a bitmap. Zero derives the bound from the
	// destination index size.
	MaxSortedSize int

	// PointJoin handles joins onto point fields. The materializing strategy
	// requires it when either side is a point field.
	PointJoin PointJoinFunc
}

// thresholds resolves the per-execution frequency thresholds, deriving any
// unset value from the index sizes.
func (p Params) thresholds() (minDfFrom, minDfTo, maxSorted int) {
	minDfFrom = p.MinDocFreqFrom
	if minDfFrom <= 0 {
		minDfFrom = max(5, p.From.MaxDoc()>>13)
	}

	minDfTo = p.MinDocFreqTo
	if minDfTo <= 0 {
		minDfTo = max(5, p.To.MaxDoc()>>13)
	}

	maxSorted = p.MaxSortedSize
	if maxSorted <= 0 {
		maxSorted = max(10, p.To.MaxDoc()>>10)
	}

	return minDfFrom, minDfTo, maxSorted
}

// Engine executes joins with a fixed strategy. Implementations hold no
// per-execution state and are safe for concurrent use.
type Engine interface {
	// Execute runs the join described by p.
	Execute(ctx context.Context, p Params) (*Result, error)
}

// New returns the engine for the given mode.
func New(mode Mode) (Engine, error) {
	switch mode {
	case ModeMaterialize:
		return &materializeEngine{}, nil
	case ModeTopLevel:
		return &topLevelEngine{}, nil
	default:
		return nil, fmt.Errorf("engine: unknown mode %d", int(mode))
	}
}

// Stats reports counters collected during a single join execution. All
// fields are set once by Execute and never mutated afterwards.
type Stats struct {
	// FromSetSize is the number of source documents the sub-query matched.
	FromSetSize int

	// FromTermCount is the number of source terms enumerated.
	FromTermCount int

	// FromTermTotalDf is the summed document frequency of enumerated source
	// terms.
	FromTermTotalDf int

	// FromTermDirect is the number of source terms checked by a direct
	// postings scan.
	FromTermDirect int

	// FromTermHits is the number of source terms intersecting the source
	// document set.
	FromTermHits int

	// FromTermHitsDf is the summed document frequency of the hit source
	// terms.
	FromTermHitsDf int

	// ToTermHits is the number of destination terms matched by a hit source
	// term.
	ToTermHits int

	// ToTermHitsDf is the summed document frequency of matched destination
	// terms.
	ToTermHitsDf int

	// ToTermDirect is the number of destination terms accumulated by a
	// direct postings scan.
	ToTermDirect int

	// SmallSetsDeferred is the number of small sorted sets still buffered
	// when accumulation finished.
	SmallSetsDeferred int

	// ResultDocs is the total size of the accumulated destination sets
	// before deduplication.
	ResultDocs int

	// OrdinalsSeen is the number of distinct source ordinals collected by
	// the top-level strategy, or the number of distinct source values for a
	// point join.
	OrdinalsSeen int

	// OrdinalsMatched is the number of destination ordinals the top-level
	// strategy mapped successfully.
	OrdinalsMatched int
}

// Bounds brackets the destination ordinals matched by a top-level join.
type Bounds struct {
	Lower int64
	Upper int64
}

// NoMatches is the Lower bound of a top-level join that matched no
// destination ordinal.
const NoMatches int64 = -1

// Result is the outcome of one join execution.
//
// A materialized result carries the destination document set, available
// through Docs. A top-level result carries the matched destination ordinals
// and their bounds; membership is answered through predicates minted by
// Predicate. Results are immutable and safe to share between goroutines.
type Result struct {
	mode    Mode
	docs    docset.DocSet
	toField string
	to      index.Searcher
	ordBits *core.OrdSet
	bounds  Bounds
	stats   Stats
}

// Mode reports the strategy that produced the result.
func (r *Result) Mode() Mode { return r.mode }

// Stats returns the execution counters.
func (r *Result) Stats() Stats { return r.stats }

// Docs returns the materialized destination document set. It returns nil
// for top-level results.
func (r *Result) Docs() docset.DocSet { return r.docs }

// Bounds returns the ordinal bounds of a top-level result. Lower is
// NoMatches when no destination ordinal matched.
func (r *Result) Bounds() Bounds { return r.bounds }

// Ords returns the matched destination ordinals of a top-level result, or
// nil for materialized results. The set is shared and must not be modified.
func (r *Result) Ords() *core.OrdSet { return r.ordBits }
