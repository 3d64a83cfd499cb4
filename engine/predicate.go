package engine

import (
	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/index"
)

// Predicate answers membership in a join result for single documents. A
// predicate holds cursor state and serves one goroutine; mint one per
// consumer through Result.Predicate.
type Predicate interface {
	// Matches reports whether the document belongs to the join result.
	Matches(id core.DocID) (bool, error)

	// MatchCost estimates the per-document cost of Matches, for consumers
	// that order their checks from cheap to expensive.
	MatchCost() float64
}

// Predicate returns a fresh membership test over the result.
//
// Materialized results answer from the document set. Top-level results walk
// the document's value ordinals against the matched ordinal set, through a
// value cursor private to the returned predicate. A top-level result with
// no matched ordinals short-circuits without touching the value index.
func (r *Result) Predicate() (Predicate, error) {
	if r.mode == ModeMaterialize {
		return &docsPredicate{pred: r.docs.Predicate()}, nil
	}

	if r.bounds.Lower == NoMatches {
		return noMatchPredicate{}, nil
	}

	dv, err := r.to.Values(r.toField)
	if err != nil {
		return nil, err
	}

	return &ordPredicate{dv: dv, ords: r.ordBits}, nil
}

type docsPredicate struct {
	pred func(core.DocID) bool
}

var _ Predicate = (*docsPredicate)(nil)

// Matches implements the Predicate interface.
func (p *docsPredicate) Matches(id core.DocID) (bool, error) {
	return p.pred(id), nil
}

// MatchCost implements the Predicate interface.
func (p *docsPredicate) MatchCost() float64 { return 1 }

// ordPredicate is the expensive half of a top-level join. Advancing the
// value cursor is the cheap phase; walking the ordinals against the matched
// set is the expensive one. The ordinal set is shared across predicates and
// read-only, the cursor is private.
type ordPredicate struct {
	dv   index.DocValues
	ords *core.OrdSet
}

var _ Predicate = (*ordPredicate)(nil)

// Matches implements the Predicate interface.
func (p *ordPredicate) Matches(id core.DocID) (bool, error) {
	ok, err := p.dv.AdvanceExact(id)
	if err != nil || !ok {
		return false, err
	}

	for {
		ord, more := p.dv.NextOrd()
		if !more {
			return false, nil
		}

		if p.ords.Test(ord) {
			return true, nil
		}
	}
}

// MatchCost implements the Predicate interface.
func (p *ordPredicate) MatchCost() float64 { return 10 }

type noMatchPredicate struct{}

var _ Predicate = noMatchPredicate{}

// Matches implements the Predicate interface.
func (noMatchPredicate) Matches(core.DocID) (bool, error) { return false, nil }

// MatchCost implements the Predicate interface.
func (noMatchPredicate) MatchCost() float64 { return 0 }
