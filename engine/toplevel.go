package engine

import (
	"bytes"
	"context"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/index"
)

// topLevelEngine joins through the value ordinal spaces of the two fields.
// It never materializes destination documents: the distinct source ordinals
// are mapped onto destination ordinals, and membership is answered later by
// predicates that walk a document's ordinals against the mapped set.
type topLevelEngine struct{}

var _ Engine = (*topLevelEngine)(nil)

// Execute implements the Engine interface.
func (e *topLevelEngine) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	if info, _ := p.From.FieldInfo(p.FromField); info.Point {
		return nil, &ConfigError{Side: SideFrom, Field: p.FromField, Reason: "point fields are not supported by the top-level strategy"}
	}

	if info, _ := p.To.FieldInfo(p.ToField); info.Point {
		return nil, &ConfigError{Side: SideTo, Field: p.ToField, Reason: "point fields are not supported by the top-level strategy"}
	}

	fromDV, err := p.From.Values(p.FromField)
	if err != nil {
		return nil, err
	}

	toDV, err := p.To.Values(p.ToField)
	if err != nil {
		return nil, err
	}

	fromSet, err := p.From.DocSet(ctx, p.SubQuery)
	if err != nil {
		return nil, err
	}

	stats := Stats{FromSetSize: fromSet.Size()}

	fromOrds, err := collectOrds(fromDV, fromSet, p.ValuePrefix)
	if err != nil {
		return nil, err
	}

	stats.OrdinalsSeen = fromOrds.Count()

	toOrds := core.NewOrdSet(toDV.ValueCount())

	bounds, err := mapOrds(fromDV, fromOrds, toDV, toOrds)
	if err != nil {
		return nil, err
	}

	stats.OrdinalsMatched = toOrds.Count()

	return &Result{
		mode:    ModeTopLevel,
		toField: p.ToField,
		to:      p.To,
		ordBits: toOrds,
		bounds:  bounds,
		stats:   stats,
	}, nil
}

// mapOrds resolves every source ordinal to its destination ordinal, filling
// toOrds and returning the bounds of the matched range. Source ordinals are
// visited in ascending order, so each lookup is seeded with the previous
// hit: no match can lie below it.
func mapOrds(fromDV index.DocValues, fromOrds *core.OrdSet, toDV index.DocValues, toOrds *core.OrdSet) (Bounds, error) {
	bounds := Bounds{Lower: NoMatches, Upper: 0}

	lastHit := int64(0)

	for ord, ok := fromOrds.NextSet(0); ok; ord, ok = fromOrds.NextSet(ord + 1) {
		value, err := fromDV.LookupOrd(ord)
		if err != nil {
			return bounds, err
		}

		toOrd, err := lookupTerm(toDV, value, lastHit)
		if err != nil {
			return bounds, err
		}

		if toOrd >= 0 {
			toOrds.Set(toOrd)

			if bounds.Lower == NoMatches {
				bounds.Lower = toOrd
			}

			bounds.Upper = toOrd
			lastHit = toOrd
		}
	}

	return bounds, nil
}

// lookupTerm binary-searches the value space for key, restricted to
// ordinals at or above startOrd. It returns the matching ordinal, or the
// insertion point encoded as -(insertionPoint+1) when the key is absent.
func lookupTerm(dv index.DocValues, key []byte, startOrd int64) (int64, error) {
	low, high := startOrd, dv.ValueCount()-1

	for low <= high {
		mid := int64(uint64(low+high) >> 1)

		term, err := dv.LookupOrd(mid)
		if err != nil {
			return 0, err
		}

		switch cmp := bytes.Compare(term, key); {
		case cmp < 0:
			low = mid + 1
		case cmp > 0:
			high = mid - 1
		default:
			return mid, nil
		}
	}

	return -(low + 1), nil
}
