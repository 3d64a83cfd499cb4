package engine

import (
	"bytes"
	"context"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
	"github.com/hupe1980/joingo/index"
)

// materializeEngine joins by enumerating the source terms in order and
// accumulating the destination documents of every term that intersects the
// source document set. Both term dictionaries are sorted, so the
// destination cursor only ever moves forward.
type materializeEngine struct{}

var _ Engine = (*materializeEngine)(nil)

// Execute implements the Engine interface.
func (e *materializeEngine) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	fromInfo, _ := p.From.FieldInfo(p.FromField)
	toInfo, _ := p.To.FieldInfo(p.ToField)

	if fromInfo.Point || toInfo.Point {
		return e.executePoints(ctx, p)
	}

	minDfFrom, minDfTo, maxSorted := p.thresholds()

	fromSet, err := p.From.DocSet(ctx, p.SubQuery)
	if err != nil {
		return nil, err
	}

	stats := Stats{FromSetSize: fromSet.Size()}

	if fromSet.Size() == 0 {
		return &Result{mode: ModeMaterialize, docs: docset.Empty(), stats: stats}, nil
	}

	fromTerms, err := p.From.Terms(p.FromField)
	if err != nil {
		return nil, err
	}

	toTerms, err := p.To.Terms(p.ToField)
	if err != nil {
		return nil, err
	}

	if fromTerms == nil || toTerms == nil {
		return &Result{mode: ModeMaterialize, docs: docset.Empty(), stats: stats}, nil
	}

	fastPred := docset.AsFastLookup(fromSet).Predicate()
	toLive := p.To.LiveDocs()

	builder := docset.NewBuilder(maxSorted)

	positioned := false
	if len(p.ValuePrefix) > 0 {
		st, err := fromTerms.SeekCeil(p.ValuePrefix)
		if err != nil {
			return nil, err
		}

		positioned = st != index.SeekEnd
	} else {
		positioned = fromTerms.Next()
	}

	for positioned {
		term := fromTerms.Term()
		if len(p.ValuePrefix) > 0 && !bytes.HasPrefix(term, p.ValuePrefix) {
			break
		}

		df := fromTerms.DocFreq()

		stats.FromTermCount++
		stats.FromTermTotalDf += df

		intersects := false

		if df < minDfFrom {
			// Rare term. Scanning its postings against the promoted source
			// set is cheaper than materializing a per-term document set.
			stats.FromTermDirect++

			post, err := fromTerms.Postings()
			if err != nil {
				return nil, err
			}

			for post.Next() {
				if fastPred(post.DocID()) {
					intersects = true
					break
				}
			}

			if err := post.Err(); err != nil {
				return nil, err
			}
		} else {
			termSet, err := p.From.TermDocSet(ctx, p.FromField, term)
			if err != nil {
				return nil, err
			}

			intersects = fromSet.Intersects(termSet)
		}

		if intersects {
			stats.FromTermHits++
			stats.FromTermHitsDf += df

			st, err := toTerms.SeekCeil(term)
			if err != nil {
				return nil, err
			}

			// The destination dictionary is exhausted. No later source term
			// can match, both enumerations being in sorted order.
			if st == index.SeekEnd {
				break
			}

			if st == index.SeekFound {
				toDf := toTerms.DocFreq()

				stats.ToTermHits++
				stats.ToTermHitsDf += toDf

				builder.MaybePromote(toDf)

				if toDf < minDfTo && builder.Promoted() {
					stats.ToTermDirect++

					if err := addPostings(toTerms, toLive, builder); err != nil {
						return nil, err
					}
				} else {
					termSet, err := p.To.TermDocSet(ctx, p.ToField, term)
					if err != nil {
						return nil, err
					}

					builder.AddSet(termSet)
				}
			}
		}

		positioned = fromTerms.Next()
	}

	if err := fromTerms.Err(); err != nil {
		return nil, err
	}

	stats.SmallSetsDeferred = builder.Deferred()
	stats.ResultDocs = builder.SetDocs()

	return &Result{mode: ModeMaterialize, docs: builder.Build(), stats: stats}, nil
}

// addPostings feeds the live postings of the current destination term into
// the builder's bitmap accumulator.
func addPostings(te index.TermsEnum, live index.Bits, builder *docset.Builder) error {
	post, err := te.Postings()
	if err != nil {
		return err
	}

	for post.Next() {
		id := post.DocID()
		if live == nil || live.Test(id) {
			builder.AddDoc(id)
		}
	}

	return post.Err()
}

// executePoints joins onto a point field. The distinct source values are
// collected through the source value index and handed to the configured
// point join function, which builds the destination query.
func (e *materializeEngine) executePoints(ctx context.Context, p Params) (*Result, error) {
	if p.PointJoin == nil {
		side, field := SideTo, p.ToField
		if info, _ := p.To.FieldInfo(p.ToField); !info.Point {
			side, field = SideFrom, p.FromField
		}

		return nil, &ConfigError{Side: side, Field: field, Reason: "point field join requires a point join function"}
	}

	fromSet, err := p.From.DocSet(ctx, p.SubQuery)
	if err != nil {
		return nil, err
	}

	stats := Stats{FromSetSize: fromSet.Size()}

	if fromSet.Size() == 0 {
		return &Result{mode: ModeMaterialize, docs: docset.Empty(), stats: stats}, nil
	}

	dv, err := p.From.Values(p.FromField)
	if err != nil {
		return nil, err
	}

	ords, err := collectOrds(dv, fromSet, nil)
	if err != nil {
		return nil, err
	}

	values := make([][]byte, 0, ords.Count())

	for ord, ok := ords.NextSet(0); ok; ord, ok = ords.NextSet(ord + 1) {
		v, err := dv.LookupOrd(ord)
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	stats.OrdinalsSeen = len(values)

	if len(values) == 0 {
		return &Result{mode: ModeMaterialize, docs: docset.Empty(), stats: stats}, nil
	}

	q, err := p.PointJoin(ctx, p.ToField, values)
	if err != nil {
		return nil, err
	}

	docs, err := p.To.DocSet(ctx, q)
	if err != nil {
		return nil, err
	}

	stats.ResultDocs = docs.Size()

	return &Result{mode: ModeMaterialize, docs: docs, stats: stats}, nil
}

// collectOrds gathers the distinct value ordinals of the documents in set.
// A non-nil prefix restricts collection to values carrying it.
func collectOrds(dv index.DocValues, set docset.DocSet, prefix []byte) (*core.OrdSet, error) {
	ords := core.NewOrdSet(dv.ValueCount())

	var iterErr error

	for id := range set.Iterator() {
		ok, err := dv.AdvanceExact(id)
		if err != nil {
			iterErr = err
			break
		}

		if !ok {
			continue
		}

		for {
			ord, more := dv.NextOrd()
			if !more {
				break
			}

			ords.Set(ord)
		}
	}

	if iterErr != nil {
		return nil, iterErr
	}

	if len(prefix) > 0 {
		return filterOrdsByPrefix(dv, ords, prefix)
	}

	return ords, nil
}

// filterOrdsByPrefix keeps only the ordinals whose value starts with prefix.
func filterOrdsByPrefix(dv index.DocValues, ords *core.OrdSet, prefix []byte) (*core.OrdSet, error) {
	filtered := core.NewOrdSet(dv.ValueCount())

	for ord, ok := ords.NextSet(0); ok; ord, ok = ords.NextSet(ord + 1) {
		v, err := dv.LookupOrd(ord)
		if err != nil {
			return nil, err
		}

		if bytes.HasPrefix(v, prefix) {
			filtered.Set(ord)
		}
	}

	return filtered, nil
}
