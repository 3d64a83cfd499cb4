// Package joingo joins documents across search indexes.
//
// This file implements the Joiner facade: request-scoped weight creation,
// cross-index resolution and the memoized join execution.
package joingo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/joingo/engine"
	"github.com/hupe1980/joingo/index"
	"github.com/hupe1980/joingo/session"
)

// Request carries the index view and lifetime of one search request.
type Request struct {
	// IndexName is the name of the index being searched. A join whose
	// FromIndex matches it stays on Searcher without touching the manager.
	IndexName string

	// Searcher is the point-in-time view the request runs against.
	Searcher index.Searcher

	// Scope collects the release hooks of everything borrowed while the
	// request runs. Required for cross-index joins; the caller closes it
	// when the request ends.
	Scope *session.Scope
}

// Joiner prepares join evaluations against a set of indexes.
// A Joiner is immutable and safe for concurrent use.
type Joiner struct {
	manager   index.Manager
	pointJoin engine.PointJoinFunc
	metrics   MetricsCollector
	logger    *Logger
}

// NewJoiner creates a new Joiner.
func NewJoiner(optFns ...Option) *Joiner {
	opts := applyOptions(optFns)

	return &Joiner{
		manager:   opts.manager,
		pointJoin: opts.pointJoin,
		metrics:   opts.metricsCollector,
		logger:    opts.logger,
	}
}

// Weight prepares one evaluation of join for the given request.
//
// It resolves the join's source index, parking the borrowed searcher on the
// request scope, and captures the resolved searcher's open timestamp into
// the join's identity. Both fields are validated up front so a misconfigured
// join fails here rather than on first use.
//
// Acquiring the source index blocks while that index warms. Two indexes
// whose warm-up queries join against each other deadlock here; keep warm-up
// queries free of cross-index joins.
func (j *Joiner) Weight(ctx context.Context, req *Request, join *Join) (*Weight, error) {
	if req == nil || req.Searcher == nil {
		return nil, fmt.Errorf("joingo: request with a searcher is required")
	}
	if join == nil {
		return nil, fmt.Errorf("joingo: join is required")
	}
	if join.SubQuery == nil {
		return nil, fmt.Errorf("joingo: join sub-query is required")
	}

	sess := session.New(req.Scope, j.manager, req.IndexName, req.Searcher)

	start := time.Now()
	from, openTime, err := sess.Resolve(ctx, join.FromIndex)
	err = translateError(err)

	if join.FromIndex != "" && join.FromIndex != req.IndexName {
		j.metrics.RecordResolve(time.Since(start), err)
		j.logger.LogResolve(ctx, join.FromIndex, err)
	}

	if err != nil {
		return nil, err
	}

	join.openTime = openTime

	p := engine.Params{
		FromField:      join.FromField,
		ToField:        join.ToField,
		From:           from,
		To:             req.Searcher,
		SubQuery:       join.SubQuery,
		ValuePrefix:    join.ValuePrefix,
		MinDocFreqFrom: join.MinDocFreqFrom,
		MinDocFreqTo:   join.MinDocFreqTo,
		MaxSortedSize:  join.MaxSortedSize,
		PointJoin:      j.pointJoin,
	}

	if err := engine.Validate(p); err != nil {
		return nil, err
	}

	mode := engine.ModeMaterialize
	if join.TopLevel {
		mode = engine.ModeTopLevel
	}

	eng, err := engine.New(mode)
	if err != nil {
		return nil, err
	}

	return &Weight{
		join:    join,
		mode:    mode,
		engine:  eng,
		params:  p,
		metrics: j.metrics,
		logger:  j.logger,
	}, nil
}

// Weight is one prepared join evaluation. The join runs at most once per
// weight; every consumer shares the outcome. Nothing is memoized beyond the
// weight's lifetime, so repeated requests recompute rather than risk serving
// a stale generation.
type Weight struct {
	join    *Join
	mode    engine.Mode
	engine  engine.Engine
	params  engine.Params
	metrics MetricsCollector
	logger  *Logger

	once   sync.Once
	result *engine.Result
	err    error
}

// Join returns the join this weight evaluates.
func (w *Weight) Join() *Join { return w.join }

// Result executes the join on the first call and returns the memoized
// outcome on every later one. Concurrent callers share a single execution;
// the context of the first caller drives it.
func (w *Weight) Result(ctx context.Context) (*engine.Result, error) {
	w.once.Do(func() {
		start := time.Now()
		w.result, w.err = w.engine.Execute(ctx, w.params)
		duration := time.Since(start)
		w.err = translateError(w.err)

		var fromSize, matched int
		if w.result != nil {
			fromSize = w.result.Stats().FromSetSize
			matched = resultMatched(w.result)
		}

		w.metrics.RecordJoin(w.mode.String(), duration, w.err)
		w.logger.LogJoin(ctx, w.join.String(), w.mode.String(), fromSize, matched, duration, w.err)
	})

	return w.result, w.err
}

// Predicate executes the join if needed and mints a fresh membership test
// over its result. Each consumer goroutine needs its own predicate.
func (w *Weight) Predicate(ctx context.Context) (engine.Predicate, error) {
	res, err := w.Result(ctx)
	if err != nil {
		return nil, err
	}

	return res.Predicate()
}

// resultMatched sizes a result for logging: documents for a materialized
// join, mapped ordinals for a top-level one.
func resultMatched(r *engine.Result) int {
	if docs := r.Docs(); docs != nil {
		return docs.Size()
	}

	return r.Stats().OrdinalsMatched
}
