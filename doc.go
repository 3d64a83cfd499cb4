// Package joingo provides document-level joins between search indexes.
//
// A join maps the values of a source field, restricted to the documents a
// sub-query matches, onto the documents of a destination field. It answers
// set membership, not relevance: every matching document scores alike.
//
// # Quick Start
//
// Join on a single index:
//
//	ctx := context.Background()
//	joiner := joingo.NewJoiner()
//
//	join := joingo.New("vendor_id", "vendor_id",
//	    &index.TermQuery{Field: "status", Value: []byte("open")})
//
//	w, _ := joiner.Weight(ctx, &joingo.Request{Searcher: searcher}, join)
//	res, _ := w.Result(ctx)
//	for id := range res.Docs().Iterator() {
//	    fmt.Println(id)
//	}
//
// # Cross-Index Joins
//
// A join can run its sub-query against another index. The joiner resolves
// the reference through its manager and parks the borrowed searcher on the
// request scope, which releases it exactly once when the request ends:
//
//	reg := registry.New()
//	reg.Register("orders", ordersIndex)
//
//	joiner := joingo.NewJoiner(joingo.WithManager(reg))
//
//	scope := session.NewScope()
//	defer scope.Close()
//
//	req := &joingo.Request{IndexName: "products", Searcher: searcher, Scope: scope}
//	join := joingo.New("vendor_id", "vendor_id", sub, joingo.WithFromIndex("orders"))
//
// # Strategies
//
// The materializing strategy enumerates source terms and builds the full
// destination document set up front; its result is available through Docs.
// The top-level strategy maps source ordinals into the destination value
// space and answers membership lazily, one document at a time:
//
//	join := joingo.New("vendor_id", "vendor_id", sub, joingo.WithTopLevel())
//	w, _ := joiner.Weight(ctx, req, join)
//	pred, _ := w.Predicate(ctx)
//	ok, _ := pred.Matches(doc)
//
// The strategies agree on membership for every document.
//
// # Identity and Caching
//
// A join runs at most once per weight; every consumer of the weight shares
// the outcome. Nothing is cached across requests. Outer layers that cache
// get Join.Equal and Join.Hash, which fold in the open timestamp of the
// resolved source index so results from different index generations never
// collide under one key.
//
// # Errors
//
// Misconfigured joins fail with *engine.ConfigError naming the side, the
// field and the reason. Resolution failures unify into ErrNoSuchIndex and
// ErrScopeRequired, testable with errors.Is.
//
// # Key Features
//
//   - Materializing and lazy top-level strategies with equal semantics
//   - Adaptive document sets (sorted array, hash, Roaring bitmap)
//   - Reference-counted cross-index handles scoped to the request
//   - Snapshot-backed index registry with deduplicated, rate-limited warms
//   - Local, in-memory, S3 and MinIO snapshot stores
//   - Structured logging and pluggable metrics, never inside the hot loops
package joingo
