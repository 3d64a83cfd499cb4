package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/joingo/core"
	"github.com/hupe1980/joingo/docset"
	"github.com/hupe1980/joingo/index"
	"github.com/hupe1980/joingo/index/memory"
)

func regionsIndexes(t *testing.T) (from, to *memory.Index) {
	t.Helper()

	fromSchema := memory.Schema{Fields: []memory.FieldConfig{
		{Name: "site"},
		{Name: "region"},
	}}

	toSchema := memory.Schema{Fields: []memory.FieldConfig{
		{Name: "region"},
	}}

	from = buildIndex(t, fromSchema, []memory.Document{
		{"site": {"a"}, "region": {"us-east"}},
		{"site": {"a"}, "region": {"eu-west"}},
		{"site": {"a"}, "region": {"us-west"}},
	})

	to = buildIndex(t, toSchema, []memory.Document{
		{"region": {"us-east"}},
		{"region": {"us-west"}},
		{"region": {"eu-west"}},
		{"region": {"eu-central"}},
	})

	return from, to
}

func TestMaterializeJoin(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	res, err := eng.Execute(context.Background(), vendorJoin(from, to, openOrders()))
	require.NoError(t, err)

	// 1. Open orders reference vendors 1, 2 and 5; products exist for
	// vendors 2 and 5.
	assert.Equal(t, ModeMaterialize, res.Mode())
	assert.Equal(t, []core.DocID{0, 2, 3}, collect(res.Docs()))

	// 2. The tiny index keeps every source term under the derived frequency
	// threshold, so all of them go through direct postings scans.
	assert.Equal(t, Stats{
		FromSetSize:       4,
		FromTermCount:     6,
		FromTermTotalDf:   7,
		FromTermDirect:    6,
		FromTermHits:      3,
		FromTermHitsDf:    4,
		ToTermHits:        2,
		ToTermHitsDf:      3,
		SmallSetsDeferred: 2,
		ResultDocs:        3,
	}, res.Stats())

	// 3. Two small destination sets stay deferred, so the merge produces a
	// sorted set.
	assert.IsType(t, &docset.SortedDocSet{}, res.Docs())

	// 4. Top-level accessors stay empty for materialized results.
	assert.Nil(t, res.Ords())
}

func TestMaterializeCachedSourceSets(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	// MinDocFreqFrom 1 disables the direct source scan: every term check
	// goes through cached per-term document sets instead.
	p := vendorJoin(from, to, openOrders())
	p.MinDocFreqFrom = 1

	res, err := eng.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []core.DocID{0, 2, 3}, collect(res.Docs()))
	assert.Equal(t, 0, res.Stats().FromTermDirect)
	assert.Equal(t, 3, res.Stats().FromTermHits)
}

func TestMaterializeBitmapPromotion(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	// A sorted-size cap of one forces promotion on the second destination
	// term, and the promoted accumulator takes the remaining postings
	// directly.
	p := vendorJoin(from, to, openOrders())
	p.MaxSortedSize = 1

	res, err := eng.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []core.DocID{0, 2, 3}, collect(res.Docs()))
	assert.IsType(t, &docset.BitmapDocSet{}, res.Docs())

	assert.Equal(t, 1, res.Stats().ToTermDirect)
	assert.Equal(t, 1, res.Stats().SmallSetsDeferred)
	assert.Equal(t, 1, res.Stats().ResultDocs)
}

// The thresholds steer which execution paths run, never which documents
// come back.
func TestMaterializeThresholdInvariance(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	want := []core.DocID{0, 2, 3}

	for _, minFrom := range []int{0, 1, 3, 100} {
		for _, minTo := range []int{0, 1, 3, 100} {
			for _, maxSorted := range []int{0, 1, 3, 100} {
				p := vendorJoin(from, to, openOrders())
				p.MinDocFreqFrom = minFrom
				p.MinDocFreqTo = minTo
				p.MaxSortedSize = maxSorted

				res, err := eng.Execute(context.Background(), p)
				require.NoError(t, err)

				assert.Equal(t, want, collect(res.Docs()),
					"minFrom=%d minTo=%d maxSorted=%d", minFrom, minTo, maxSorted)
			}
		}
	}
}

func TestMaterializeEmptySource(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	res, err := eng.Execute(context.Background(), vendorJoin(from, to,
		&index.TermQuery{Field: "status", Value: []byte("missing")}))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Docs().Size())
	assert.Equal(t, Stats{}, res.Stats())
}

func TestMaterializeUnmatchedValues(t *testing.T) {
	from := ordersIndex(t).Searcher()
	to := productsIndex(t).Searcher()

	eng, err := New(ModeMaterialize)
	require.NoError(t, err)

	// Held orders reference vendor 7, which no product carries.
	res, err := eng.Execute(context.Background(), vendorJoin(from, to,
		&index.TermQuery{Field: "status", Value: []byte("held")}))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Docs().Size())
	assert.Equal(t, 1, res.Stats().FromTermHits)
	assert.Equal(t, 0, res.Stats().ToTermHits)
}

func TestMaterializeValuePrefix(t *testing.T) {
	t.Run("single term", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, openOrders())
		p.ValuePrefix = []byte("5")

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		res, err := eng.Execute(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, []core.DocID{2, 3}, collect(res.Docs()))
		assert.Equal(t, 1, res.Stats().FromTermCount)
	})

	t.Run("prefix past dictionary", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, openOrders())
		p.ValuePrefix = []byte("z")

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		res, err := eng.Execute(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, 0, res.Docs().Size())
		assert.Equal(t, 0, res.Stats().FromTermCount)
	})

	t.Run("multi char", func(t *testing.T) {
		fromIx, toIx := regionsIndexes(t)

		p := Params{
			FromField:   "region",
			ToField:     "region",
			From:        fromIx.Searcher(),
			To:          toIx.Searcher(),
			SubQuery:    &index.TermQuery{Field: "site", Value: []byte("a")},
			ValuePrefix: []byte("us-"),
		}

		assert.Equal(t, []core.DocID{0, 1}, materializeDocs(t, p))

		p.ValuePrefix = nil
		assert.Equal(t, []core.DocID{0, 1, 2}, materializeDocs(t, p))
	})
}

func TestMaterializeDeletions(t *testing.T) {
	t.Run("destination", func(t *testing.T) {
		fromIx := ordersIndex(t)
		toIx := productsIndex(t)

		require.NoError(t, toIx.DeleteDoc(2))

		p := vendorJoin(fromIx.Searcher(), toIx.Searcher(), openOrders())
		assert.Equal(t, []core.DocID{0, 3}, materializeDocs(t, p))

		// The direct postings path must honor the live mask too.
		p.MaxSortedSize = 1
		assert.Equal(t, []core.DocID{0, 3}, materializeDocs(t, p))
	})

	t.Run("source", func(t *testing.T) {
		fromIx := ordersIndex(t)
		toIx := productsIndex(t)

		require.NoError(t, fromIx.DeleteDoc(3))

		p := vendorJoin(fromIx.Searcher(), toIx.Searcher(), openOrders())
		assert.Equal(t, []core.DocID{0}, materializeDocs(t, p))
	})
}

func TestPointJoin(t *testing.T) {
	t.Run("point source field", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		var gotField string
		var gotValues [][]byte

		p := vendorJoin(from, to, openOrders())
		p.FromField = "qty"
		p.PointJoin = func(_ context.Context, toField string, values [][]byte) (index.Query, error) {
			gotField = toField
			gotValues = values

			return &index.TermQuery{Field: "vendor", Value: []byte("5")}, nil
		}

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		res, err := eng.Execute(context.Background(), p)
		require.NoError(t, err)

		// 1. The point join function sees the distinct source values of the
		// open orders in value order.
		assert.Equal(t, "vendor", gotField)
		assert.Equal(t, [][]byte{[]byte("10"), []byte("20"), []byte("40")}, gotValues)

		// 2. The result is whatever the built query selects.
		assert.Equal(t, []core.DocID{2, 3}, collect(res.Docs()))
		assert.Equal(t, 3, res.Stats().OrdinalsSeen)
		assert.Equal(t, 2, res.Stats().ResultDocs)
	})

	t.Run("point destination field", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, openOrders())
		p.ToField = "price"
		p.PointJoin = func(_ context.Context, toField string, _ [][]byte) (index.Query, error) {
			assert.Equal(t, "price", toField)

			return &index.MatchAllQuery{}, nil
		}

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		res, err := eng.Execute(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, []core.DocID{0, 1, 2, 3, 4}, collect(res.Docs()))
	})

	t.Run("missing point join function", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, openOrders())
		p.ToField = "price"

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		_, err = eng.Execute(context.Background(), p)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, SideTo, cfgErr.Side)
		assert.Equal(t, "price", cfgErr.Field)
	})

	t.Run("missing point join function on source", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, openOrders())
		p.FromField = "qty"

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		_, err = eng.Execute(context.Background(), p)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, SideFrom, cfgErr.Side)
		assert.Equal(t, "qty", cfgErr.Field)
	})

	t.Run("point join function error", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		wantErr := errors.New("no range query available")

		p := vendorJoin(from, to, openOrders())
		p.ToField = "price"
		p.PointJoin = func(context.Context, string, [][]byte) (index.Query, error) {
			return nil, wantErr
		}

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		_, err = eng.Execute(context.Background(), p)
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("empty source set", func(t *testing.T) {
		from := ordersIndex(t).Searcher()
		to := productsIndex(t).Searcher()

		p := vendorJoin(from, to, &index.TermQuery{Field: "status", Value: []byte("missing")})
		p.ToField = "price"
		p.PointJoin = func(context.Context, string, [][]byte) (index.Query, error) {
			t.Fatal("point join function must not run for an empty source set")

			return nil, nil
		}

		eng, err := New(ModeMaterialize)
		require.NoError(t, err)

		res, err := eng.Execute(context.Background(), p)
		require.NoError(t, err)

		assert.Equal(t, 0, res.Docs().Size())
	})
}
