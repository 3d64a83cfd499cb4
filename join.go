package joingo

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"strings"

	"github.com/hupe1980/joingo/index"
)

// Join describes a document join: a destination document matches when one of
// its ToField values equals a FromField value of a source document selected
// by SubQuery.
//
// A Join is a value object. Equal and Hash define its identity for outer
// caching layers; both include the open timestamp of the resolved source
// index once Joiner.Weight has run, so results computed against different
// generations of that index never collide under one key.
type Join struct {
	// FromField is the source field whose values drive the join.
	FromField string

	// ToField is the destination field the values are mapped onto.
	ToField string

	// FromIndex names the index SubQuery runs against. Empty keeps the join
	// on the index being searched.
	FromIndex string

	// SubQuery selects the source documents.
	SubQuery index.Query

	// TopLevel selects the lazy ordinal strategy instead of the
	// materializing one. The strategies agree on membership but expose their
	// results differently, so the flag participates in identity.
	TopLevel bool

	// ValuePrefix restricts the join to source values with this prefix.
	// Empty means no restriction.
	ValuePrefix []byte

	// MinDocFreqFrom, MinDocFreqTo and MaxSortedSize override the derived
	// scan thresholds of the materializing strategy. They steer which
	// internal path accumulates a term, never the result, and do not
	// participate in identity. Zero keeps the derived value.
	MinDocFreqFrom int
	MinDocFreqTo   int
	MaxSortedSize  int

	// openTime is the open timestamp of the resolved source index, captured
	// by Joiner.Weight. Same-index joins keep it zero.
	openTime int64
}

// New returns a join of fromField values onto toField, with the source
// documents selected by subQuery.
func New(fromField, toField string, subQuery index.Query, optFns ...func(j *Join)) *Join {
	j := &Join{
		FromField: fromField,
		ToField:   toField,
		SubQuery:  subQuery,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(j)
		}
	}
	return j
}

// WithFromIndex runs the sub-query against the named index instead of the
// index being searched.
func WithFromIndex(name string) func(j *Join) {
	return func(j *Join) {
		j.FromIndex = name
	}
}

// WithTopLevel selects the lazy ordinal strategy.
func WithTopLevel() func(j *Join) {
	return func(j *Join) {
		j.TopLevel = true
	}
}

// WithValuePrefix restricts the join to source values with the given prefix.
func WithValuePrefix(prefix []byte) func(j *Join) {
	return func(j *Join) {
		j.ValuePrefix = prefix
	}
}

// WithThresholds overrides the derived scan thresholds of the materializing
// strategy. Zero keeps the derived value.
func WithThresholds(minDocFreqFrom, minDocFreqTo, maxSortedSize int) func(j *Join) {
	return func(j *Join) {
		j.MinDocFreqFrom = minDocFreqFrom
		j.MinDocFreqTo = minDocFreqTo
		j.MaxSortedSize = maxSortedSize
	}
}

// Equal reports whether other describes the same join over the same source
// index generation.
func (j *Join) Equal(other *Join) bool {
	if j == nil || other == nil {
		return j == other
	}

	if j.FromField != other.FromField ||
		j.ToField != other.ToField ||
		j.FromIndex != other.FromIndex ||
		j.TopLevel != other.TopLevel ||
		j.openTime != other.openTime {
		return false
	}

	if !bytes.Equal(j.ValuePrefix, other.ValuePrefix) {
		return false
	}

	if j.SubQuery == nil || other.SubQuery == nil {
		return j.SubQuery == other.SubQuery
	}

	return j.SubQuery.Equal(other.SubQuery)
}

// Hash returns a stable identity hash of the join. Joins that are Equal hash
// to the same value.
func (j *Join) Hash() uint64 {
	h := fnv.New64a()

	for _, s := range []string{j.FromField, j.ToField, j.FromIndex} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	h.Write(j.ValuePrefix)
	h.Write([]byte{0})

	if j.TopLevel {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	if j.SubQuery != nil {
		h.Write([]byte(j.SubQuery.String()))
	}
	h.Write([]byte{0})

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(j.openTime))
	h.Write(ts[:])

	return h.Sum64()
}

// String renders the join parameters in query syntax for diagnostics.
func (j *Join) String() string {
	var sb strings.Builder

	sb.WriteString("{!join from=")
	sb.WriteString(j.FromField)
	sb.WriteString(" to=")
	sb.WriteString(j.ToField)

	if j.FromIndex != "" {
		sb.WriteString(" fromIndex=")
		sb.WriteString(j.FromIndex)
	}

	sb.WriteByte('}')

	if j.SubQuery != nil {
		sb.WriteString(j.SubQuery.String())
	}

	return sb.String()
}
