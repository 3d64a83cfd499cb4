package index

import (
	"bytes"
	"fmt"
	"strings"
)

// Query selects a set of documents on a Searcher. Implementations of
// Searcher.DocSet must support the query types of this package; anything
// beyond that is implementation-defined.
//
// String returns a canonical rendering that is stable across processes, so
// it may serve as a cache key component.
type Query interface {
	fmt.Stringer

	// Equal reports whether other selects the same documents on any index.
	Equal(other Query) bool
}

// TermQuery matches all documents containing Value in Field.
type TermQuery struct {
	Field string
	Value []byte
}

var _ Query = (*TermQuery)(nil)

func (q *TermQuery) String() string {
	return q.Field + ":" + string(q.Value)
}

// Equal reports whether other selects the same documents on any index.
func (q *TermQuery) Equal(other Query) bool {
	o, ok := other.(*TermQuery)
	return ok && q.Field == o.Field && bytes.Equal(q.Value, o.Value)
}

// TermSetQuery matches all documents containing at least one of Values in
// Field.
type TermSetQuery struct {
	Field  string
	Values [][]byte
}

var _ Query = (*TermSetQuery)(nil)

func (q *TermSetQuery) String() string {
	var sb strings.Builder
	sb.WriteString(q.Field)
	sb.WriteString(":(")
	for i, v := range q.Values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.Write(v)
	}
	sb.WriteByte(')')
	return sb.String()
}

// Equal reports whether other selects the same documents on any index.
func (q *TermSetQuery) Equal(other Query) bool {
	o, ok := other.(*TermSetQuery)
	if !ok || q.Field != o.Field || len(q.Values) != len(o.Values) {
		return false
	}
	for i := range q.Values {
		if !bytes.Equal(q.Values[i], o.Values[i]) {
			return false
		}
	}
	return true
}

// MatchAllQuery matches every live document.
type MatchAllQuery struct{}

var _ Query = (*MatchAllQuery)(nil)

func (q *MatchAllQuery) String() string { return "*:*" }

// Equal reports whether other selects the same documents on any index.
func (q *MatchAllQuery) Equal(other Query) bool {
	_, ok := other.(*MatchAllQuery)
	return ok
}
