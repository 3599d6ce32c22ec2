package query

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/livesearch/internal/domain/media"
	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
)

// Similar asks for documents resembling a source document.
type Similar struct {
	// ExcludeID is the source document's identifier, never returned as its own match.
	ExcludeID string
	// Terms holds, per index field, the source values to match against.
	Terms map[string][]string
}

// Query is a fully resolved index query over one [Start, End) rank slice.
type Query struct {
	Index        string
	Text         string
	SearchFields []media.Field
	FieldQueries map[string]string
	Filters      filter.Expression
	Similar      *Similar
	Highlight    bool

	Start int
	End   int

	// ConsistencyKey routes repeated queries from one caller to the same replica.
	ConsistencyKey string
}

// Limit returns the number of hits the slice asks for.
func (q *Query) Limit() int {
	if q.End <= q.Start {
		return 0
	}
	return q.End - q.Start
}

// WithSlice returns a copy of q restricted to [start, end).
func (q *Query) WithSlice(start, end int) *Query {
	cp := *q
	cp.Start, cp.End = start, end
	return &cp
}

// Fingerprint is a stable hash of the effective query.
// Neither the slice nor the consistency key participate, so every page of one
// query shares a fingerprint.
func (q *Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString("index=")
	b.WriteString(q.Index)
	b.WriteString("\ntext=")
	b.WriteString(q.Text)

	b.WriteString("\nfields=")
	for _, f := range q.SearchFields {
		b.WriteString(f.Name)
		b.WriteByte('^')
		b.WriteString(strconv.FormatFloat(f.Weight, 'g', -1, 64))
		b.WriteByte(',')
	}

	b.WriteString("\nfq=")
	for _, k := range sortedKeys(q.FieldQueries) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.FieldQueries[k])
		b.WriteByte('&')
	}

	b.WriteString("\nfilters=")
	b.WriteString(q.Filters.Canonical())

	if q.Similar != nil {
		b.WriteString("\nsimilar=")
		b.WriteString(q.Similar.ExcludeID)
		for _, k := range sortedKeys(q.Similar.Terms) {
			terms := append([]string(nil), q.Similar.Terms[k]...)
			sort.Strings(terms)
			b.WriteString("&" + k + "=" + strings.Join(terms, "|"))
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Result is one slice of ranked hits plus the index's total estimate.
type Result struct {
	Total int
	Hits  []result.Hit
}

// Exhausted reports whether the index returned fewer hits than q asked for.
func (r *Result) Exhausted(q *Query) bool {
	return len(r.Hits) < q.Limit()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
