package db

import "github.com/kailas-cloud/livesearch/internal/domain/search/filter"

// WeightedField is a TEXT field searched with a relevance weight.
type WeightedField struct {
	Name   string
	Weight float64
}

// TermClause matches documents whose field contains any of the values.
type TermClause struct {
	Field  string
	Values []string
	// Tag marks a TAG field, matched by exact value instead of by terms.
	Tag bool
}

// TextQuery is the input for a ranked FT.SEARCH over one slice.
// Text is matched across Fields; FieldText entries are AND-combined;
// AnyOf clauses are OR-combined. With none of them every document matches.
type TextQuery struct {
	IndexName string
	Text      string
	Fields    []WeightedField
	FieldText map[string]string
	AnyOf     []TermClause
	Filters   filter.Expression

	Offset int
	Limit  int

	ReturnFields    []string
	HighlightFields []string
	// Routing selects the replica serving the query; equal keys hit the same replica.
	Routing string
}

// AggregateQuery counts documents per distinct value of GroupBy.
type AggregateQuery struct {
	IndexName string
	GroupBy   string
	Limit     int
}

// Bucket is one aggregation group.
type Bucket struct {
	Value string
	Count int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
	// Matched lists the highlighted fields that contained query terms.
	Matched []string
}
