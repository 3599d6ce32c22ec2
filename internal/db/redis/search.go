package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
)

// Highlight markers wrapped around matched terms; stripped before returning.
const (
	highlightOpen  = "\x02"
	highlightClose = "\x03"
)

// defaultAggregateLimit caps the number of groups FT.AGGREGATE returns.
const defaultAggregateLimit = 100

// Search runs a ranked FT.SEARCH over q's slice, on the client q.Routing selects.
func (s *Store) Search(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Offset < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative")
	}

	args := []string{q.IndexName, buildQuery(q), "WITHSCORES"}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	if len(q.HighlightFields) > 0 {
		args = append(args, "HIGHLIGHT", "FIELDS", strconv.Itoa(len(q.HighlightFields)))
		args = append(args, q.HighlightFields...)
		args = append(args, "TAGS", highlightOpen, highlightClose)
	}

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	c := s.reader(q.Routing)
	cmd := c.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := c.Do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredResult(raw)
}

// Aggregate counts documents per distinct value of q.GroupBy, largest groups first.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.Bucket, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.GroupBy == "" {
		return nil, fmt.Errorf("group by field is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAggregateLimit
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(
		q.IndexName, "*",
		"GROUPBY", "1", "@"+q.GroupBy,
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "2", "@count", "DESC",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	return parseAggregateResult(raw, q.GroupBy)
}

// --- Result parsing ---

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/3)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		values, matched := stripHighlights(parseFieldPairs(fields))
		entries = append(entries, db.SearchEntry{
			Key:     key,
			Score:   score,
			Fields:  values,
			Matched: matched,
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseAggregateResult(raw []rueidis.RedisMessage, groupBy string) ([]db.Bucket, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	buckets := make([]db.Bucket, 0, len(raw)-1)
	// [total, [field, value, "count", n], ...]
	for _, row := range raw[1:] {
		pairs, err := row.ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(pairs)
		value, ok := m[groupBy]
		if !ok || value == "" {
			continue
		}
		count, err := strconv.Atoi(m["count"])
		if err != nil {
			continue
		}
		buckets = append(buckets, db.Bucket{Value: value, Count: count})
	}
	return buckets, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// stripHighlights removes highlight markers and reports which fields carried them.
func stripHighlights(fields map[string]string) (map[string]string, []string) {
	var matched []string
	for name, v := range fields {
		if !strings.Contains(v, highlightOpen) {
			continue
		}
		matched = append(matched, name)
		fields[name] = highlightStripper.Replace(v)
	}
	sort.Strings(matched)
	return fields, matched
}

var highlightStripper = strings.NewReplacer(highlightOpen, "", highlightClose, "")

// --- Query building ---

// buildQuery translates a TextQuery into an FT.SEARCH query string.
func buildQuery(q *db.TextQuery) string {
	var parts []string

	if q.Text != "" {
		parts = append(parts, buildTextClause(q.Text, q.Fields))
	}

	fieldNames := make([]string, 0, len(q.FieldText))
	for name := range q.FieldText {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		parts = append(parts, fmt.Sprintf("@%s:(%s)", name, escapeText(q.FieldText[name])))
	}

	if anyOf := buildAnyOf(q.AnyOf); anyOf != "" {
		parts = append(parts, anyOf)
	}

	if f := buildFilter(q.Filters); f != "" {
		parts = append(parts, f)
	}

	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// buildTextClause searches text across fields. Uniform weights use the
// multi-field syntax; otherwise each field clause carries its own weight.
func buildTextClause(text string, fields []db.WeightedField) string {
	escaped := escapeText(text)
	if len(fields) == 0 {
		return "(" + escaped + ")"
	}

	if uniformWeights(fields) {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		return fmt.Sprintf("@%s:(%s)", strings.Join(names, "|"), escaped)
	}

	clauses := make([]string, len(fields))
	for i, f := range fields {
		clause := fmt.Sprintf("@%s:(%s)", f.Name, escaped)
		if f.Weight > 0 {
			clause = fmt.Sprintf("(%s) => { $weight: %s; }", clause, strconv.FormatFloat(f.Weight, 'g', -1, 64))
		}
		clauses[i] = clause
	}
	return "(" + strings.Join(clauses, " | ") + ")"
}

func uniformWeights(fields []db.WeightedField) bool {
	for _, f := range fields[1:] {
		if f.Weight != fields[0].Weight {
			return false
		}
	}
	return true
}

// buildAnyOf OR-combines term clauses; values within a clause are OR-combined too.
func buildAnyOf(clauses []db.TermClause) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if len(c.Values) == 0 {
			continue
		}
		if c.Tag {
			parts = append(parts, buildTagFilter(c.Field, c.Values...))
			continue
		}
		values := make([]string, len(c.Values))
		for i, v := range c.Values {
			values[i] = escapeQuery(v)
		}
		parts = append(parts, fmt.Sprintf("@%s:(%s)", c.Field, strings.Join(values, " | ")))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

// buildFilter translates filter.Expression into FT.SEARCH tag clauses.
// Groups are AND-combined, values within a group OR-combined.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	var parts []string

	for _, g := range expr.Groups() {
		parts = append(parts, buildTagFilter(g.Key(), g.Values()...))
	}

	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildTagFilter(cond.Key(), cond.Value()))
	}

	return strings.Join(parts, " ")
}

func buildTagFilter(key string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, " | "))
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// escapeText escapes free text but keeps double quotes, so balanced quotes
// still form phrases. Unbalanced quotes arrive already backslash-escaped.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

var textEscaper = strings.NewReplacer(
	`'`, `\'`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
