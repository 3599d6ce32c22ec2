package request

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed length of any text parameter.
	MaxQueryLength = 4096
)

// ProviderField is the index field holding a hit's content provider.
const ProviderField = "provider"

// termParams maps public filter parameter names to index fields.
var termParams = map[string]string{
	"extension":    "extension",
	"categories":   "categories",
	"aspect_ratio": "aspect_ratio",
	"size":         "size",
	"source":       ProviderField,
	"license":      "license",
	"license_type": "license",
}

// TermParams returns the public filter parameter names in sorted order.
func TermParams() []string {
	names := make([]string, 0, len(termParams))
	for k := range termParams {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FiltersFromParams builds a filter expression from comma separated parameter values.
// Unknown parameter names are ignored; empty values are skipped.
func FiltersFromParams(values map[string]string) (filter.Expression, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var groups []filter.Group
	for _, name := range names {
		field, ok := termParams[name]
		if !ok || strings.TrimSpace(values[name]) == "" {
			continue
		}
		g, err := filter.NewGroup(field, strings.Split(values[name], ",")...)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%s: %w", name, err)
		}
		groups = append(groups, g)
	}
	return filter.NewExpression(groups, nil)
}

// Request is a validated search query: free text or per-field queries plus term filters.
type Request struct {
	query   string
	creator string
	title   string
	tags    string
	filters filter.Expression
}

// New validates and normalizes search parameters.
// Unmatched double quotes are escaped so they are matched literally.
func New(query, creator, title, tags string, filters filter.Expression) (Request, error) {
	texts := map[string]*string{"q": &query, "creator": &creator, "title": &title, "tags": &tags}
	for name, v := range texts {
		*v = strings.TrimSpace(*v)
		if len(*v) > MaxQueryLength {
			return Request{}, fmt.Errorf("%s too long (max %d chars)", name, MaxQueryLength)
		}
		*v = quoteEscape(*v)
	}
	return Request{
		query:   query,
		creator: creator,
		title:   title,
		tags:    tags,
		filters: filters,
	}, nil
}

// Query returns the free-text query.
func (r *Request) Query() string { return r.query }

// Creator returns the creator field query.
func (r *Request) Creator() string { return r.creator }

// Title returns the title field query.
func (r *Request) Title() string { return r.title }

// Tags returns the tags field query.
func (r *Request) Tags() string { return r.tags }

// Filters returns the term filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// HasText reports whether a free-text query is present.
func (r *Request) HasText() bool { return r.query != "" }

// FieldQueries returns the non-empty per-field queries keyed by index field.
func (r *Request) FieldQueries() map[string]string {
	out := make(map[string]string, 3)
	if r.creator != "" {
		out["creator"] = r.creator
	}
	if r.title != "" {
		out["title"] = r.title
	}
	if r.tags != "" {
		out["tags"] = r.tags
	}
	return out
}

// Providers returns the provider names the filters restrict to.
func (r *Request) Providers() []string {
	return r.filters.ValuesFor(ProviderField)
}

func quoteEscape(s string) string {
	if strings.Count(s, `"`)%2 == 1 {
		return strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
