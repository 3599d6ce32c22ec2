package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kailas-cloud/livesearch/internal/db"
	"github.com/kailas-cloud/livesearch/internal/domain"
	"github.com/kailas-cloud/livesearch/internal/domain/media"
	"github.com/kailas-cloud/livesearch/internal/domain/search/filter"
	"github.com/kailas-cloud/livesearch/internal/domain/search/query"
	"github.com/kailas-cloud/livesearch/internal/domain/search/result"
)

// Document hash fields.
const (
	fieldIdentifier        = "identifier"
	fieldTitle             = "title"
	fieldDescription       = "description"
	fieldTags              = "tags"
	fieldCreator           = "creator"
	fieldCreatorURL        = "creator_url"
	fieldProvider          = "provider"
	fieldSource            = "source"
	fieldLicense           = "license"
	fieldLicenseVersion    = "license_version"
	fieldURL               = "url"
	fieldThumbnail         = "thumbnail"
	fieldForeignLandingURL = "foreign_landing_url"
)

// tagSeparator splits multi-valued hash fields.
const tagSeparator = ","

// textFields are indexed as TEXT; the rest of the filterable fields are TAGs.
var textFields = []string{fieldTitle, fieldDescription, fieldTags, fieldCreator}

var tagFields = []string{
	fieldIdentifier, fieldProvider, fieldSource, fieldLicense, fieldLicenseVersion,
	"extension", "categories", "aspect_ratio", "size",
}

// returnFields are loaded for every hit.
var returnFields = []string{
	fieldIdentifier, fieldTitle, fieldDescription, fieldTags, fieldCreator, fieldCreatorURL,
	fieldProvider, fieldSource, fieldLicense, fieldLicenseVersion,
	fieldURL, fieldThumbnail, fieldForeignLandingURL,
}

// store is the consumer interface for the search index (ISP).
type store interface {
	Search(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.Bucket, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements usecase/search.Index over RediSearch.
type Repo struct {
	store store
}

// New creates an index repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// DocPrefix returns the key prefix of documents in the named index.
func DocPrefix(index string) string {
	return domain.KeyPrefix + "doc:" + index + ":"
}

// Schema returns the FT index definition for a media type. Search fields
// carry their configured weights.
func Schema(t media.Type) (*db.IndexDefinition, error) {
	weights := make(map[string]float64, len(t.SearchFields()))
	for _, f := range t.SearchFields() {
		weights[f.Name] = f.Weight
	}

	b := db.NewIndex(t.Index()).OnHash().Prefix(DocPrefix(t.Index()))
	seen := make(map[string]bool)
	for _, name := range textFields {
		b.TextWeighted(name, weights[name])
		seen[name] = true
	}
	for _, f := range t.SearchFields() {
		if !seen[f.Name] {
			b.TextWeighted(f.Name, f.Weight)
			seen[f.Name] = true
		}
	}
	for _, name := range tagFields {
		if !seen[name] {
			b.TagWithOpts(name, tagSeparator, false)
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", t.Name(), err)
	}
	return def, nil
}

// EnsureSchema creates the index of every media type that does not have one yet.
func (r *Repo) EnsureSchema(ctx context.Context, types []media.Type) error {
	for _, t := range types {
		exists, err := r.store.IndexExists(ctx, t.Index())
		if err != nil {
			return fmt.Errorf("check index %s: %w", t.Index(), err)
		}
		if exists {
			continue
		}
		def, err := Schema(t)
		if err != nil {
			return err
		}
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", t.Index(), err)
		}
	}
	return nil
}

// Search runs q over its [Start, End) slice. Hits are ranked from q.Start.
func (r *Repo) Search(ctx context.Context, q *query.Query) (*query.Result, error) {
	tq, err := toTextQuery(q)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.Search(ctx, tq)
	if err != nil {
		return nil, wrapIndexErr("search", q.Index, err)
	}

	hits := make([]result.Hit, len(sr.Entries))
	for i, e := range sr.Entries {
		hits[i] = toHit(e, q.Start+i)
	}
	return &query.Result{Total: sr.Total, Hits: hits}, nil
}

// Lookup returns the document with the given identifier.
func (r *Repo) Lookup(ctx context.Context, index, identifier string) (result.Hit, error) {
	g, err := filter.NewGroup(fieldIdentifier, identifier)
	if err != nil {
		return result.Hit{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	expr, err := filter.NewExpression([]filter.Group{g}, nil)
	if err != nil {
		return result.Hit{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	sr, err := r.store.Search(ctx, &db.TextQuery{
		IndexName:    index,
		Filters:      expr,
		Limit:        1,
		ReturnFields: returnFields,
	})
	if err != nil {
		return result.Hit{}, wrapIndexErr("lookup", index, err)
	}
	if len(sr.Entries) == 0 {
		return result.Hit{}, fmt.Errorf("document %s: %w", identifier, domain.ErrNotFound)
	}
	return toHit(sr.Entries[0], 0), nil
}

// Aggregate counts documents per distinct value of field.
func (r *Repo) Aggregate(ctx context.Context, index, field string) (map[string]int, error) {
	buckets, err := r.store.Aggregate(ctx, &db.AggregateQuery{IndexName: index, GroupBy: field})
	if err != nil {
		return nil, wrapIndexErr("aggregate", index, err)
	}
	counts := make(map[string]int, len(buckets))
	for _, b := range buckets {
		counts[b.Value] += b.Count
	}
	return counts, nil
}

func wrapIndexErr(op, index string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%s %s: %w", op, index, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, index, err)
}

func toTextQuery(q *query.Query) (*db.TextQuery, error) {
	tq := &db.TextQuery{
		IndexName:    q.Index,
		Text:         q.Text,
		FieldText:    q.FieldQueries,
		Filters:      q.Filters,
		Offset:       q.Start,
		Limit:        q.Limit(),
		ReturnFields: returnFields,
		Routing:      q.ConsistencyKey,
	}

	if q.Text != "" {
		tq.Fields = make([]db.WeightedField, len(q.SearchFields))
		for i, f := range q.SearchFields {
			tq.Fields[i] = db.WeightedField{Name: f.Name, Weight: f.Weight}
		}
	}

	if q.Highlight {
		for _, f := range q.SearchFields {
			tq.HighlightFields = append(tq.HighlightFields, f.Name)
		}
		for name := range q.FieldQueries {
			if !slices.Contains(tq.HighlightFields, name) {
				tq.HighlightFields = append(tq.HighlightFields, name)
			}
		}
		sort.Strings(tq.HighlightFields)
	}

	if q.Similar != nil {
		self, err := filter.NewMatch(fieldIdentifier, q.Similar.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		tq.Filters = tq.Filters.Exclude(self)
		tq.AnyOf = similarClauses(q.Similar.Terms)
	}

	return tq, nil
}

func similarClauses(terms map[string][]string) []db.TermClause {
	fields := make([]string, 0, len(terms))
	for f := range terms {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := make([]db.TermClause, 0, len(fields))
	for _, f := range fields {
		if len(terms[f]) == 0 {
			continue
		}
		clauses = append(clauses, db.TermClause{
			Field:  f,
			Values: terms[f],
			Tag:    slices.Contains(tagFields, f),
		})
	}
	return clauses
}

func toHit(e db.SearchEntry, rank int) result.Hit {
	f := e.Fields
	return result.Hit{
		Key:               e.Key,
		Rank:              rank,
		Score:             e.Score,
		ID:                f[fieldIdentifier],
		Title:             f[fieldTitle],
		Creator:           f[fieldCreator],
		CreatorURL:        f[fieldCreatorURL],
		Provider:          f[fieldProvider],
		Source:            f[fieldSource],
		License:           f[fieldLicense],
		LicenseVersion:    f[fieldLicenseVersion],
		URL:               f[fieldURL],
		Thumbnail:         f[fieldThumbnail],
		ForeignLandingURL: f[fieldForeignLandingURL],
		Tags:              splitTags(f[fieldTags]),
		Highlighted:       e.Matched,
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, tagSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
