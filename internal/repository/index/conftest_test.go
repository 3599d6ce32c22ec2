package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/livesearch/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn      func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	aggregateFn   func(ctx context.Context, q *db.AggregateQuery) ([]db.Bucket, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)

	queries []*db.TextQuery
}

func (m *mockStore) Search(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.queries = append(m.queries, q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.Bucket, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func entry(id, provider string) db.SearchEntry {
	return db.SearchEntry{
		Key:   DocPrefix("image") + id,
		Score: 1,
		Fields: map[string]string{
			"identifier": id,
			"title":      "Title " + id,
			"provider":   provider,
			"url":        "https://example.org/" + id + ".jpg",
			"tags":       "dog, park,,",
		},
	}
}
