package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/livesearch/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "provider:"

const (
	fieldMediaType     = "media_type"
	fieldFilterContent = "filter_content"
)

// store is the consumer interface for the provider registry (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Provider is one content provider known to the catalog.
type Provider struct {
	ID        string
	MediaType string
	// FilterContent hides the provider's documents from search results.
	FilterContent bool
}

// Repo reads provider records stored as hashes under livesearch:provider:<id>.
type Repo struct {
	store store
}

// New creates a provider registry.
func New(s store) *Repo {
	return &Repo{store: s}
}

// List returns every registered provider sorted by ID.
func (r *Repo) List(ctx context.Context) ([]Provider, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan providers: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	records, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	out := make([]Provider, 0, len(keys))
	for i, fields := range records {
		if len(fields) == 0 {
			// deleted between SCAN and HGETALL
			continue
		}
		out = append(out, fromHash(strings.TrimPrefix(keys[i], keyPrefix), fields))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save creates or replaces a provider record.
func (r *Repo) Save(ctx context.Context, p Provider) error {
	if p.ID == "" {
		return fmt.Errorf("%w: provider id is required", domain.ErrInvalidQuery)
	}
	if err := r.store.HSet(ctx, keyPrefix+p.ID, toHash(p)); err != nil {
		return fmt.Errorf("save provider %s: %w", p.ID, err)
	}
	return nil
}

func toHash(p Provider) map[string]string {
	return map[string]string{
		fieldMediaType:     p.MediaType,
		fieldFilterContent: strconv.FormatBool(p.FilterContent),
	}
}

// fromHash treats an unparsable filter_content as not filtered.
func fromHash(id string, fields map[string]string) Provider {
	filtered, _ := strconv.ParseBool(fields[fieldFilterContent])
	return Provider{
		ID:            id,
		MediaType:     fields[fieldMediaType],
		FilterContent: filtered,
	}
}
