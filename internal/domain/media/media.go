package media

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kailas-cloud/livesearch/internal/domain"
)

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// identifierPlaceholder is substituted with a hit's identifier in detail URL templates.
const identifierPlaceholder = "{identifier}"

// Field is a full-text field with a relevance weight.
type Field struct {
	Name   string
	Weight float64
}

// Type describes one searchable media collection (image, audio, ...).
// The search pipeline is identical for every type; only these values differ.
type Type struct {
	name          string
	index         string
	searchFields  []Field
	relatedFields []string
	detailURL     string
}

// New validates and creates a media type.
func New(name, index string, searchFields []Field, relatedFields []string, detailURL string) (Type, error) {
	if !nameRegex.MatchString(name) {
		return Type{}, fmt.Errorf("media type name %q must be lowercase alphanumeric", name)
	}
	if index == "" {
		return Type{}, fmt.Errorf("media type %s: index is required", name)
	}
	if len(searchFields) == 0 {
		return Type{}, fmt.Errorf("media type %s: at least one search field is required", name)
	}
	for _, f := range searchFields {
		if f.Name == "" {
			return Type{}, fmt.Errorf("media type %s: search field name is required", name)
		}
		if f.Weight < 0 {
			return Type{}, fmt.Errorf("media type %s: negative weight for %s", name, f.Name)
		}
	}
	if len(relatedFields) == 0 {
		return Type{}, fmt.Errorf("media type %s: at least one related field is required", name)
	}
	if !strings.Contains(detailURL, identifierPlaceholder) {
		return Type{}, fmt.Errorf("media type %s: detail url must contain %s", name, identifierPlaceholder)
	}
	return Type{
		name:          name,
		index:         index,
		searchFields:  searchFields,
		relatedFields: relatedFields,
		detailURL:     detailURL,
	}, nil
}

// Name returns the media type name used in routes and cache keys.
func (t Type) Name() string { return t.name }

// Index returns the search index name.
func (t Type) Index() string { return t.index }

// SearchFields returns the weighted fields used for free-text queries.
func (t Type) SearchFields() []Field { return t.searchFields }

// SearchFieldNames returns the names of the weighted search fields.
func (t Type) SearchFieldNames() []string {
	names := make([]string, len(t.searchFields))
	for i, f := range t.searchFields {
		names[i] = f.Name
	}
	return names
}

// RelatedFields returns the fields compared by similarity queries.
func (t Type) RelatedFields() []string { return t.relatedFields }

// DetailURL builds the detail view link for an identifier.
func (t Type) DetailURL(identifier string) string {
	return strings.ReplaceAll(t.detailURL, identifierPlaceholder, identifier)
}

// Registry resolves media types by name.
type Registry struct {
	types map[string]Type
}

// NewRegistry creates a registry; names must be unique.
func NewRegistry(types ...Type) (*Registry, error) {
	m := make(map[string]Type, len(types))
	for _, t := range types {
		if _, dup := m[t.name]; dup {
			return nil, fmt.Errorf("duplicate media type %q", t.name)
		}
		m[t.name] = t
	}
	return &Registry{types: m}, nil
}

// Get returns the media type registered under name.
func (r *Registry) Get(name string) (Type, error) {
	t, ok := r.types[name]
	if !ok {
		return Type{}, fmt.Errorf("%w: %q", domain.ErrUnknownMediaType, name)
	}
	return t, nil
}

// Names returns the registered media type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the stock image and audio media types.
func Defaults() []Type {
	image, _ := New("image", "image",
		[]Field{{Name: "tags", Weight: 1}, {Name: "title", Weight: 1}, {Name: "description", Weight: 1}},
		[]string{"tags", "title", "creator"},
		"/v1/images/{identifier}",
	)
	audio, _ := New("audio", "audio",
		[]Field{{Name: "tags", Weight: 1}, {Name: "title", Weight: 1}, {Name: "description", Weight: 1}},
		[]string{"tags", "title", "creator"},
		"/v1/audio/{identifier}",
	)
	return []Type{image, audio}
}
