package result

import "strings"

// Hit is a single ranked search result. Created per query, never persisted.
type Hit struct {
	// Key is the index-internal document key, used for similarity lookups.
	Key string `json:"-"`
	// Rank is the sequential position within the query's total ordering.
	Rank  int     `json:"-"`
	Score float64 `json:"-"`

	ID                string   `json:"id"`
	Title             string   `json:"title,omitempty"`
	Creator           string   `json:"creator,omitempty"`
	CreatorURL        string   `json:"creator_url,omitempty"`
	Provider          string   `json:"provider"`
	Source            string   `json:"source,omitempty"`
	License           string   `json:"license,omitempty"`
	LicenseVersion    string   `json:"license_version,omitempty"`
	URL               string   `json:"url"`
	Thumbnail         string   `json:"thumbnail,omitempty"`
	ForeignLandingURL string   `json:"foreign_landing_url,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	FieldsMatched     []string `json:"fields_matched,omitempty"`
	Detail            string   `json:"detail_url,omitempty"`

	// Highlighted holds the names of fields the index reported as matching.
	Highlighted []string `json:"-"`
}

// HasThumbnail reports whether the hit carries its own thumbnail.
func (h *Hit) HasThumbnail() bool { return h.Thumbnail != "" }

// IsInsecure reports whether the given URL is served without TLS.
func IsInsecure(url string) bool {
	return strings.HasPrefix(strings.ToLower(url), "http://")
}
