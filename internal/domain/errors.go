package domain

import (
	"errors"
	"fmt"
)

// KeyPrefix namespaces every key this service writes to the shared store.
const KeyPrefix = "livesearch:"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDeepPagination signals a slice beyond the index's maximum result window.
	ErrDeepPagination = errors.New("deep pagination is not allowed")
	// ErrInvalidProvider signals a provider name unknown to the index.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrInvalidQuery signals malformed search parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownMediaType signals a media type that is not configured.
	ErrUnknownMediaType = errors.New("unknown media type")
	// ErrUpstream signals a failure of the search index.
	ErrUpstream = errors.New("search index error")
)

// ProviderError wraps ErrInvalidProvider with the rejected name.
type ProviderError struct {
	Provider string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider %q does not exist", ErrInvalidProvider.Error(), e.Provider)
}

func (e *ProviderError) Unwrap() error { return ErrInvalidProvider }

// NewInvalidProvider creates an invalid provider error.
func NewInvalidProvider(provider string) error {
	return &ProviderError{Provider: provider}
}

// UpstreamError wraps an index failure with the operation that produced it.
// It matches both ErrUpstream and the underlying cause.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return ErrUpstream.Error() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// NewUpstream wraps err as an index failure of op.
func NewUpstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
