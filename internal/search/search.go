package search

import (
	"context"
	"time"
)

// Result is one raw hit from a search provider, in the provider's own
// relevance order.
type Result struct {
	Title       string
	URL         string
	Snippet     string
	Domain      string
	PublishedAt *time.Time
}

// Provider defines the interface for news search collaborators.
type Provider interface {
	// Name returns the provider name for logging.
	Name() string

	// Search runs one query and returns results in relevance order. An
	// empty result set is not an error.
	Search(ctx context.Context, query string) ([]Result, error)
}
