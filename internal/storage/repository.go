package storage

import (
	"context"
	"time"

	"github.com/blogforge-agent/internal/models"
)

// Store defines the interface for durable pipeline state. All writes are
// flushed before the call returns; a write error is fatal to the current
// item only, never to the run.
type Store interface {
	// HasProcessed reports whether a terminal outcome exists for the URL.
	HasProcessed(ctx context.Context, url string) (bool, error)

	// Mark records a terminal outcome for a URL. Duplicate marks for the
	// same URL are no-ops, never errors.
	Mark(ctx context.Context, rec *models.ProcessedURL) error

	// ProcessedURLs returns all URLs with a terminal outcome.
	ProcessedURLs(ctx context.Context) (map[string]bool, error)

	// LastPublished returns the most recent successful publish time for a
	// topic, or for the whole system when topicID is empty. Returns nil
	// when nothing has been published.
	LastPublished(ctx context.Context, topicID string) (*time.Time, error)

	// PublishedCount returns how many URLs reached the processed status.
	PublishedCount(ctx context.Context) (int64, error)

	// RecordSeoReport appends one SEO gate evaluation. Append-only.
	RecordSeoReport(ctx context.Context, report *models.SeoReport) error

	// QueryReports returns SEO reports joined with processed status.
	QueryReports(ctx context.Context, filter ReportFilter) ([]models.ReportRow, error)

	// Maintenance
	Migrate() error
	Close() error
}

// ReportFilter defines filtering options for SEO report queries.
type ReportFilter struct {
	TopicID    string
	OnlyFailed bool
	Since      *time.Time
	Limit      int
}

// DefaultReportFilter returns a filter with sensible defaults.
func DefaultReportFilter() ReportFilter {
	return ReportFilter{Limit: 20}
}
