package models

import "time"

// Candidate is a normalized search result competing for publication within
// a single run. Candidates are in-memory only; only the terminal outcome is
// persisted as a ProcessedURL.
type Candidate struct {
	URL         string
	Title       string
	Snippet     string
	Domain      string
	TopicID     string
	PublishedAt *time.Time

	// Enrichment from the source fetcher; empty when fetch is disabled or failed.
	SourceText        string
	SourcePublishedAt string
	SourceAuthor      string
}

// ScoredItem is a Candidate after relevance evaluation.
type ScoredItem struct {
	Candidate
	UsabilityScore  float64 // 0-100
	IsEvergreen     bool
	RejectionReason string
}
