// Package collector turns a topic's queries into a filtered, de-duplicated
// candidate list, preserving the search provider's relevance order.
package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/search"
	"github.com/blogforge-agent/internal/storage"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

// Collector gathers candidates for a topic.
type Collector struct {
	provider search.Provider
	store    storage.Store
	cfg      config.CollectorConfig
	log      *logger.Logger
}

// New creates a collector.
func New(provider search.Provider, store storage.Store, cfg config.CollectorConfig, log *logger.Logger) *Collector {
	return &Collector{
		provider: provider,
		store:    store,
		cfg:      cfg,
		log:      log.WithComponent("collector"),
	}
}

// Collect runs every topic query in order and returns new candidates:
// unseen URLs not excluded by domain or blocked-term filters and not
// already recorded in the state store. An empty query list or an empty
// provider response yields an empty slice, not an error.
func (c *Collector) Collect(ctx context.Context, topic topics.Profile) ([]models.Candidate, error) {
	if len(topic.Queries) == 0 {
		return nil, nil
	}

	processed, err := c.store.ProcessedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading processed urls: %w", err)
	}

	seen := make(map[string]bool)
	var candidates []models.Candidate

	for _, query := range topic.Queries {
		results, err := c.provider.Search(ctx, query)
		if err != nil {
			// A failed query skips to the next one; the topic is only
			// unreachable when every query fails and nothing was found.
			c.log.Warn().Err(err).Str("query", query).Msg("Query failed")
			continue
		}

		for _, r := range results {
			if r.URL == "" || seen[r.URL] || processed[r.URL] {
				continue
			}
			seen[r.URL] = true

			if c.isExcludedDomain(r.Domain) {
				c.log.Debug().Str("url", r.URL).Msg("Excluded domain")
				continue
			}
			if term := c.blockedTerm(r); term != "" {
				c.log.Debug().Str("url", r.URL).Str("term", term).Msg("Blocked term")
				continue
			}

			candidates = append(candidates, models.Candidate{
				URL:         r.URL,
				Title:       r.Title,
				Snippet:     r.Snippet,
				Domain:      r.Domain,
				TopicID:     topic.ID,
				PublishedAt: r.PublishedAt,
			})
		}
	}

	c.log.Info().
		Str("topic", topic.ID).
		Int("candidates", len(candidates)).
		Msg("Collected candidates")

	return candidates, nil
}

func (c *Collector) isExcludedDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, excluded := range c.cfg.ExcludedDomains {
		excluded = strings.ToLower(strings.TrimSpace(excluded))
		if excluded == "" {
			continue
		}
		if domain == excluded || strings.HasSuffix(domain, "."+excluded) {
			return true
		}
	}
	return false
}

// blockedTerm returns the first blocked source term appearing in the
// candidate's title, domain, or snippet, or empty when clean.
func (c *Collector) blockedTerm(r search.Result) string {
	haystack := strings.ToLower(r.Title + " " + r.Domain + " " + r.Snippet)
	for _, term := range c.cfg.BlockedTerms {
		needle := strings.ToLower(strings.TrimSpace(term))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return term
		}
	}
	return ""
}
