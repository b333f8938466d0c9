// Package rss implements the search.Provider interface over a set of RSS
// feeds, matching items against the topic query.
package rss

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/search"
	"github.com/blogforge-agent/pkg/logger"
)

// Source fetches configured feeds and filters items by query terms.
type Source struct {
	feeds  []config.RSSFeed
	maxAge time.Duration
	parser *gofeed.Parser
	log    *logger.Logger
}

// New creates an RSS search source.
func New(cfg config.RSSConfig, log *logger.Logger) *Source {
	maxAge := 7 * 24 * time.Hour
	if cfg.MaxAge != "" {
		if d, err := time.ParseDuration(cfg.MaxAge); err == nil && d > 0 {
			maxAge = d
		}
	}
	return &Source{
		feeds:  cfg.Feeds,
		maxAge: maxAge,
		parser: gofeed.NewParser(),
		log:    log.WithComponent("rss"),
	}
}

// Name returns the provider name.
func (s *Source) Name() string { return "rss" }

// Search fetches every configured feed and returns items whose title or
// description contains all query terms, newest first within each feed.
// Feed fetch failures are logged and skipped; only all feeds failing with
// zero items is still an empty result, not an error.
func (s *Source) Search(ctx context.Context, query string) ([]search.Result, error) {
	terms := strings.Fields(strings.ToLower(query))
	var results []search.Result

	for _, feed := range s.feeds {
		parsed, err := s.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("feed", feed.Name).Msg("Failed to parse feed")
			continue
		}

		for _, item := range parsed.Items {
			var publishedAt *time.Time
			if item.PublishedParsed != nil {
				t := *item.PublishedParsed
				if time.Since(t) > s.maxAge {
					continue
				}
				publishedAt = &t
			}
			if !matches(item, terms) {
				continue
			}
			results = append(results, search.Result{
				Title:       cleanText(item.Title),
				URL:         item.Link,
				Snippet:     cleanText(item.Description),
				Domain:      domainOf(item.Link),
				PublishedAt: publishedAt,
			})
		}
	}

	s.log.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("RSS search completed")

	return results, nil
}

func matches(item *gofeed.Item, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(item.Title + " " + item.Description)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(result.String()), " "))
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var _ search.Provider = (*Source)(nil)
