// Package brave implements the search.Provider interface against the
// Brave Web Search API.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/search"
	"github.com/blogforge-agent/pkg/logger"
	"github.com/blogforge-agent/pkg/ratelimit"
)

const endpoint = "https://api.search.brave.com/res/v1/web/search"

const maxAttempts = 3

// Client queries the Brave Web Search API.
type Client struct {
	cfg        config.BraveConfig
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// New creates a Brave search client.
func New(cfg config.BraveConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		log:     log.WithComponent("brave"),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "brave" }

type webResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a single query with bounded exponential backoff on transport
// and 5xx errors. All attempts failing is reported as an error; an empty
// result list is not.
func (c *Client) Search(ctx context.Context, query string) ([]search.Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Str("query", query).
				Msg("Search attempt failed, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		results, err := c.searchOnce(ctx, query)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("brave search failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) searchOnce(ctx context.Context, query string) ([]search.Result, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterSearch); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", c.cfg.Count))
	if c.cfg.Country != "" {
		params.Set("country", c.cfg.Country)
	}
	if c.cfg.Lang != "" {
		params.Set("search_lang", c.cfg.Lang)
	}
	if c.cfg.FreshnessDays > 0 {
		params.Set("freshness", fmt.Sprintf("pd%d", c.cfg.FreshnessDays))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed webResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]search.Result, 0, len(parsed.Web.Results))
	for _, item := range parsed.Web.Results {
		if item.URL == "" {
			continue
		}
		r := search.Result{
			Title:   item.Title,
			URL:     item.URL,
			Snippet: item.Description,
			Domain:  domainOf(item.URL),
		}
		if item.PageAge != "" {
			if t, err := time.Parse(time.RFC3339, item.PageAge); err == nil {
				r.PublishedAt = &t
			}
		}
		results = append(results, r)
	}

	c.log.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var _ search.Provider = (*Client)(nil)
