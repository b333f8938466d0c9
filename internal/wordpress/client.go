// Package wordpress is a thin client for the WordPress REST API: draft
// creation, taxonomy resolution, media upload, and recent-post listing.
// Business logic stays out; callers decide what to publish.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/pkg/logger"
	"github.com/blogforge-agent/pkg/ratelimit"
)

// Post is a published site post.
type Post struct {
	ID    int
	URL   string
	Title string
}

// Client talks to one WordPress site using application-password auth.
type Client struct {
	siteURL     string
	username    string
	appPassword string
	seoSync     bool
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a WordPress client.
func NewClient(cfg config.WordPressConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		siteURL:     strings.TrimRight(cfg.SiteURL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		seoSync:     cfg.SeoSync,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("wordpress"),
	}
}

func (c *Client) apiURL(endpoint string) string {
	return c.siteURL + "/wp-json/wp/v2/" + endpoint
}

// request performs one authenticated wp/v2 call, retrying once on a 5xx.
func (c *Client) request(ctx context.Context, method, endpoint string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, method, c.apiURL(endpoint), body, headers)
}

func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, headers map[string]string) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterWordPress); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	for attempt := 1; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.SetBasicAuth(c.username, c.appPassword)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("wordpress request failed: %w", err)
		}

		if resp.StatusCode >= 500 && attempt == 1 {
			resp.Body.Close()
			c.log.Warn().
				Int("status", resp.StatusCode).
				Str("url", fullURL).
				Msg("WordPress 5xx, retrying once")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 400 {
			payload, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("wordpress %s %s: status %d: %s", method, fullURL, resp.StatusCode, truncateBody(payload))
		}
		return resp, nil
	}
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}

type term struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ResolveOrCreateTerm finds a category or tag by name, creating it if
// the site doesn't have it yet.
func (c *Client) ResolveOrCreateTerm(ctx context.Context, taxonomy, name string) (int, error) {
	clean := strings.Join(strings.Fields(name), " ")
	if clean == "" {
		return 0, fmt.Errorf("empty term name")
	}

	params := url.Values{}
	params.Set("search", clean)
	params.Set("per_page", "10")

	resp, err := c.request(ctx, http.MethodGet, taxonomy+"?"+params.Encode(), nil, nil)
	if err != nil {
		return 0, err
	}
	var existing []term
	err = json.NewDecoder(resp.Body).Decode(&existing)
	resp.Body.Close()
	if err != nil {
		return 0, fmt.Errorf("decoding %s search: %w", taxonomy, err)
	}
	for _, t := range existing {
		if strings.EqualFold(strings.TrimSpace(t.Name), clean) {
			return t.ID, nil
		}
	}

	payload, _ := json.Marshal(map[string]string{"name": clean})
	resp, err = c.request(ctx, http.MethodPost, taxonomy, payload, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return 0, fmt.Errorf("creating %s %q: %w", taxonomy, clean, err)
	}
	defer resp.Body.Close()

	var created term
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("decoding created %s: %w", taxonomy, err)
	}

	c.log.Info().Str("taxonomy", taxonomy).Str("name", clean).Int("id", created.ID).Msg("Created term")
	return created.ID, nil
}

// resolveTerms maps names to IDs, skipping any the site rejects.
func (c *Client) resolveTerms(ctx context.Context, taxonomy string, names []string) []int {
	var ids []int
	for _, name := range names {
		id, err := c.ResolveOrCreateTerm(ctx, taxonomy, name)
		if err != nil {
			c.log.Warn().Err(err).Str("taxonomy", taxonomy).Str("name", name).Msg("Skipping unresolvable term")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// UploadMedia pushes an image to the media library and sets its alt
// text. Returns the media ID.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename, contentType, title, altText string) (int, error) {
	resp, err := c.request(ctx, http.MethodPost, "media", data, map[string]string{
		"Content-Type":        contentType,
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
	if err != nil {
		return 0, err
	}
	var uploaded struct {
		ID int `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()
	if err != nil {
		return 0, fmt.Errorf("decoding media response: %w", err)
	}

	meta, _ := json.Marshal(map[string]any{
		"title":       title,
		"alt_text":    firstNonEmpty(altText, title),
		"caption":     title,
		"description": title,
	})
	if resp, err := c.request(ctx, http.MethodPost, fmt.Sprintf("media/%d", uploaded.ID), meta, map[string]string{"Content-Type": "application/json"}); err != nil {
		c.log.Warn().Err(err).Int("media_id", uploaded.ID).Msg("Could not update media metadata")
	} else {
		resp.Body.Close()
	}

	c.log.Info().Int("media_id", uploaded.ID).Str("file", filename).Msg("Media uploaded")
	return uploaded.ID, nil
}

// CreateDraft creates a draft post and returns its ID and editor URL.
func (c *Client) CreateDraft(ctx context.Context, draft *models.Draft) (*models.PublishedDraft, error) {
	payload := map[string]any{
		"title":      draft.Title,
		"content":    draft.BodyHTML,
		"excerpt":    firstNonEmpty(draft.Excerpt, draft.SeoDescription),
		"status":     "draft",
		"categories": c.resolveTerms(ctx, "categories", draft.Categories),
		"tags":       c.resolveTerms(ctx, "tags", draft.Tags),
		"slug":       Slugify(firstNonEmpty(draft.Slug, draft.SeoTitle, draft.Title)),
	}
	if draft.CoverMediaID > 0 {
		payload["featured_media"] = draft.CoverMediaID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding post payload: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "posts", body, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var created struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding post response: %w", err)
	}

	editURL := fmt.Sprintf("%s/wp-admin/post.php?post=%d&action=edit", c.siteURL, created.ID)

	c.log.Info().
		Int("post_id", created.ID).
		Str("title", draft.Title).
		Msg("Draft created")

	c.syncSeoMetadata(ctx, created.ID, draft)

	return &models.PublishedDraft{
		PostID:  created.ID,
		EditURL: editURL,
	}, nil
}

// syncSeoMetadata pushes the draft's SEO fields to the AIOSEO plugin
// endpoint. Best-effort: the draft exists either way.
func (c *Client) syncSeoMetadata(ctx context.Context, postID int, draft *models.Draft) {
	if !c.seoSync {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"id":                  postID,
		"title":               draft.SeoTitle,
		"description":         draft.SeoDescription,
		"og_title":            firstNonEmpty(draft.OgTitle, draft.SeoTitle),
		"og_description":      firstNonEmpty(draft.OgDescription, draft.SeoDescription),
		"twitter_title":       firstNonEmpty(draft.TwitterTitle, draft.SeoTitle),
		"twitter_description": firstNonEmpty(draft.TwitterDesc, draft.SeoDescription),
		"keywords":            strings.Join(seoKeywords(draft), ", "),
	})
	if err != nil {
		c.log.Warn().Err(err).Int("post_id", postID).Msg("Could not encode SEO metadata")
		return
	}

	resp, err := c.do(ctx, http.MethodPost, c.siteURL+"/wp-json/aioseo/v1/post", payload,
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		c.log.Warn().Err(err).Int("post_id", postID).Msg("SEO metadata sync failed")
		return
	}
	resp.Body.Close()

	c.log.Info().Int("post_id", postID).Msg("SEO metadata synced")
}

// seoKeywords builds the keyword list from the focus keyphrase and tags,
// deduplicated, capped at 8.
func seoKeywords(draft *models.Draft) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, kw := range append([]string{draft.FocusKeyphrase}, draft.Tags...) {
		k := strings.Join(strings.Fields(kw), " ")
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		keywords = append(keywords, k)
		if len(keywords) >= 8 {
			break
		}
	}
	return keywords
}

// RecentPosts lists recently published posts, most recent first.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("status", "publish")
	params.Set("orderby", "date")
	params.Set("order", "desc")
	params.Set("per_page", fmt.Sprintf("%d", limit))

	resp, err := c.request(ctx, http.MethodGet, "posts?"+params.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var items []struct {
		ID    int    `json:"id"`
		Link  string `json:"link"`
		Title struct {
			Rendered string `json:"rendered"`
		} `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}

	var posts []Post
	for _, item := range items {
		title := stripTags(item.Title.Rendered)
		if item.Link == "" || title == "" {
			continue
		}
		posts = append(posts, Post{ID: item.ID, URL: item.Link, Title: title})
	}
	return posts, nil
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify builds a URL slug from a title.
func Slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
