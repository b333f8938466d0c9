// Package fetch pulls the readable text of a candidate's source page so
// the generator can ground the article in more than a search snippet.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blogforge-agent/pkg/logger"
)

const userAgent = "Mozilla/5.0 (compatible; BlogForge/1.0)"

// Fetcher downloads and extracts source page text.
type Fetcher struct {
	client   *http.Client
	maxChars int
	log      *logger.Logger
}

// New creates a fetcher. maxChars bounds the extracted text.
func New(maxChars int, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		maxChars: maxChars,
		log:      log.WithComponent("fetch"),
	}
}

// PageContent is what could be extracted from a source page. Any field
// may be empty.
type PageContent struct {
	Text        string
	PublishedAt string
	Author      string
}

// Extract downloads the page and returns its main text plus byline
// metadata. Failures are returned as errors; callers are expected to
// degrade to snippet-only generation rather than abort.
func (f *Fetcher) Extract(ctx context.Context, pageURL string) (*PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	content := &PageContent{
		Text:        f.mainText(doc),
		PublishedAt: metaContent(doc, `meta[property="article:published_time"]`, `meta[name="date"]`),
		Author:      metaContent(doc, `meta[name="author"]`, `meta[property="article:author"]`),
	}

	f.log.Debug().
		Str("url", pageURL).
		Int("chars", len(content.Text)).
		Msg("Extracted source text")

	return content, nil
}

// mainText prefers an article or main element; falls back to the body.
func (f *Fetcher) mainText(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main", `[role="main"]`, "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := collapseWhitespace(sel.Text())
		if len(text) < 200 && selector != "body" {
			continue
		}
		if f.maxChars > 0 && len(text) > f.maxChars {
			text = text[:f.maxChars]
		}
		return text
	}
	return ""
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if v, ok := doc.Find(s).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
