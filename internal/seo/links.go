package seo

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/pkg/logger"
)

// RecentPost is a published site post usable as an internal link.
type RecentPost struct {
	Title string
	URL   string
}

// LinkStats summarizes what the optimizer did to a body.
type LinkStats struct {
	Internal         int
	External         int
	Removed          int
	FallbackInternal int
	PreferredAdded   bool
}

// Optimizer cleans up the links Claude wrote into a draft body and
// guarantees the internal/external links the publication needs.
type Optimizer struct {
	siteURL       *url.URL
	internalLinks []string
	log           *logger.Logger

	// checkURL reports whether an external URL is worth linking to.
	// Only the links the optimizer appends itself go through it; anchors
	// already present in the body are never fetched.
	checkURL func(string) bool
}

// NewOptimizer creates a link optimizer for the configured site.
func NewOptimizer(wp config.WordPressConfig, log *logger.Logger) *Optimizer {
	site, err := url.Parse(strings.TrimSpace(wp.SiteURL))
	if err != nil || site.Host == "" {
		site = nil
	}
	return &Optimizer{
		siteURL:       site,
		internalLinks: wp.InternalLinks,
		log:           log.WithComponent("links"),
		checkURL:      urlAlive,
	}
}

// Optimize normalizes every anchor in the body, drops untrusted or
// malformed ones, and appends fallback sections so the result always
// carries at least one internal link and, when the body had none, a
// source attribution external link. preferredExternal, when set, is
// appended as an authority reference unless its domain already appears.
func (o *Optimizer) Optimize(bodyHTML, sourceURL string, recent []RecentPost, preferredExternal string) (string, LinkStats) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		o.log.Warn().Err(err).Msg("Body not parseable, leaving links untouched")
		return bodyHTML, LinkStats{}
	}

	// Re-optimizing a body must not stack duplicate appended sections.
	removeAppendedSections(doc)

	trusted := o.trustedInternalKeys(recent)
	externalDomains := make(map[string]bool)
	var stats LinkStats

	doc.Find("a").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		normalized := o.normalizeHref(strings.TrimSpace(href))
		if normalized == "" {
			unwrap(anchor)
			stats.Removed++
			return
		}

		if o.isInternal(normalized) {
			if len(trusted) > 0 && !trusted[canonicalKey(normalized)] {
				unwrap(anchor)
				stats.Removed++
				return
			}
			anchor.SetAttr("href", normalized)
			stats.Internal++
			return
		}

		anchor.SetAttr("href", normalized)
		stats.External++
		if d := domainOf(normalized); d != "" {
			externalDomains[d] = true
		}
	})

	body := doc.Find("body")

	if len(recent) > 0 {
		body.AppendHtml(recentPostsHTML(recent))
		stats.Internal += len(recent)
	}

	if stats.Internal == 0 {
		links := o.fallbackInternalLinks()
		if len(links) > 0 {
			body.AppendHtml(internalFallbackHTML(links))
			stats.Internal += len(links)
			stats.FallbackInternal = len(links)
		}
	}

	liveness := newLivenessCache(o.checkURL)

	if stats.External == 0 && isPublicHTTP(sourceURL) {
		d := domainOf(sourceURL)
		if d != "" && !externalDomains[d] {
			if liveness.ok(sourceURL) {
				body.AppendHtml(sourceAttributionHTML(sourceURL, d))
				stats.External++
				externalDomains[d] = true
			} else {
				o.log.Warn().Str("url", sourceURL).Msg("Source URL unreachable, skipping attribution link")
			}
		}
	}

	if preferredExternal != "" {
		d := domainOf(preferredExternal)
		if d != "" && !externalDomains[d] {
			if liveness.ok(preferredExternal) {
				body.AppendHtml(preferredExternalHTML(preferredExternal, d))
				stats.External++
				stats.PreferredAdded = true
			} else {
				o.log.Warn().Str("url", preferredExternal).Msg("Preferred external URL unreachable, skipping")
			}
		}
	}

	out, err := body.Html()
	if err != nil {
		return bodyHTML, stats
	}

	o.log.Debug().
		Int("internal", stats.Internal).
		Int("external", stats.External).
		Int("removed", stats.Removed).
		Msg("Optimized body links")

	return out, stats
}

// normalizeHref resolves relative hrefs against the site and rejects
// anything that is not a plain http(s) URL.
func (o *Optimizer) normalizeHref(href string) string {
	if href == "" {
		return ""
	}
	lowered := strings.ToLower(href)
	if strings.HasPrefix(lowered, "#") ||
		strings.HasPrefix(lowered, "mailto:") ||
		strings.HasPrefix(lowered, "tel:") ||
		strings.HasPrefix(lowered, "javascript:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if o.siteURL == nil {
			return ""
		}
		u = o.siteURL.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func (o *Optimizer) isInternal(rawURL string) bool {
	if o.siteURL == nil {
		return false
	}
	return domainOf(rawURL) == strings.ToLower(o.siteURL.Hostname())
}

func (o *Optimizer) trustedInternalKeys(recent []RecentPost) map[string]bool {
	trusted := make(map[string]bool)
	if o.siteURL != nil {
		trusted[canonicalKey(o.siteURL.String())] = true
	}
	for _, raw := range o.internalLinks {
		if n := o.normalizeHref(strings.TrimSpace(raw)); n != "" && o.isInternal(n) {
			trusted[canonicalKey(n)] = true
		}
	}
	for _, post := range recent {
		if n := o.normalizeHref(strings.TrimSpace(post.URL)); n != "" && o.isInternal(n) {
			trusted[canonicalKey(n)] = true
		}
	}
	return trusted
}

func (o *Optimizer) fallbackInternalLinks() []string {
	var links []string
	for _, raw := range o.internalLinks {
		n := o.normalizeHref(strings.TrimSpace(raw))
		if n == "" || !o.isInternal(n) {
			continue
		}
		links = append(links, n)
		if len(links) >= 3 {
			break
		}
	}
	return links
}

// appendedSectionTitles are the headings the optimizer itself writes.
// A body that already carries one was optimized before (a retried run,
// or a regenerated draft) and the stale section must go.
var appendedSectionTitles = map[string]bool{
	"related articles":    true,
	"more from this site": true,
	"source":              true,
	"further reading":     true,
}

// removeAppendedSections strips previously appended sections from the
// body: each matching h2/h3 heading plus everything that follows it up
// to the next heading.
func removeAppendedSections(doc *goquery.Document) {
	doc.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		title := strings.ToLower(strings.TrimSpace(heading.Text()))
		if !appendedSectionTitles[title] {
			return
		}
		heading.NextUntil("h2, h3").Remove()
		heading.Remove()
	})
}

// livenessCache memoizes URL checks for a single Optimize call so the
// same URL is never fetched twice.
type livenessCache struct {
	check func(string) bool
	seen  map[string]bool
}

func newLivenessCache(check func(string) bool) *livenessCache {
	return &livenessCache{check: check, seen: make(map[string]bool)}
}

func (c *livenessCache) ok(rawURL string) bool {
	if c.check == nil {
		return true
	}
	if alive, hit := c.seen[rawURL]; hit {
		return alive
	}
	alive := c.check(rawURL)
	c.seen[rawURL] = alive
	return alive
}

var livenessClient = &http.Client{Timeout: 10 * time.Second}

// urlAlive checks a URL with HEAD, falling back to GET for servers
// that reject HEAD. Anything below 400 after redirects counts as alive.
func urlAlive(rawURL string) bool {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequest(method, rawURL, nil)
		if err != nil {
			return false
		}
		resp, err := livenessClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			return true
		}
		if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusForbidden {
			return false
		}
	}
	return false
}

func unwrap(anchor *goquery.Selection) {
	inner, err := anchor.Html()
	if err != nil {
		anchor.Remove()
		return
	}
	anchor.ReplaceWithHtml(inner)
}

func canonicalKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname()) + strings.TrimSuffix(u.Path, "/")
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isPublicHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host != "" && host != "localhost" && !strings.HasPrefix(host, "127.") && !strings.HasPrefix(host, "192.168.")
}

func recentPostsHTML(posts []RecentPost) string {
	var b strings.Builder
	b.WriteString("<h2>Related Articles</h2><ul>")
	for _, p := range posts {
		label := p.Title
		if strings.TrimSpace(label) == "" {
			label = domainOf(p.URL)
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(p.URL), html.EscapeString(label))
	}
	b.WriteString("</ul>")
	return b.String()
}

func internalFallbackHTML(links []string) string {
	var b strings.Builder
	b.WriteString("<h2>More From This Site</h2><ul>")
	for _, link := range links {
		label := strings.TrimPrefix(canonicalKey(link), domainOf(link))
		label = strings.Trim(label, "/")
		if label == "" {
			label = domainOf(link)
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(link), html.EscapeString(label))
	}
	b.WriteString("</ul>")
	return b.String()
}

func sourceAttributionHTML(sourceURL, domain string) string {
	return fmt.Sprintf(`<h2>Source</h2><p><a href="%s">%s</a></p>`,
		html.EscapeString(sourceURL), html.EscapeString(domain))
}

func preferredExternalHTML(link, domain string) string {
	return fmt.Sprintf(`<h2>Further Reading</h2><p><a href="%s">%s</a></p>`,
		html.EscapeString(link), html.EscapeString(domain))
}
