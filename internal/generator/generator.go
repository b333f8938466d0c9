// Package generator produces a publication-ready draft from a selected
// candidate: prompt assembly, strict-JSON parsing, and the field
// normalization that keeps titles, metadata, and tags within limits.
package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/fetch"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

// ErrContentTooShort means both generation attempts produced a body
// below the minimum word count.
var ErrContentTooShort = errors.New("generated body below minimum word count")

// ErrBlockedMention means both attempts mentioned a blocked source term.
var ErrBlockedMention = errors.New("generated draft mentions a blocked term")

const maxAttempts = 2

// ArticleClient is the slice of the AI client the generator needs.
type ArticleClient interface {
	GenerateArticle(ctx context.Context, topic topics.Profile, candidate models.Candidate, minBodyWords, maxKeyphraseWords int) (*models.Draft, error)
}

// SourceFetcher extracts source page text for grounding.
type SourceFetcher interface {
	Extract(ctx context.Context, pageURL string) (*fetch.PageContent, error)
}

// Generator turns scored candidates into normalized drafts.
type Generator struct {
	client       ArticleClient
	fetcher      SourceFetcher
	cfg          config.GeneratorConfig
	siteTitle    string
	separator    string
	blockedTerms []string
	log          *logger.Logger
}

// New creates a generator. fetcher may be nil when source fetching is
// disabled.
func New(client ArticleClient, fetcher SourceFetcher, cfg config.GeneratorConfig, wp config.WordPressConfig, blockedTerms []string, log *logger.Logger) *Generator {
	return &Generator{
		client:       client,
		fetcher:      fetcher,
		cfg:          cfg,
		siteTitle:    cleanSpaces(wp.SiteTitle),
		separator:    cleanSpaces(wp.TitleSeparator),
		blockedTerms: blockedTerms,
		log:          log.WithComponent("generator"),
	}
}

// Generate writes a draft for the candidate. A body under the minimum
// word count or a blocked mention earns one retry; a second failure
// returns ErrContentTooShort or ErrBlockedMention.
func (g *Generator) Generate(ctx context.Context, topic topics.Profile, item *models.ScoredItem) (*models.Draft, error) {
	candidate := item.Candidate
	g.enrichFromSource(ctx, &candidate)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		draft, err := g.client.GenerateArticle(ctx, topic, candidate, g.cfg.MinBodyWords, g.cfg.FocusKeyphraseMaxWords)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.log.Warn().Err(err).Int("attempt", attempt).Msg("Generation attempt failed")
			lastErr = err
			continue
		}

		words := countWordsHTML(draft.BodyHTML)
		if words < g.cfg.MinBodyWords {
			g.log.Warn().
				Int("attempt", attempt).
				Int("words", words).
				Int("min_words", g.cfg.MinBodyWords).
				Msg("Body too short")
			lastErr = ErrContentTooShort
			continue
		}

		g.normalize(draft)

		if term := g.blockedMention(draft); term != "" {
			g.log.Warn().
				Int("attempt", attempt).
				Str("term", term).
				Msg("Draft mentions blocked term")
			lastErr = ErrBlockedMention
			continue
		}

		g.log.Info().
			Str("title", draft.Title).
			Int("words", words).
			Msg("Generated draft")
		return draft, nil
	}

	if lastErr == nil {
		lastErr = errors.New("generation produced no draft")
	}
	return nil, fmt.Errorf("generating draft for %s: %w", candidate.URL, lastErr)
}

// enrichFromSource attaches the fetched page text and byline to the
// candidate. Fetch failure degrades to snippet-only generation.
func (g *Generator) enrichFromSource(ctx context.Context, candidate *models.Candidate) {
	if g.fetcher == nil || !g.cfg.SourceFetchEnabled {
		return
	}
	content, err := g.fetcher.Extract(ctx, candidate.URL)
	if err != nil {
		g.log.Warn().Err(err).Str("url", candidate.URL).Msg("Source fetch failed, using snippet only")
		return
	}
	candidate.SourceText = content.Text
	candidate.SourcePublishedAt = content.PublishedAt
	candidate.SourceAuthor = content.Author
}

// normalize enforces length limits, keyphrase presence, the site-title
// suffix, and tag hygiene on a parsed draft.
func (g *Generator) normalize(draft *models.Draft) {
	draft.Title = truncate(draft.Title, g.cfg.PostTitleMaxLen, false)

	plainText := htmlToText(draft.BodyHTML)

	if cleanSpaces(draft.Excerpt) == "" {
		draft.Excerpt = plainText
	}
	draft.Excerpt = truncate(draft.Excerpt, g.cfg.ExcerptMaxLen, true)

	draft.Categories = cleanStrings(draft.Categories)
	draft.Tags = normalizeTags(draft.Tags, g.cfg.MaxTags)

	draft.FocusKeyphrase = g.focusKeyphrase(draft)

	seoBaseMax := g.maxBaseLenWithSuffix(g.cfg.SeoTitleMaxLen)
	seoBase := truncate(firstNonEmpty(draft.SeoTitle, draft.Title), seoBaseMax, false)
	if !containsKeyphrase(seoBase, draft.FocusKeyphrase) {
		seoBase = truncate(draft.FocusKeyphrase+" "+seoBase, seoBaseMax, false)
	}
	draft.SeoTitle = g.withSiteSuffix(seoBase, g.cfg.SeoTitleMaxLen)

	draft.SeoDescription = truncate(firstNonEmpty(draft.SeoDescription, draft.Excerpt, plainText), g.cfg.SeoDescriptionMaxLen, true)
	draft.SeoDescription = ensureKeyphrase(draft.SeoDescription, draft.FocusKeyphrase, g.cfg.SeoDescriptionMaxLen)

	draft.OgTitle = g.withSiteSuffix(truncate(firstNonEmpty(draft.OgTitle, draft.SeoTitle), g.cfg.SocialTitleMaxLen, false), g.cfg.SocialTitleMaxLen)
	draft.OgDescription = ensureKeyphrase(
		truncate(firstNonEmpty(draft.OgDescription, draft.SeoDescription), g.cfg.SocialDescriptionMax, true),
		draft.FocusKeyphrase, g.cfg.SocialDescriptionMax)

	draft.TwitterTitle = g.withSiteSuffix(truncate(firstNonEmpty(draft.TwitterTitle, draft.OgTitle), g.cfg.SocialTitleMaxLen, false), g.cfg.SocialTitleMaxLen)
	draft.TwitterDesc = ensureKeyphrase(
		truncate(firstNonEmpty(draft.TwitterDesc, draft.OgDescription), g.cfg.SocialDescriptionMax, true),
		draft.FocusKeyphrase, g.cfg.SocialDescriptionMax)

	if cleanSpaces(draft.ImageAltText) == "" {
		draft.ImageAltText = draft.Title + " cover image"
	}
	draft.ImageAltText = truncate(draft.ImageAltText, 125, false)
}

// focusKeyphrase prefers the model's explicit keyphrase, then the
// first tag, then the title's leading words.
func (g *Generator) focusKeyphrase(draft *models.Draft) string {
	maxWords := g.cfg.FocusKeyphraseMaxWords
	if maxWords <= 0 {
		maxWords = 4
	}

	if explicit := cleanSpaces(draft.FocusKeyphrase); explicit != "" {
		return truncate(firstWords(explicit, maxWords), 60, false)
	}
	if len(draft.Tags) > 0 {
		return truncate(firstWords(draft.Tags[0], maxWords), 60, false)
	}
	return truncate(firstWords(draft.Title, maxWords), 60, false)
}

func (g *Generator) blockedMention(draft *models.Draft) string {
	fields := []string{
		draft.Title, htmlToText(draft.BodyHTML), draft.Excerpt,
		draft.SeoTitle, draft.SeoDescription, draft.FocusKeyphrase,
		draft.OgTitle, draft.OgDescription,
		draft.TwitterTitle, draft.TwitterDesc,
	}
	for _, text := range fields {
		lowered := strings.ToLower(text)
		for _, term := range g.blockedTerms {
			needle := strings.ToLower(cleanSpaces(term))
			if needle != "" && strings.Contains(lowered, needle) {
				return term
			}
		}
	}
	return ""
}

// withSiteSuffix appends " <separator> <site title>" within maxLen,
// shortening the base title when needed. A title already naming the
// site is left alone.
func (g *Generator) withSiteSuffix(title string, maxLen int) string {
	base := truncate(title, maxLen, false)
	if g.siteTitle == "" {
		return base
	}
	if strings.Contains(normalizeForCompare(base), normalizeForCompare(g.siteTitle)) {
		return base
	}

	separator := g.separator
	if separator == "" {
		separator = "|"
	}
	suffix := " " + separator + " " + g.siteTitle
	if len(base)+len(suffix) <= maxLen {
		return base + suffix
	}

	allowed := maxLen - len(suffix)
	if allowed < 15 {
		return truncate(base, maxLen, false)
	}
	cut := strings.TrimRight(truncate(base, allowed, false), " :;,-|/")
	return cut + suffix
}

func (g *Generator) maxBaseLenWithSuffix(maxLen int) int {
	if g.siteTitle == "" {
		return maxLen
	}
	separator := g.separator
	if separator == "" {
		separator = "|"
	}
	suffixLen := len(" " + separator + " " + g.siteTitle)
	if maxLen-suffixLen < 15 {
		return 15
	}
	return maxLen - suffixLen
}

func cleanSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts on a word boundary; withEllipsis appends "..." when
// the cut text leaves room for it.
func truncate(s string, maxLen int, withEllipsis bool) string {
	s = cleanSpaces(s)
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	if withEllipsis && len(cut)+3 <= maxLen {
		return cut + "..."
	}
	return cut
}

func cleanStrings(values []string) []string {
	var out []string
	for _, v := range values {
		if c := cleanSpaces(v); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func normalizeTags(tags []string, maxTags int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range tags {
		tag := cleanSpaces(raw)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
		if maxTags > 0 && len(out) >= maxTags {
			break
		}
	}
	return out
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]+`)

func normalizeForCompare(s string) string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), " ")
	return cleanSpaces(s)
}

// containsKeyphrase is permissive: an exact normalized substring match
// or every keyphrase token present somewhere in the text.
func containsKeyphrase(text, keyphrase string) bool {
	textN := normalizeForCompare(text)
	phraseN := normalizeForCompare(keyphrase)
	if phraseN == "" {
		return true
	}
	if strings.Contains(textN, phraseN) {
		return true
	}
	textTokens := make(map[string]bool)
	for _, t := range strings.Fields(textN) {
		textTokens[t] = true
	}
	for _, t := range strings.Fields(phraseN) {
		if !textTokens[t] {
			return false
		}
	}
	return true
}

func ensureKeyphrase(text, keyphrase string, maxLen int) string {
	text = truncate(text, maxLen, true)
	if keyphrase == "" || containsKeyphrase(text, keyphrase) {
		return text
	}
	return truncate(keyphrase+": "+text, maxLen, true)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if cleanSpaces(v) != "" {
			return v
		}
	}
	return ""
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func htmlToText(html string) string {
	// Pad tag boundaries so adjacent elements don't glue words together.
	padded := strings.ReplaceAll(html, "<", " <")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(padded))
	if err != nil {
		return cleanSpaces(html)
	}
	return cleanSpaces(doc.Text())
}

func countWordsHTML(html string) int {
	return len(strings.Fields(htmlToText(html)))
}
