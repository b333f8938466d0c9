// Package seo evaluates a finished draft against a weighted checklist
// modeled on WordPress SEO plugin scoring, plus a headline rubric. The
// gate is deterministic: the same draft and config always produce the
// same scores.
package seo

import (
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
)

// Check is one scored rule.
type Check struct {
	Key    string
	Passed bool
	Weight float64
	Must   bool
}

// Result is the gate's full output for a draft.
type Result struct {
	ContentScore  int
	HeadlineScore int
	Verdict       bool
	Flags         models.RuleFlags
	WordCount     int
	InternalLinks int
	ExternalLinks int
}

// Gate scores drafts.
type Gate struct {
	cfg             config.SeoConfig
	siteDomain      string
	postTitleMaxLen int
	minBodyWords    int
}

// NewGate creates a gate bound to the site and content limits.
func NewGate(cfg config.SeoConfig, wp config.WordPressConfig, gen config.GeneratorConfig) *Gate {
	return &Gate{
		cfg:             cfg,
		siteDomain:      domainOf(wp.SiteURL),
		postTitleMaxLen: gen.PostTitleMaxLen,
		minBodyWords:    gen.MinBodyWords,
	}
}

// Evaluate scores the draft. requireExternal decides whether the
// external-link rule participates this run; it is owed only every Nth
// publication, which the caller tracks.
func (g *Gate) Evaluate(draft *models.Draft, requireExternal bool) Result {
	text := extractText(draft.BodyHTML)
	words := strings.Fields(text)
	wordCount := len(words)
	internal, external := g.countLinks(draft.BodyHTML)

	keyword := strings.TrimSpace(draft.FocusKeyphrase)
	slug := slugify(firstNonEmpty(draft.Slug, draft.Title))
	sentences := splitSentences(text)
	avgSentence := 0.0
	if len(sentences) > 0 {
		total := 0
		for _, s := range sentences {
			total += len(strings.Fields(s))
		}
		avgSentence = float64(total) / float64(len(sentences))
	}

	pageChecks := []Check{
		{Key: "post_title_length", Passed: len(strings.TrimSpace(draft.Title)) <= g.postTitleMaxLen, Weight: 1, Must: true},
		{Key: "meta_description_length", Passed: between(len(strings.TrimSpace(draft.SeoDescription)), 120, 160), Weight: 1},
		{Key: "content_length", Passed: wordCount >= g.minBodyWords, Weight: 1},
		{Key: "internal_links", Passed: internal >= 1, Weight: 1},
		{Key: "seo_title_length", Passed: between(len(strings.TrimSpace(draft.SeoTitle)), 40, 60), Weight: 1},
		{Key: "paragraph_length", Passed: paragraphsOver(draft.BodyHTML, 120) == 0, Weight: 1},
		{Key: "subheading_distribution", Passed: wordCount <= 300 || hasH2H3(draft.BodyHTML), Weight: 1},
		{Key: "sentence_length", Passed: len(sentences) == 0 || avgSentence <= 20, Weight: 1},
		{Key: "og_title_present", Passed: present(draft.OgTitle, 60), Weight: 1},
		{Key: "og_description_present", Passed: present(draft.OgDescription, 155), Weight: 1},
		{Key: "twitter_title_present", Passed: present(draft.TwitterTitle, 60), Weight: 1},
		{Key: "twitter_description_present", Passed: present(draft.TwitterDesc, 155), Weight: 1},
	}
	if requireExternal {
		pageChecks = append(pageChecks, Check{Key: "external_links", Passed: external >= 1, Weight: 0.5})
	}

	firstChunk := strings.Join(strings.Fields(draft.SeoTitle)[:min(10, len(strings.Fields(draft.SeoTitle)))], " ")

	keywordChecks := []Check{
		{Key: "keyword_in_meta_description", Passed: g.hasKeyword(draft.SeoDescription, keyword), Weight: 1, Must: true},
		{Key: "keyword_in_seo_title", Passed: g.hasKeyword(draft.SeoTitle, keyword), Weight: 1},
		{Key: "keyword_in_url", Passed: g.hasKeyword(strings.ReplaceAll(slug, "-", " "), keyword), Weight: 1},
		{Key: "keyword_in_introduction", Passed: g.hasKeyword(firstSentence(sentences), keyword), Weight: 1},
		{Key: "keyword_in_subheadings", Passed: g.keywordInSubheadings(draft.BodyHTML, keyword), Weight: 1},
		{Key: "keyword_in_content", Passed: g.hasKeyword(text, keyword), Weight: 1},
		{Key: "keyword_at_beginning_of_seo_title", Passed: g.hasKeyword(firstChunk, keyword), Weight: 1},
		{Key: "keyword_length", Passed: len(strings.Fields(keyword)) <= 5, Weight: 1},
		{Key: "keyword_in_og_description", Passed: g.hasKeyword(draft.OgDescription, keyword), Weight: 1},
		{Key: "keyword_in_twitter_description", Passed: g.hasKeyword(draft.TwitterDesc, keyword), Weight: 1},
	}

	pageScore := scoreChecks(pageChecks)
	keywordScore := scoreChecks(keywordChecks)
	contentScore := int(math.Round(float64(pageScore+keywordScore) / 2))

	headline := g.ScoreHeadline(draft.Title, keyword)

	flags := make(models.RuleFlags)
	mustOK := true
	for _, c := range append(pageChecks, keywordChecks...) {
		flags[c.Key] = c.Passed
		if c.Must && !c.Passed {
			mustOK = false
		}
	}
	for _, c := range headline.Checks {
		flags["headline_"+c.Key] = c.Passed
	}

	verdict := mustOK &&
		contentScore >= g.cfg.ContentThreshold &&
		headline.Score >= g.cfg.HeadlineThreshold

	return Result{
		ContentScore:  contentScore,
		HeadlineScore: headline.Score,
		Verdict:       verdict,
		Flags:         flags,
		WordCount:     wordCount,
		InternalLinks: internal,
		ExternalLinks: external,
	}
}

func (g *Gate) countLinks(bodyHTML string) (internal, external int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return 0, 0
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		d := domainOf(href)
		if d == "" {
			return
		}
		if d == g.siteDomain {
			internal++
		} else {
			external++
		}
	})
	return internal, external
}

// hasKeyword honors the strict/token matching mode from config.
func (g *Gate) hasKeyword(text, keyword string) bool {
	textN := normalizeText(text)
	phraseN := normalizeText(keyword)
	if phraseN == "" {
		return true
	}
	if strings.Contains(textN, phraseN) {
		return true
	}
	if g.cfg.StrictKeyphrase {
		return false
	}
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(textN) {
		tokens[t] = true
	}
	for _, t := range strings.Fields(phraseN) {
		if !tokens[t] {
			return false
		}
	}
	return true
}

func (g *Gate) keywordInSubheadings(bodyHTML, keyword string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return false
	}
	found := false
	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		if g.hasKeyword(h.Text(), keyword) {
			found = true
		}
	})
	return found
}

func scoreChecks(checks []Check) int {
	var total, earned float64
	for _, c := range checks {
		total += c.Weight
		if c.Passed {
			earned += c.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(earned / total * 100))
}

func extractText(bodyHTML string) string {
	padded := strings.ReplaceAll(bodyHTML, "<", " <")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(padded))
	if err != nil {
		return bodyHTML
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+`)

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstSentence(sentences []string) string {
	if len(sentences) == 0 {
		return ""
	}
	return sentences[0]
}

func paragraphsOver(bodyHTML string, maxWords int) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return 0
	}
	over := 0
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if len(strings.Fields(p.Text())) > maxWords {
			over++
		}
	})
	return over
}

func hasH2H3(bodyHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return false
	}
	return doc.Find("h2, h3").Length() > 0
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]+`)

func normalizeText(s string) string {
	s = nonAlnumRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = slugStrip.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func present(s string, maxLen int) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && len(trimmed) <= maxLen
}

func between(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
