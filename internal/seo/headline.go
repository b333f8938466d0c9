package seo

import (
	"regexp"
	"strings"
)

// HeadlineResult is the headline rubric's output.
type HeadlineResult struct {
	Score  int
	Type   string
	Checks []Check
}

var powerWords = []string{
	"essential", "proven", "powerful", "surprising", "ultimate",
	"complete", "practical", "simple", "effective", "new",
	"best", "why", "how", "guide", "secrets",
}

var digitRe = regexp.MustCompile(`\b\d+\b`)

// ScoreHeadline applies the headline rubric: length bands, word count,
// an early keyword, a power word, and a recognizable headline pattern.
func (g *Gate) ScoreHeadline(title, keyword string) HeadlineResult {
	clean := strings.TrimSpace(title)
	charsNoSpaces := len(strings.ReplaceAll(clean, " ", ""))
	words := strings.Fields(clean)
	lowered := strings.ToLower(clean)

	headlineType := "general"
	switch {
	case strings.HasPrefix(lowered, "how to") || strings.HasPrefix(lowered, "how "):
		headlineType = "how-to"
	case digitRe.MatchString(lowered):
		headlineType = "list"
	case strings.HasSuffix(clean, "?"):
		headlineType = "question"
	}

	hasPowerWord := false
	for _, w := range powerWords {
		if strings.Contains(lowered, w) {
			hasPowerWord = true
			break
		}
	}

	checks := []Check{
		{Key: "character_count", Passed: charsNoSpaces > 35, Weight: 1},
		{Key: "word_count", Passed: len(words) > 5, Weight: 1},
		{Key: "title_under_65_chars", Passed: len(clean) <= 65, Weight: 0.75},
		{Key: "power_words", Passed: hasPowerWord, Weight: 0.5},
		{Key: "headline_pattern", Passed: headlineType != "general", Weight: 0.5},
	}

	if strings.TrimSpace(keyword) != "" {
		firstChunk := strings.Join(words[:min(8, len(words))], " ")
		checks = append(checks, Check{
			Key:    "keyword_early",
			Passed: strings.Contains(normalizeText(firstChunk), normalizeText(keyword)),
			Weight: 1.25,
		})
	}

	return HeadlineResult{
		Score:  scoreChecks(checks),
		Type:   headlineType,
		Checks: checks,
	}
}
