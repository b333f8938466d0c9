// Package scorer combines Claude's judgment of a candidate with local
// heuristics into a single usability score.
package scorer

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/blogforge-agent/internal/ai"
	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

// LLM dimension weights, normalized against a 0-100 scale.
var weights = map[string]float64{
	"relevance": 0.35,
	"value":     0.25,
	"freshness": 0.40,
}

var evergreenHints = []string{
	"wikipedia", "what is", "about us", "faq", "foundation",
	"history of", "glossary", "definition", "overview",
}

var evergreenPathHints = []string{
	"/about", "/faq", "/what-is", "/glossary", "/home", "/index",
}

var newsHints = []string{
	"news", "announcement", "press", "release", "report",
	"summit", "conference", "study", "launches", "announces",
}

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// ScoreClient is the slice of the AI client the scorer needs.
type ScoreClient interface {
	ScoreCandidate(ctx context.Context, topic topics.Profile, candidate models.Candidate) (*ai.CandidateScore, error)
}

// Scorer scores candidates for a topic.
type Scorer struct {
	client ScoreClient
	cfg    config.ScoringConfig
	log    *logger.Logger
	now    func() time.Time
}

// New creates a scorer.
func New(client ScoreClient, cfg config.ScoringConfig, log *logger.Logger) *Scorer {
	return &Scorer{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("scorer"),
		now:    time.Now,
	}
}

// Threshold returns the score a candidate must reach for the topic:
// the stricter of the topic's own floor and the global minimum.
func (s *Scorer) Threshold(topic topics.Profile) float64 {
	threshold := s.cfg.MinUsabilityScore
	if topic.MinScore > threshold {
		threshold = topic.MinScore
	}
	return threshold
}

// Score judges one candidate and returns it with its usability score.
func (s *Scorer) Score(ctx context.Context, topic topics.Profile, candidate models.Candidate) (*models.ScoredItem, error) {
	judged, err := s.client.ScoreCandidate(ctx, topic, candidate)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", candidate.URL, err)
	}

	weighted := clamp(judged.Relevance)*weights["relevance"] +
		clamp(judged.Value)*weights["value"] +
		clamp(judged.Freshness)*weights["freshness"]

	bonus := s.yearFreshnessBonus(candidate)
	evergreen := isEvergreen(candidate, judged.ContentType)

	score := weighted + bonus
	if evergreen {
		score -= s.cfg.EvergreenPenalty
	}
	score = clamp(score)

	s.log.Debug().
		Str("url", candidate.URL).
		Float64("weighted", weighted).
		Float64("bonus", bonus).
		Bool("evergreen", evergreen).
		Float64("score", score).
		Str("content_type", judged.ContentType).
		Msg("Scored candidate")

	return &models.ScoredItem{
		Candidate:      candidate,
		UsabilityScore: score,
		IsEvergreen:    evergreen,
	}, nil
}

// yearFreshnessBonus nudges the score for titles/snippets mentioning a
// recent year: +10 current, +5 previous, -5 anything older.
func (s *Scorer) yearFreshnessBonus(candidate models.Candidate) float64 {
	text := candidate.Title + " " + candidate.Snippet
	matches := yearPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0
	}

	current := s.now().Year()
	best := 0
	for _, m := range matches {
		var y int
		fmt.Sscanf(m, "%d", &y)
		if y > best {
			best = y
		}
	}

	switch {
	case best >= current:
		return 10
	case best == current-1:
		return 5
	default:
		return -5
	}
}

// isEvergreen flags generic reference pages that make poor news posts.
func isEvergreen(candidate models.Candidate, contentType string) bool {
	title := strings.ToLower(candidate.Title)
	snippet := strings.ToLower(candidate.Snippet)
	lowered := strings.ToLower(candidate.URL)

	if contentType == "evergreen" {
		return true
	}
	if strings.HasSuffix(strings.ToLower(candidate.Domain), "wikipedia.org") || strings.Contains(title, "wikipedia") {
		return true
	}
	for _, h := range evergreenPathHints {
		if strings.Contains(lowered, h) {
			return true
		}
	}
	if u, err := url.Parse(candidate.URL); err == nil {
		if u.Path == "" || u.Path == "/" {
			return true
		}
	}

	hintHit := false
	for _, h := range evergreenHints {
		if strings.Contains(title, h) || strings.Contains(snippet, h) {
			hintHit = true
			break
		}
	}
	if !hintHit {
		return false
	}

	// A news signal outweighs a weak evergreen hint.
	for _, h := range newsHints {
		if strings.Contains(title, h) || strings.Contains(snippet, h) {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
