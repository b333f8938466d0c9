package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/blogforge-agent/internal/ai"
	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

type fakeClient struct {
	scores map[string]*ai.CandidateScore
}

func (f *fakeClient) ScoreCandidate(_ context.Context, _ topics.Profile, c models.Candidate) (*ai.CandidateScore, error) {
	if s, ok := f.scores[c.URL]; ok {
		return s, nil
	}
	return &ai.CandidateScore{ContentType: "news"}, nil
}

func newScorer(client ScoreClient, cfg config.ScoringConfig) *Scorer {
	s := New(client, cfg, logger.Default())
	// Pin the clock so year-freshness checks are stable.
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func uniformScore(v float64) *ai.CandidateScore {
	return &ai.CandidateScore{Relevance: v, Value: v, Freshness: v, ContentType: "news"}
}

func candidate(url string) models.Candidate {
	return models.Candidate{URL: url, Title: "a recent industry report", Domain: "example.com"}
}

func TestThresholdPrefersStricterFloor(t *testing.T) {
	s := newScorer(&fakeClient{}, config.ScoringConfig{MinUsabilityScore: 60})

	if got := s.Threshold(topics.Profile{MinScore: 40}); got != 60 {
		t.Errorf("global floor should win: got %v", got)
	}
	if got := s.Threshold(topics.Profile{MinScore: 75}); got != 75 {
		t.Errorf("topic floor should win: got %v", got)
	}
}

func TestScoreWeightsDimensions(t *testing.T) {
	client := &fakeClient{scores: map[string]*ai.CandidateScore{
		"https://example.com/story": {Relevance: 100, Value: 0, Freshness: 0, ContentType: "news"},
	}}
	s := newScorer(client, config.ScoringConfig{MinUsabilityScore: 60, EvergreenPenalty: 15})

	item, err := s.Score(context.Background(), topics.Profile{}, candidate("https://example.com/story"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// relevance carries weight 0.35
	if item.UsabilityScore != 35 {
		t.Errorf("expected 35, got %v", item.UsabilityScore)
	}
}

func TestEvergreenPenaltySubtractsNotRejects(t *testing.T) {
	client := &fakeClient{scores: map[string]*ai.CandidateScore{
		"https://en.wikipedia.org/wiki/Topic": uniformScore(90),
	}}
	s := newScorer(client, config.ScoringConfig{MinUsabilityScore: 60, EvergreenPenalty: 15})

	item, err := s.Score(context.Background(), topics.Profile{}, models.Candidate{
		URL:    "https://en.wikipedia.org/wiki/Topic",
		Title:  "Topic overview",
		Domain: "en.wikipedia.org",
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !item.IsEvergreen {
		t.Fatal("wikipedia page should be flagged evergreen")
	}
	if item.UsabilityScore != 75 {
		t.Errorf("expected 90-15=75, got %v", item.UsabilityScore)
	}
}

func TestYearFreshnessBonus(t *testing.T) {
	client := &fakeClient{scores: map[string]*ai.CandidateScore{
		"https://example.com/current":  uniformScore(50),
		"https://example.com/previous": uniformScore(50),
		"https://example.com/stale":    uniformScore(50),
	}}
	s := newScorer(client, config.ScoringConfig{MinUsabilityScore: 60, EvergreenPenalty: 15})

	cases := []struct {
		url   string
		title string
		want  float64
	}{
		{"https://example.com/current", "Conference announced for 2026", 60},
		{"https://example.com/previous", "Highlights from 2025 summit", 55},
		{"https://example.com/stale", "Lessons from the 2019 report", 45},
	}
	for _, tc := range cases {
		item, err := s.Score(context.Background(), topics.Profile{}, models.Candidate{
			URL: tc.url, Title: tc.title, Domain: "example.com",
		})
		if err != nil {
			t.Fatalf("Score %s: %v", tc.url, err)
		}
		if item.UsabilityScore != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.url, tc.want, item.UsabilityScore)
		}
	}
}
