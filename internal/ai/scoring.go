package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
)

// CandidateScore represents the AI's judgment of a candidate page
type CandidateScore struct {
	Relevance   float64 `json:"relevance"`
	Value       float64 `json:"value"`
	Freshness   float64 `json:"freshness"`
	ContentType string  `json:"content_type"`
	Rationale   string  `json:"rationale"`
}

// ScoreCandidate asks Claude to judge a single candidate page
func (c *Client) ScoreCandidate(ctx context.Context, topic topics.Profile, candidate models.Candidate) (*CandidateScore, error) {
	userPrompt := fmt.Sprintf(ScoringUserPrompt,
		topic.Name,
		topic.ScoringGuidelines,
		candidate.Title,
		candidate.URL,
		candidate.Snippet,
	)

	response, err := c.CompleteWithJSON(ctx, ScoringSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var score CandidateScore
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &score); err != nil {
		c.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse scoring response")
		return nil, fmt.Errorf("failed to parse scoring response: %w", err)
	}

	return &score, nil
}
