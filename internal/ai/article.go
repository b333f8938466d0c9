package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
)

// articleResponse mirrors the JSON shape the article prompt asks for
type articleResponse struct {
	Title          string   `json:"title"`
	BodyHTML       string   `json:"body_html"`
	Excerpt        string   `json:"excerpt"`
	Categories     []string `json:"categories"`
	Tags           []string `json:"tags"`
	SeoTitle       string   `json:"seo_title"`
	SeoDescription string   `json:"seo_description"`
	FocusKeyphrase string   `json:"focus_keyphrase"`
	OgTitle        string   `json:"og_title"`
	OgDescription  string   `json:"og_description"`
	TwitterTitle   string   `json:"twitter_title"`
	TwitterDesc    string   `json:"twitter_description"`
	ImagePrompt    string   `json:"image_prompt"`
	ImageAltText   string   `json:"image_alt_text"`
}

// GenerateArticle asks Claude to write a full draft from a candidate page
func (c *Client) GenerateArticle(ctx context.Context, topic topics.Profile, candidate models.Candidate, minBodyWords, maxKeyphraseWords int) (*models.Draft, error) {
	systemPrompt := fmt.Sprintf(ArticleSystemPrompt,
		topic.WritingGuidelines,
		minBodyWords,
		maxKeyphraseWords,
	)

	sourceBlock := ""
	if candidate.SourceText != "" {
		sourceBlock = fmt.Sprintf(ArticleSourceTextPrompt, candidate.SourceText)
	}

	userPrompt := fmt.Sprintf(ArticleUserPrompt,
		topic.Name,
		topic.AuthorName,
		candidate.Title,
		candidate.URL,
		candidate.Snippet,
		sourceBlock,
	)

	response, err := c.CompleteWithJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed articleResponse
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &parsed); err != nil {
		c.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse article response")
		return nil, fmt.Errorf("failed to parse article response: %w", err)
	}

	return &models.Draft{
		Title:          parsed.Title,
		BodyHTML:       parsed.BodyHTML,
		Excerpt:        parsed.Excerpt,
		Categories:     parsed.Categories,
		Tags:           parsed.Tags,
		SeoTitle:       parsed.SeoTitle,
		SeoDescription: parsed.SeoDescription,
		FocusKeyphrase: parsed.FocusKeyphrase,
		OgTitle:        parsed.OgTitle,
		OgDescription:  parsed.OgDescription,
		TwitterTitle:   parsed.TwitterTitle,
		TwitterDesc:    parsed.TwitterDesc,
		ImagePrompt:    parsed.ImagePrompt,
		ImageAltText:   parsed.ImageAltText,
	}, nil
}
