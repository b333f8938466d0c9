// Package notify announces created drafts over a webhook and Telegram.
// Delivery is best-effort: a failed notification never fails a run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/pkg/logger"
)

// Event describes a draft the pipeline just created.
type Event struct {
	Title          string
	TopicID        string
	TopicName      string
	AuthorName     string
	SourceURL      string
	UsabilityScore float64
	ContentScore   int
	HeadlineScore  int
	EditURL        string
	Simulated      bool
}

// Notifier delivers draft-created events.
type Notifier struct {
	cfg        config.NotifyConfig
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a notifier. With no webhook or Telegram settings it is a
// no-op.
func New(cfg config.NotifyConfig, log *logger.Logger) *Notifier {
	return &Notifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.WithComponent("notify"),
	}
}

// DraftCreated announces the event on every configured channel.
// Errors are logged and swallowed.
func (n *Notifier) DraftCreated(ctx context.Context, event Event) {
	if n.cfg.WebhookURL != "" {
		if err := n.sendWebhook(ctx, event); err != nil {
			n.log.Warn().Err(err).Msg("Webhook notification failed")
		}
	}
	if n.cfg.TelegramBotToken != "" && n.cfg.TelegramChatID != "" {
		if err := n.sendTelegram(ctx, event); err != nil {
			n.log.Warn().Err(err).Msg("Telegram notification failed")
		}
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, event Event) error {
	payload, err := json.Marshal(map[string]any{
		"event":           "draft_created",
		"title":           event.Title,
		"topic_id":        event.TopicID,
		"topic_name":      event.TopicName,
		"author":          event.AuthorName,
		"source_url":      event.SourceURL,
		"usability_score": event.UsabilityScore,
		"content_score":   event.ContentScore,
		"headline_score":  event.HeadlineScore,
		"edit_url":        event.EditURL,
		"simulated":       event.Simulated,
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) sendTelegram(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBotToken)

	params := url.Values{}
	params.Set("chat_id", n.cfg.TelegramChatID)
	params.Set("text", formatMessage(event))
	params.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

func formatMessage(event Event) string {
	var b strings.Builder
	if event.Simulated {
		b.WriteString("[SIMULATION] ")
	}
	fmt.Fprintf(&b, "New draft: %s\n", event.Title)
	fmt.Fprintf(&b, "Topic: %s", event.TopicName)
	if event.AuthorName != "" {
		fmt.Fprintf(&b, " (by %s)", event.AuthorName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Scores: usability %.0f, seo %d, headline %d\n",
		event.UsabilityScore, event.ContentScore, event.HeadlineScore)
	if event.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", event.SourceURL)
	}
	if event.EditURL != "" {
		fmt.Fprintf(&b, "Edit: %s", event.EditURL)
	}
	return b.String()
}
