// Package pipeline orchestrates a full publication run: topic rotation,
// candidate collection, scoring, drafting, the SEO gate, and CMS
// publication, with per-candidate failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/media"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/notify"
	"github.com/blogforge-agent/internal/seo"
	"github.com/blogforge-agent/internal/storage"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/internal/wordpress"
	"github.com/blogforge-agent/pkg/logger"
)

// Collector gathers candidates for a topic.
type Collector interface {
	Collect(ctx context.Context, topic topics.Profile) ([]models.Candidate, error)
}

// Scorer judges candidates against a topic threshold.
type Scorer interface {
	Score(ctx context.Context, topic topics.Profile, candidate models.Candidate) (*models.ScoredItem, error)
	Threshold(topic topics.Profile) float64
}

// Generator writes a draft from a selected candidate.
type Generator interface {
	Generate(ctx context.Context, topic topics.Profile, item *models.ScoredItem) (*models.Draft, error)
}

// Gate scores a draft.
type Gate interface {
	Evaluate(draft *models.Draft, requireExternal bool) seo.Result
}

// LinkOptimizer cleans and enriches a draft body's links.
type LinkOptimizer interface {
	Optimize(bodyHTML, sourceURL string, recent []seo.RecentPost, preferredExternal string) (string, seo.LinkStats)
}

// CoverService produces a featured image. May be nil.
type CoverService interface {
	Generate(ctx context.Context, prompt string) (*media.Cover, error)
}

// CMS is the slice of the WordPress client the pipeline needs.
type CMS interface {
	CreateDraft(ctx context.Context, draft *models.Draft) (*models.PublishedDraft, error)
	UploadMedia(ctx context.Context, data []byte, filename, contentType, title, altText string) (int, error)
	RecentPosts(ctx context.Context, limit int) ([]wordpress.Post, error)
}

// Notifier announces created drafts. May be nil.
type Notifier interface {
	DraftCreated(ctx context.Context, event notify.Event)
}

// Summary is what a run produced.
type Summary struct {
	TopicsRun      int
	Collected      int
	Published      int
	LowScore       int
	GenFailed      int
	SeoFailed      int
	WpFailed       int
	SkippedCadence bool
}

// Pipeline runs the publication flow end to end.
type Pipeline struct {
	cfg       *config.Config
	store     storage.Store
	collector Collector
	scorer    Scorer
	generator Generator
	gate      Gate
	links     LinkOptimizer
	cover     CoverService
	cms       CMS
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

// New wires a pipeline. cover and notifier may be nil; cms may be nil
// only when every run is simulated.
func New(
	cfg *config.Config,
	store storage.Store,
	collector Collector,
	scorer Scorer,
	generator Generator,
	gate Gate,
	links LinkOptimizer,
	cover CoverService,
	cms CMS,
	notifier Notifier,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		collector: collector,
		scorer:    scorer,
		generator: generator,
		gate:      gate,
		links:     links,
		cover:     cover,
		cms:       cms,
		notifier:  notifier,
		log:       log.WithComponent("pipeline"),
		now:       time.Now,
	}
}

// Run executes one publication cycle over the given topics. simulate
// runs everything through the SEO gate but skips the CMS and
// notifications. The summary is always returned, even when every
// candidate fails.
func (p *Pipeline) Run(ctx context.Context, profiles []topics.Profile, simulate bool) (*Summary, error) {
	summary := &Summary{}

	if skip, err := p.cadenceLocked(ctx); err != nil {
		return summary, err
	} else if skip {
		p.log.Info().
			Int("interval_days", p.cfg.Pipeline.PublishIntervalDays).
			Msg("Publish interval not elapsed, skipping run")
		summary.SkippedCadence = true
		return summary, nil
	}

	ordered, err := p.rotate(ctx, profiles)
	if err != nil {
		return summary, err
	}

	recent := p.recentPosts(ctx)

	for _, topic := range ordered {
		if summary.Published >= p.cfg.Pipeline.MaxPostsPerRun {
			p.log.Info().
				Int("max_posts", p.cfg.Pipeline.MaxPostsPerRun).
				Msg("Post cap reached, stopping run")
			break
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		summary.TopicsRun++
		p.runTopic(ctx, topic, recent, simulate, summary)
	}

	p.log.Info().
		Int("topics", summary.TopicsRun).
		Int("collected", summary.Collected).
		Int("published", summary.Published).
		Int("low_score", summary.LowScore).
		Int("gen_failed", summary.GenFailed).
		Int("seo_failed", summary.SeoFailed).
		Int("wp_failed", summary.WpFailed).
		Msg("Run complete")

	return summary, nil
}

// cadenceLocked reports whether a global publish happened within the
// configured interval.
func (p *Pipeline) cadenceLocked(ctx context.Context) (bool, error) {
	days := p.cfg.Pipeline.PublishIntervalDays
	if days <= 0 {
		return false, nil
	}
	last, err := p.store.LastPublished(ctx, "")
	if err != nil {
		return false, fmt.Errorf("checking publish cadence: %w", err)
	}
	if last == nil {
		return false, nil
	}
	return p.now().Sub(*last) < time.Duration(days)*24*time.Hour, nil
}

// rotate orders topics least-recently-published first. Topics that
// never published come first, in config order.
func (p *Pipeline) rotate(ctx context.Context, profiles []topics.Profile) ([]topics.Profile, error) {
	type entry struct {
		topic topics.Profile
		last  *time.Time
	}

	entries := make([]entry, 0, len(profiles))
	for _, topic := range profiles {
		last, err := p.store.LastPublished(ctx, topic.ID)
		if err != nil {
			return nil, fmt.Errorf("loading cadence for topic %s: %w", topic.ID, err)
		}
		entries = append(entries, entry{topic: topic, last: last})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		switch {
		case entries[i].last == nil:
			return entries[j].last != nil
		case entries[j].last == nil:
			return false
		default:
			return entries[i].last.Before(*entries[j].last)
		}
	})

	ordered := make([]topics.Profile, len(entries))
	for i, e := range entries {
		ordered[i] = e.topic
	}
	return ordered, nil
}

// runTopic drafts at most one post for the topic, walking candidates
// in collector order until one publishes or the list is exhausted.
func (p *Pipeline) runTopic(ctx context.Context, topic topics.Profile, recent []wordpress.Post, simulate bool, summary *Summary) {
	log := p.log.WithTopic(topic.ID)

	candidates, err := p.collector.Collect(ctx, topic)
	if err != nil {
		log.Warn().Err(err).Msg("Collection failed, skipping topic")
		return
	}
	if max := p.cfg.Pipeline.MaxCandidatesPerTopic; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	summary.Collected += len(candidates)
	if len(candidates) == 0 {
		log.Info().Msg("No new candidates")
		return
	}

	threshold := p.scorer.Threshold(topic)

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return
		}

		item, err := p.scorer.Score(ctx, topic, candidate)
		if err != nil {
			log.Warn().Err(err).Str("url", candidate.URL).Msg("Scoring failed, skipping candidate")
			continue
		}
		if item.UsabilityScore < threshold {
			item.RejectionReason = fmt.Sprintf("score %.1f below threshold %.1f", item.UsabilityScore, threshold)
			log.Debug().
				Str("url", candidate.URL).
				Str("reason", item.RejectionReason).
				Msg("Candidate below threshold")
			summary.LowScore++
			continue
		}

		if p.processCandidate(ctx, topic, item, recent, simulate, summary) {
			return // first publish consumes the topic's quota
		}
	}
}

// processCandidate runs one selected candidate through drafting, the
// SEO gate, and publication. Returns true when it published.
func (p *Pipeline) processCandidate(ctx context.Context, topic topics.Profile, item *models.ScoredItem, recent []wordpress.Post, simulate bool, summary *Summary) bool {
	log := p.log.WithTopic(topic.ID).WithURL(item.URL)

	// A concurrent run may have consumed the URL since collection; the
	// mark is an insert-or-ignore no-op against the existing record.
	if done, err := p.store.HasProcessed(ctx, item.URL); err == nil && done {
		log.Info().Msg("URL already consumed, skipping duplicate")
		p.mark(ctx, item, models.StatusSkippedDuplicate, "", nil)
		return false
	}

	draft, err := p.generator.Generate(ctx, topic, item)
	if err != nil {
		log.Warn().Err(err).Msg("Generation failed")
		p.mark(ctx, item, models.StatusGenFailed, "", nil)
		summary.GenFailed++
		return false
	}

	requireExternal, preferred := p.externalLinkDuty(ctx)
	draft.BodyHTML, _ = p.links.Optimize(draft.BodyHTML, item.URL, recentLinks(recent), preferred)
	draft.Slug = wordpress.Slugify(draft.SeoTitle)

	result := p.gate.Evaluate(draft, requireExternal)
	p.recordReport(ctx, topic.ID, item.URL, result)

	if !result.Verdict {
		log.Warn().
			Int("content_score", result.ContentScore).
			Int("headline_score", result.HeadlineScore).
			Msg("Draft failed SEO gate")
		p.mark(ctx, item, models.StatusSeoFailed, draft.Title, nil)
		summary.SeoFailed++
		return false
	}

	if simulate {
		log.Info().
			Str("title", draft.Title).
			Int("content_score", result.ContentScore).
			Msg("Simulation: draft passed all gates, skipping CMS")
		p.mark(ctx, item, models.StatusProcessed, draft.Title, nil)
		summary.Published++
		return true
	}

	p.attachCover(ctx, draft)

	published, err := p.cms.CreateDraft(ctx, draft)
	if err != nil {
		log.Error().Err(err).Msg("CMS publication failed")
		p.mark(ctx, item, models.StatusWpFailed, draft.Title, nil)
		summary.WpFailed++
		return false
	}

	p.mark(ctx, item, models.StatusProcessed, draft.Title, &published.PostID)
	summary.Published++

	if p.notifier != nil {
		p.notifier.DraftCreated(ctx, notify.Event{
			Title:          draft.Title,
			TopicID:        topic.ID,
			TopicName:      topic.Name,
			AuthorName:     topic.AuthorName,
			SourceURL:      item.URL,
			UsabilityScore: item.UsabilityScore,
			ContentScore:   result.ContentScore,
			HeadlineScore:  result.HeadlineScore,
			EditURL:        published.EditURL,
		})
	}

	log.Info().
		Int("post_id", published.PostID).
		Str("title", draft.Title).
		Msg("Published draft")
	return true
}

// externalLinkDuty decides whether this publication owes an external
// link and which authority link to rotate in.
func (p *Pipeline) externalLinkDuty(ctx context.Context) (bool, string) {
	interval := p.cfg.Seo.ExternalLinkInterval
	if interval <= 0 {
		return false, ""
	}
	count, err := p.store.PublishedCount(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Could not read published count, skipping external-link duty")
		return false, ""
	}
	if count%int64(interval) != 0 {
		return false, ""
	}
	links := p.cfg.Seo.AuthorityLinks
	if len(links) == 0 {
		return true, ""
	}
	return true, links[(count/int64(interval))%int64(len(links))]
}

func (p *Pipeline) attachCover(ctx context.Context, draft *models.Draft) {
	if p.cover == nil || !p.cfg.Media.Enabled {
		return
	}
	prompt := draft.ImagePrompt
	if prompt == "" {
		prompt = draft.Title
	}
	cover, err := p.cover.Generate(ctx, prompt)
	if err != nil {
		p.log.Warn().Err(err).Msg("Cover generation failed, publishing without image")
		return
	}
	mediaID, err := p.cms.UploadMedia(ctx, cover.Data, draft.Slug+".jpg", cover.ContentType, draft.Title, draft.ImageAltText)
	if err != nil {
		p.log.Warn().Err(err).Msg("Cover upload failed, publishing without image")
		return
	}
	draft.CoverMediaID = mediaID
}

// mark records a terminal status for the item. Store errors are fatal
// to the item only.
func (p *Pipeline) mark(ctx context.Context, item *models.ScoredItem, status models.ProcessedStatus, title string, postID *int) {
	record := &models.ProcessedURL{
		URL:       item.URL,
		TopicID:   item.TopicID,
		Title:     title,
		Score:     item.UsabilityScore,
		Status:    status,
		CMSPostID: postID,
	}
	if record.Title == "" {
		record.Title = item.Candidate.Title
	}
	if err := p.store.Mark(ctx, record); err != nil {
		p.log.Error().Err(err).Str("url", item.URL).Msg("Could not persist item status")
	}
}

func (p *Pipeline) recordReport(ctx context.Context, topicID, url string, result seo.Result) {
	report := &models.SeoReport{
		TopicID:       topicID,
		URL:           url,
		ContentScore:  result.ContentScore,
		HeadlineScore: result.HeadlineScore,
		Verdict:       result.Verdict,
		Flags:         result.Flags,
	}
	if err := p.store.RecordSeoReport(ctx, report); err != nil {
		p.log.Error().Err(err).Str("url", url).Msg("Could not persist SEO report")
	}
}

func (p *Pipeline) recentPosts(ctx context.Context) []wordpress.Post {
	if p.cms == nil {
		return nil
	}
	posts, err := p.cms.RecentPosts(ctx, 6)
	if err != nil {
		p.log.Warn().Err(err).Msg("Could not list recent posts for internal links")
		return nil
	}
	return posts
}

func recentLinks(posts []wordpress.Post) []seo.RecentPost {
	out := make([]seo.RecentPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, seo.RecentPost{Title: p.Title, URL: p.URL})
	}
	return out
}
