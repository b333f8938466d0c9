package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/seo"
	"github.com/blogforge-agent/internal/storage"
	"github.com/blogforge-agent/internal/storage/sqlite"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/internal/wordpress"
	"github.com/blogforge-agent/pkg/logger"
)

type fakeCollector struct {
	byTopic map[string][]models.Candidate
	order   []string
}

func (f *fakeCollector) Collect(_ context.Context, topic topics.Profile) ([]models.Candidate, error) {
	f.order = append(f.order, topic.ID)
	return f.byTopic[topic.ID], nil
}

type fakeScorer struct {
	scores    map[string]float64
	errs      map[string]error
	threshold float64
	calls     int
}

func (f *fakeScorer) Score(_ context.Context, _ topics.Profile, c models.Candidate) (*models.ScoredItem, error) {
	f.calls++
	if err := f.errs[c.URL]; err != nil {
		return nil, err
	}
	return &models.ScoredItem{Candidate: c, UsabilityScore: f.scores[c.URL]}, nil
}

func (f *fakeScorer) Threshold(topics.Profile) float64 { return f.threshold }

type fakeGenerator struct {
	failURLs map[string]bool
}

func (f *fakeGenerator) Generate(_ context.Context, _ topics.Profile, item *models.ScoredItem) (*models.Draft, error) {
	if f.failURLs[item.URL] {
		return nil, errors.New("generation broke")
	}
	// Tag the draft with its source so the fake gate can key on it.
	return &models.Draft{Title: item.URL, BodyHTML: "<p>body</p>", SeoTitle: item.URL}, nil
}

type fakeGate struct {
	failTitles map[string]bool
}

func (f *fakeGate) Evaluate(draft *models.Draft, _ bool) seo.Result {
	if f.failTitles[draft.Title] {
		return seo.Result{
			ContentScore:  50,
			HeadlineScore: 80,
			Verdict:       false,
			Flags:         models.RuleFlags{"internal_links": false},
		}
	}
	return seo.Result{
		ContentScore:  90,
		HeadlineScore: 85,
		Verdict:       true,
		Flags:         models.RuleFlags{"internal_links": true},
	}
}

type passthroughLinks struct{}

func (passthroughLinks) Optimize(body, _ string, _ []seo.RecentPost, _ string) (string, seo.LinkStats) {
	return body, seo.LinkStats{}
}

type fakeCMS struct {
	nextID     int
	failTitles map[string]bool
	created    []string
}

func (f *fakeCMS) CreateDraft(_ context.Context, draft *models.Draft) (*models.PublishedDraft, error) {
	if f.failTitles[draft.Title] {
		return nil, errors.New("cms unreachable")
	}
	f.nextID++
	f.created = append(f.created, draft.Title)
	return &models.PublishedDraft{PostID: f.nextID, EditURL: "https://blog.example.com/edit"}, nil
}

func (f *fakeCMS) UploadMedia(context.Context, []byte, string, string, string, string) (int, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeCMS) RecentPosts(context.Context, int) ([]wordpress.Post, error) {
	return nil, nil
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.MaxPostsPerRun = 1
	cfg.Pipeline.MaxCandidatesPerTopic = 10
	return cfg
}

func cand(url, topicID string) models.Candidate {
	return models.Candidate{URL: url, Title: "title for " + url, TopicID: topicID}
}

func TestRunScenarioLowScoreSeoFailThenPublish(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://a.example.com", "t1"), cand("https://b.example.com", "t1"), cand("https://c.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{
		"https://a.example.com": 45,
		"https://b.example.com": 72,
		"https://c.example.com": 80,
	}}
	gate := &fakeGate{failTitles: map[string]bool{"https://b.example.com": true}}
	cms := &fakeCMS{}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, gate, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1", Name: "Topic One"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.LowScore != 1 || summary.SeoFailed != 1 || summary.Published != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// A was never marked; it may be retried next run.
	if ok, _ := store.HasProcessed(ctx, "https://a.example.com"); ok {
		t.Error("low-score candidate should not be persisted")
	}

	// B carries the seo_failed status and a failing report.
	if ok, _ := store.HasProcessed(ctx, "https://b.example.com"); !ok {
		t.Error("seo-failed candidate should be persisted")
	}
	reports, err := store.QueryReports(ctx, storage.ReportFilter{OnlyFailed: true, Limit: 10})
	if err != nil {
		t.Fatalf("QueryReports: %v", err)
	}
	if len(reports) != 1 || reports[0].URL != "https://b.example.com" {
		t.Fatalf("expected one failing report for B, got %+v", reports)
	}

	// C published and moved the cadence marker.
	if ok, _ := store.HasProcessed(ctx, "https://c.example.com"); !ok {
		t.Error("published candidate should be persisted")
	}
	last, err := store.LastPublished(ctx, "t1")
	if err != nil {
		t.Fatalf("LastPublished: %v", err)
	}
	if last == nil {
		t.Error("cadence marker should move after publishing")
	}
	if len(cms.created) != 1 || cms.created[0] != "https://c.example.com" {
		t.Errorf("expected only C published, got %v", cms.created)
	}
}

func TestRunCadenceLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// One publication just happened.
	if err := store.Mark(ctx, &models.ProcessedURL{
		URL: "https://done.example.com", TopicID: "t1", Status: models.StatusProcessed,
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	cfg := testConfig()
	cfg.Pipeline.PublishIntervalDays = 7

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://new.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{"https://new.example.com": 90}}
	cms := &fakeCMS{}
	p := New(cfg, store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	// Three days after the publish: locked.
	p.now = func() time.Time { return time.Now().Add(3 * 24 * time.Hour) }
	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.SkippedCadence {
		t.Fatal("run 3 days into a 7-day interval should be skipped")
	}
	if summary.Published != 0 || len(coll.order) != 0 {
		t.Error("locked run must not draft anything")
	}

	// Eight days after: unlocked.
	p.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	summary, err = p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.SkippedCadence {
		t.Fatal("run 8 days into a 7-day interval should proceed")
	}
	if summary.Published != 1 {
		t.Errorf("expected a publish, got %+v", summary)
	}
}

func TestRunHonorsMaxPostsPerRun(t *testing.T) {
	store := newTestStore(t)

	byTopic := make(map[string][]models.Candidate)
	scores := make(map[string]float64)
	profiles := make([]topics.Profile, 0, 5)
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		url := "https://" + id + ".example.com"
		byTopic[id] = []models.Candidate{cand(url, id)}
		scores[url] = 90
		profiles = append(profiles, topics.Profile{ID: id})
	}

	cfg := testConfig()
	cfg.Pipeline.MaxPostsPerRun = 2

	cms := &fakeCMS{}
	p := New(cfg, store, &fakeCollector{byTopic: byTopic}, &fakeScorer{threshold: 60, scores: scores},
		&fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(context.Background(), profiles, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Published != 2 {
		t.Errorf("expected 2 published with cap 2, got %d", summary.Published)
	}
	if summary.TopicsRun != 2 {
		t.Errorf("expected the run to stop after 2 topics, got %d", summary.TopicsRun)
	}
}

func TestRunRotatesLeastRecentlyPublishedFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// t2 published before; t1 never did.
	if err := store.Mark(ctx, &models.ProcessedURL{
		URL: "https://old.example.com", TopicID: "t2", Status: models.StatusProcessed,
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	cfg := testConfig()
	cfg.Pipeline.MaxPostsPerRun = 5

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{}}
	p := New(cfg, store, coll, &fakeScorer{threshold: 60}, &fakeGenerator{},
		&fakeGate{}, passthroughLinks{}, nil, &fakeCMS{}, nil, logger.Default())

	_, err := p.Run(ctx, []topics.Profile{{ID: "t2"}, {ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(coll.order) != 2 || coll.order[0] != "t1" {
		t.Errorf("never-published topic should run first, got %v", coll.order)
	}
}

func TestRunGenerationFailureMarksAndContinues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://broken.example.com", "t1"), cand("https://fine.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{
		"https://broken.example.com": 80,
		"https://fine.example.com":   80,
	}}
	gen := &fakeGenerator{failURLs: map[string]bool{"https://broken.example.com": true}}
	cms := &fakeCMS{}

	p := New(testConfig(), store, coll, scorer, gen, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.GenFailed != 1 || summary.Published != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if ok, _ := store.HasProcessed(ctx, "https://broken.example.com"); !ok {
		t.Error("gen-failed candidate should be persisted")
	}
}

func TestRunSimulateSkipsCMS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://sim.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{"https://sim.example.com": 90}}
	cms := &fakeCMS{}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Published != 1 {
		t.Fatalf("simulation should count the would-be publish: %+v", summary)
	}
	if len(cms.created) != 0 {
		t.Error("simulation must not touch the CMS")
	}
	// The URL is still marked so reruns skip it.
	if ok, _ := store.HasProcessed(ctx, "https://sim.example.com"); !ok {
		t.Error("simulated publish should persist the processed mark")
	}
}

func TestRunCMSFailureMarksWpFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://flaky.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{"https://flaky.example.com": 90}}
	cms := &fakeCMS{failTitles: map[string]bool{"https://flaky.example.com": true}}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.WpFailed != 1 || summary.Published != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	// The CMS failure must not move the cadence marker.
	last, err := store.LastPublished(ctx, "t1")
	if err != nil {
		t.Fatalf("LastPublished: %v", err)
	}
	if last != nil {
		t.Error("wp_failed must not advance the cadence marker")
	}
}

func TestRunThresholdBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Exactly the threshold publishes; one below does not.
	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://just-below.example.com", "t1"), cand("https://exact.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{
		"https://just-below.example.com": 59,
		"https://exact.example.com":      60,
	}}
	cms := &fakeCMS{}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.LowScore != 1 || summary.Published != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(cms.created) != 1 || cms.created[0] != "https://exact.example.com" {
		t.Errorf("expected the exact-threshold candidate published, got %v", cms.created)
	}
}

func TestRunStopsScoringAfterPublish(t *testing.T) {
	store := newTestStore(t)

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://winner.example.com", "t1"), cand("https://unseen.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{
		"https://winner.example.com": 90,
		"https://unseen.example.com": 95,
	}}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, &fakeCMS{}, nil, logger.Default())

	if _, err := p.Run(context.Background(), []topics.Profile{{ID: "t1"}}, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scorer.calls != 1 {
		t.Errorf("first publish should consume the topic, got %d scoring calls", scorer.calls)
	}
}

func TestRunSkipsUnscorableCandidate(t *testing.T) {
	store := newTestStore(t)

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://unjudgeable.example.com", "t1"), cand("https://good.example.com", "t1")},
	}}
	scorer := &fakeScorer{
		threshold: 60,
		scores:    map[string]float64{"https://good.example.com": 90},
		errs:      map[string]error{"https://unjudgeable.example.com": errors.New("model unavailable")},
	}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, &fakeCMS{}, nil, logger.Default())

	summary, err := p.Run(context.Background(), []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Published != 1 || summary.LowScore != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunSkipsURLConsumedByConcurrentRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Another process marked the URL after this run's collection snapshot.
	if err := store.Mark(ctx, &models.ProcessedURL{
		URL: "https://taken.example.com", TopicID: "t1", Status: models.StatusProcessed,
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	coll := &fakeCollector{byTopic: map[string][]models.Candidate{
		"t1": {cand("https://taken.example.com", "t1")},
	}}
	scorer := &fakeScorer{threshold: 60, scores: map[string]float64{"https://taken.example.com": 90}}
	cms := &fakeCMS{}

	p := New(testConfig(), store, coll, scorer, &fakeGenerator{}, &fakeGate{}, passthroughLinks{}, nil, cms, nil, logger.Default())

	summary, err := p.Run(ctx, []topics.Profile{{ID: "t1"}}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Published != 0 || len(cms.created) != 0 {
		t.Fatalf("consumed URL must not publish again: %+v", summary)
	}
	// The existing record survives the idempotent duplicate mark.
	if ok, _ := store.HasProcessed(ctx, "https://taken.example.com"); !ok {
		t.Error("record should still be present")
	}
}
