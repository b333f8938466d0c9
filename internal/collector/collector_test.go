package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/search"
	"github.com/blogforge-agent/internal/storage"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

type fakeProvider struct {
	results map[string][]search.Result
	errs    map[string]error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, query string) ([]search.Result, error) {
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakeStore struct {
	storage.Store
	processed map[string]bool
}

func (f *fakeStore) ProcessedURLs(context.Context) (map[string]bool, error) {
	return f.processed, nil
}

func newCollector(provider search.Provider, processed map[string]bool, cfg config.CollectorConfig) *Collector {
	if processed == nil {
		processed = map[string]bool{}
	}
	return New(provider, &fakeStore{processed: processed}, cfg, logger.Default())
}

func result(url, title, domain string) search.Result {
	return search.Result{Title: title, URL: url, Domain: domain, Snippet: title}
}

func TestCollectDedupesAndPreservesOrder(t *testing.T) {
	provider := &fakeProvider{results: map[string][]search.Result{
		"q1": {
			result("https://a.com/1", "first", "a.com"),
			result("https://b.com/2", "second", "b.com"),
		},
		"q2": {
			result("https://a.com/1", "first again", "a.com"),
			result("https://c.com/3", "third", "c.com"),
		},
	}}

	c := newCollector(provider, nil, config.CollectorConfig{})
	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"q1", "q2"}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"https://a.com/1", "https://b.com/2", "https://c.com/3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, url := range want {
		if got[i].URL != url {
			t.Errorf("position %d: expected %s, got %s", i, url, got[i].URL)
		}
		if got[i].TopicID != "t1" {
			t.Errorf("candidate %s missing topic id", got[i].URL)
		}
	}
}

func TestCollectFiltersProcessedAndExcluded(t *testing.T) {
	provider := &fakeProvider{results: map[string][]search.Result{
		"q": {
			result("https://seen.com/old", "already processed", "seen.com"),
			result("https://pinterest.com/pin", "pinned", "pinterest.com"),
			result("https://sub.pinterest.com/pin2", "pinned sub", "sub.pinterest.com"),
			result("https://fresh.com/new", "fresh news", "fresh.com"),
		},
	}}

	c := newCollector(provider,
		map[string]bool{"https://seen.com/old": true},
		config.CollectorConfig{ExcludedDomains: []string{"pinterest.com"}})

	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"q"}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://fresh.com/new" {
		t.Fatalf("expected only the fresh candidate, got %+v", got)
	}
}

func TestCollectFiltersBlockedTerms(t *testing.T) {
	provider := &fakeProvider{results: map[string][]search.Result{
		"q": {
			result("https://a.com/1", "Casino bonus news", "a.com"),
			result("https://b.com/2", "Legitimate story", "b.com"),
		},
	}}

	c := newCollector(provider, nil, config.CollectorConfig{BlockedTerms: []string{"casino"}})

	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"q"}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://b.com/2" {
		t.Fatalf("expected the blocked result dropped, got %+v", got)
	}
}

func TestCollectEmptyInputs(t *testing.T) {
	c := newCollector(&fakeProvider{}, nil, config.CollectorConfig{})

	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1"})
	if err != nil {
		t.Fatalf("no queries should not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}

	got, err = c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"nothing"}})
	if err != nil {
		t.Fatalf("empty provider response should not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestCollectSurvivesFailedQuery(t *testing.T) {
	provider := &fakeProvider{
		results: map[string][]search.Result{
			"good": {result("https://a.com/1", "story", "a.com")},
		},
		errs: map[string]error{"bad": errors.New("search unavailable")},
	}

	c := newCollector(provider, nil, config.CollectorConfig{})
	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"bad", "good"}})
	if err != nil {
		t.Fatalf("one failed query should not fail the topic: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate from the surviving query, got %d", len(got))
	}
}

func TestCollectKeepsPublishedAt(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{results: map[string][]search.Result{
		"q": {{Title: "dated", URL: "https://a.com/d", Domain: "a.com", PublishedAt: &published}},
	}}

	c := newCollector(provider, nil, config.CollectorConfig{})
	got, err := c.Collect(context.Background(), topics.Profile{ID: "t1", Queries: []string{"q"}})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].PublishedAt == nil || !got[0].PublishedAt.Equal(published) {
		t.Fatalf("expected published date carried through, got %+v", got)
	}
}
