package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/pkg/logger"
)

type fakeArticleClient struct {
	drafts []*models.Draft
	errs   []error
	calls  int
}

func (f *fakeArticleClient) GenerateArticle(context.Context, topics.Profile, models.Candidate, int, int) (*models.Draft, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.drafts) {
		i = len(f.drafts) - 1
	}
	// Copy so normalization of one attempt doesn't leak into the next.
	d := *f.drafts[i]
	return &d, nil
}

func testConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		MinBodyWords:           20,
		MaxTags:                3,
		PostTitleMaxLen:        80,
		SeoTitleMaxLen:         60,
		SeoDescriptionMaxLen:   160,
		ExcerptMaxLen:          150,
		SocialTitleMaxLen:      60,
		SocialDescriptionMax:   155,
		FocusKeyphraseMaxWords: 4,
	}
}

func wpConfig() config.WordPressConfig {
	return config.WordPressConfig{SiteTitle: "Example Blog", TitleSeparator: "|"}
}

func bodyWithWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return "<p>" + strings.Join(words, " ") + "</p>"
}

func goodDraft() *models.Draft {
	return &models.Draft{
		Title:          "Montessori Schools Expand Across Europe This Year",
		BodyHTML:       bodyWithWords(30),
		Excerpt:        "Schools are expanding.",
		Tags:           []string{"education", "Education", "schools", "growth", "extra"},
		SeoTitle:       "Montessori growth in European schools today",
		SeoDescription: "Montessori growth is reshaping European schools this year according to new reports from several countries across the continent and beyond them all.",
		FocusKeyphrase: "montessori growth",
	}
}

func item() *models.ScoredItem {
	return &models.ScoredItem{Candidate: models.Candidate{
		URL:     "https://example.com/source",
		Title:   "Source story",
		Snippet: "A story.",
	}}
}

func TestGenerateRetriesOnceOnShortBody(t *testing.T) {
	short := goodDraft()
	short.BodyHTML = bodyWithWords(5)
	client := &fakeArticleClient{drafts: []*models.Draft{short, goodDraft()}}

	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())
	draft, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", client.calls)
	}
	if draft == nil {
		t.Fatal("expected a draft from the retry")
	}
}

func TestGenerateFailsAfterTwoShortBodies(t *testing.T) {
	short := goodDraft()
	short.BodyHTML = bodyWithWords(5)
	client := &fakeArticleClient{drafts: []*models.Draft{short, short}}

	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())
	_, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if !errors.Is(err, ErrContentTooShort) {
		t.Fatalf("expected ErrContentTooShort, got %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", client.calls)
	}
}

func TestGenerateRejectsBlockedMentions(t *testing.T) {
	bad := goodDraft()
	bad.BodyHTML = "<p>" + strings.Repeat("casino bonus word ", 10) + "</p>"
	client := &fakeArticleClient{drafts: []*models.Draft{bad, bad}}

	g := New(client, nil, testConfig(), wpConfig(), []string{"casino"}, logger.Default())
	_, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if !errors.Is(err, ErrBlockedMention) {
		t.Fatalf("expected ErrBlockedMention, got %v", err)
	}
}

func TestGenerateRecoversFromClientError(t *testing.T) {
	client := &fakeArticleClient{
		drafts: []*models.Draft{goodDraft(), goodDraft()},
		errs:   []error{errors.New("transient model error"), nil},
	}

	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())
	if _, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item()); err != nil {
		t.Fatalf("second attempt should succeed: %v", err)
	}
}

func TestNormalizeDedupesAndCapsTags(t *testing.T) {
	client := &fakeArticleClient{drafts: []*models.Draft{goodDraft()}}
	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())

	draft, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(draft.Tags) != 3 {
		t.Fatalf("expected 3 tags after dedupe and cap, got %v", draft.Tags)
	}
	if draft.Tags[0] != "education" || draft.Tags[1] != "schools" {
		t.Errorf("unexpected tag order: %v", draft.Tags)
	}
}

func TestNormalizeAppendsSiteSuffix(t *testing.T) {
	client := &fakeArticleClient{drafts: []*models.Draft{goodDraft()}}
	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())

	draft, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(draft.SeoTitle, "| Example Blog") {
		t.Errorf("seo title should carry the site suffix: %q", draft.SeoTitle)
	}
	if len(draft.SeoTitle) > testConfig().SeoTitleMaxLen {
		t.Errorf("seo title over limit: %d chars", len(draft.SeoTitle))
	}
}

func TestNormalizeEnsuresKeyphraseInMeta(t *testing.T) {
	d := goodDraft()
	d.SeoDescription = "A description without the phrase anywhere in it at all, which keeps going long enough to sit inside the recommended length band for testing."
	d.FocusKeyphrase = "montessori growth"
	client := &fakeArticleClient{drafts: []*models.Draft{d}}

	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())
	draft, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(strings.ToLower(draft.SeoDescription), "montessori growth") {
		t.Errorf("meta description should contain the keyphrase: %q", draft.SeoDescription)
	}
}

func TestFocusKeyphraseFallsBackToFirstTag(t *testing.T) {
	d := goodDraft()
	d.FocusKeyphrase = ""
	client := &fakeArticleClient{drafts: []*models.Draft{d}}

	g := New(client, nil, testConfig(), wpConfig(), nil, logger.Default())
	draft, err := g.Generate(context.Background(), topics.Profile{ID: "t1"}, item())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.FocusKeyphrase != "education" {
		t.Errorf("expected first tag as keyphrase, got %q", draft.FocusKeyphrase)
	}
}

func TestCountWordsHTMLSeparatesElements(t *testing.T) {
	if got := countWordsHTML("<p>one</p><p>two</p><h2>three four</h2>"); got != 4 {
		t.Errorf("expected 4 words, got %d", got)
	}
}
