package seo

import (
	"reflect"
	"strings"
	"testing"

	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/models"
)

func testGate() *Gate {
	return NewGate(
		config.SeoConfig{ContentThreshold: 70, HeadlineThreshold: 60},
		config.WordPressConfig{SiteURL: "https://blog.example.com"},
		config.GeneratorConfig{PostTitleMaxLen: 80, MinBodyWords: 40},
	)
}

func passingDraft() *models.Draft {
	body := `
<p>Montessori education is moving quickly this year. Schools across Europe report record interest. Parents want alternatives. Administrators are listening closely.</p>
<h2>Where montessori education grows fastest</h2>
<p>Enrollment data shows steady growth. New campuses opened in four countries. Teacher training programs expanded too. Several cities report waiting lists.</p>
<p>Read our earlier coverage in <a href="https://blog.example.com/earlier-coverage">this report</a> for background. The source data came from <a href="https://news.example.org/study">an independent study</a> published recently.</p>
<p>Experts expect the trend to continue. Funding remains the open question. Districts are watching the results closely before committing budgets.</p>`

	return &models.Draft{
		Title:          "7 New Montessori Education Trends in Schools",
		BodyHTML:       body,
		Excerpt:        "Montessori education trends for the year.",
		SeoTitle:       "Montessori Education Trends for Schools in 2026",
		SeoDescription: "Montessori education is changing fast. Discover the trends shaping schools this year and what administrators should prepare for in the seasons ahead.",
		FocusKeyphrase: "montessori education",
		OgTitle:        "Montessori Education Trends",
		OgDescription:  "The montessori education trends shaping schools this year.",
		TwitterTitle:   "Montessori Education Trends",
		TwitterDesc:    "The montessori education trends shaping schools this year.",
	}
}

func TestGateIsDeterministic(t *testing.T) {
	gate := testGate()
	draft := passingDraft()

	first := gate.Evaluate(draft, false)
	second := gate.Evaluate(draft, false)

	if first.ContentScore != second.ContentScore || first.HeadlineScore != second.HeadlineScore {
		t.Errorf("scores changed between evaluations: %+v vs %+v", first, second)
	}
	if first.Verdict != second.Verdict {
		t.Error("verdict changed between evaluations")
	}
	if !reflect.DeepEqual(first.Flags, second.Flags) {
		t.Error("flags changed between evaluations")
	}
}

func TestGatePassesWellFormedDraft(t *testing.T) {
	result := testGate().Evaluate(passingDraft(), false)

	if !result.Verdict {
		t.Fatalf("expected pass, got content=%d headline=%d flags=%v",
			result.ContentScore, result.HeadlineScore, result.Flags)
	}
	if result.ContentScore < 70 {
		t.Errorf("content score below threshold: %d", result.ContentScore)
	}
	if result.HeadlineScore < 60 {
		t.Errorf("headline score below threshold: %d", result.HeadlineScore)
	}
	if result.InternalLinks < 1 {
		t.Error("expected at least one internal link counted")
	}
}

func TestGateMustRuleTitleLength(t *testing.T) {
	draft := passingDraft()
	draft.Title = strings.Repeat("Very Long Title ", 10)

	result := testGate().Evaluate(draft, false)
	if result.Verdict {
		t.Error("oversized title must fail the gate regardless of score")
	}
	if result.Flags["post_title_length"] {
		t.Error("post_title_length flag should be false")
	}
}

func TestGateMustRuleKeyphraseInMeta(t *testing.T) {
	draft := passingDraft()
	draft.SeoDescription = "A long enough description about classroom changes this school year, with plenty of detail for the band but missing the key phrase entirely, sadly."

	result := testGate().Evaluate(draft, false)
	if result.Verdict {
		t.Error("missing keyphrase in meta description must fail the gate")
	}
	if result.Flags["keyword_in_meta_description"] {
		t.Error("keyword_in_meta_description flag should be false")
	}
}

func TestGateFlagsMissingInternalLink(t *testing.T) {
	draft := passingDraft()
	draft.BodyHTML = strings.ReplaceAll(draft.BodyHTML,
		`<a href="https://blog.example.com/earlier-coverage">this report</a>`, "this report")

	result := testGate().Evaluate(draft, false)
	if result.Flags["internal_links"] {
		t.Error("internal_links flag should be false without a site link")
	}
	if result.InternalLinks != 0 {
		t.Errorf("expected 0 internal links, got %d", result.InternalLinks)
	}
}

func TestGateExternalLinkRuleOnlyWhenRequired(t *testing.T) {
	draft := passingDraft()
	draft.BodyHTML = strings.ReplaceAll(draft.BodyHTML,
		`<a href="https://news.example.org/study">an independent study</a>`, "an independent study")

	gate := testGate()

	relaxed := gate.Evaluate(draft, false)
	if _, present := relaxed.Flags["external_links"]; present {
		t.Error("external_links should not be checked when not required")
	}

	strict := gate.Evaluate(draft, true)
	if strict.Flags["external_links"] {
		t.Error("external_links flag should be false when required and missing")
	}
	if strict.ContentScore >= relaxed.ContentScore {
		t.Errorf("missing required external link should cost score: %d vs %d",
			strict.ContentScore, relaxed.ContentScore)
	}
}

func TestGateStrictKeyphraseMode(t *testing.T) {
	strictGate := NewGate(
		config.SeoConfig{ContentThreshold: 70, HeadlineThreshold: 60, StrictKeyphrase: true},
		config.WordPressConfig{SiteURL: "https://blog.example.com"},
		config.GeneratorConfig{PostTitleMaxLen: 80, MinBodyWords: 40},
	)

	draft := passingDraft()
	// Tokens present but never adjacent.
	draft.SeoDescription = "Montessori methods and modern education both appear here, spread apart across a description long enough for the recommended length band to be satisfied."

	result := strictGate.Evaluate(draft, false)
	if result.Flags["keyword_in_meta_description"] {
		t.Error("strict mode should require the exact phrase")
	}

	relaxed := testGate().Evaluate(draft, false)
	if !relaxed.Flags["keyword_in_meta_description"] {
		t.Error("token mode should accept scattered tokens")
	}
}

func TestHeadlineRubric(t *testing.T) {
	gate := testGate()

	good := gate.ScoreHeadline("7 New Montessori Education Trends in Schools", "montessori education")
	if good.Score < 60 {
		t.Errorf("well-formed headline should clear the bar, got %d", good.Score)
	}
	if good.Type != "list" {
		t.Errorf("expected list headline, got %s", good.Type)
	}

	weak := gate.ScoreHeadline("Update", "")
	if weak.Score >= 60 {
		t.Errorf("one-word headline should score low, got %d", weak.Score)
	}

	question := gate.ScoreHeadline("Is Montessori Education Right for Your Child?", "")
	if question.Type != "question" {
		t.Errorf("expected question headline, got %s", question.Type)
	}

	howTo := gate.ScoreHeadline("How to Choose a Montessori School", "")
	if howTo.Type != "how-to" {
		t.Errorf("expected how-to headline, got %s", howTo.Type)
	}
}

func TestGateThresholdBoundary(t *testing.T) {
	draft := passingDraft()
	wp := config.WordPressConfig{SiteURL: "https://blog.example.com"}
	gen := config.GeneratorConfig{PostTitleMaxLen: 80, MinBodyWords: 40}

	// The well-formed draft scores 100 on both axes; a score equal to the
	// threshold passes, one below it does not.
	atBar := NewGate(config.SeoConfig{ContentThreshold: 100, HeadlineThreshold: 100}, wp, gen)
	if result := atBar.Evaluate(draft, false); !result.Verdict {
		t.Errorf("score equal to the threshold should pass, got content=%d headline=%d",
			result.ContentScore, result.HeadlineScore)
	}

	aboveBar := NewGate(config.SeoConfig{ContentThreshold: 101, HeadlineThreshold: 100}, wp, gen)
	if result := aboveBar.Evaluate(draft, false); result.Verdict {
		t.Error("score below the content threshold should fail")
	}
}
