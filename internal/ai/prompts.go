package ai

// Candidate scoring prompts
const (
	ScoringSystemPrompt = `You are an editorial analyst for a niche news blog.

Your task is to judge whether a discovered web page is worth turning into a full blog article for the given topic and audience.

Score each dimension from 0 to 100:
- relevance: how closely the page matches the topic and its editorial focus
- value: how much substance a reader would get from an article based on it
- freshness: how time-sensitive and current the page appears to be

Also classify the page:
- content_type: "news" for a dated story or announcement, "evergreen" for timeless reference material (about pages, encyclopedic entries, documentation, category hubs)

Be strict. Thin listicles, press-release rewrites, and index pages deserve low value scores.`

	ScoringUserPrompt = `Evaluate the following page for the topic below.

Topic: %s
Editorial focus: %s

Page title: %s
URL: %s
Snippet: %s

Respond in JSON format:
{
  "relevance": <0-100>,
  "value": <0-100>,
  "freshness": <0-100>,
  "content_type": "<news|evergreen>",
  "rationale": "<1-2 sentence explanation>"
}`
)

// Article generation prompts
const (
	ArticleSystemPrompt = `You are an expert blog writer producing complete, publication-ready articles in clean HTML.

Writing guidelines for this topic:
%s

Rules:
- Write the body as semantic HTML: <p>, <h2>, <h3>, <ul>, <ol>, <blockquote>. No <html>, <head>, or <body> wrappers, no inline styles.
- Write at least %d words of body text. Cover the subject thoroughly; do not pad.
- Attribute facts to the source article rather than inventing new claims.
- The SEO title and description must contain the focus keyphrase.
- The focus keyphrase is a short natural phrase (at most %d words) a reader would search for.
- Tags are lowercase, specific, and deduplicated.`

	ArticleUserPrompt = `Write a blog article based on the following source.

Topic: %s
Author: %s
Source title: %s
Source URL: %s
Source snippet: %s
%s
Respond in JSON format:
{
  "title": "<article headline>",
  "body_html": "<full article body as HTML>",
  "excerpt": "<1-2 sentence summary>",
  "categories": ["<category>"],
  "tags": ["<tag1>", "<tag2>"],
  "seo_title": "<search-optimized title>",
  "seo_description": "<search-optimized description>",
  "focus_keyphrase": "<main keyphrase>",
  "og_title": "<social share title>",
  "og_description": "<social share description>",
  "twitter_title": "<twitter card title>",
  "twitter_description": "<twitter card description>",
  "image_prompt": "<short description of an ideal cover photo>",
  "image_alt_text": "<alt text for the cover image>"
}`

	// Appended to the user prompt when the source page body was fetched.
	ArticleSourceTextPrompt = `
Source article text (may be truncated):
---
%s
---
`
)
