package models

// Draft is a generated article awaiting the SEO gate and CMS submission.
// It lives only for the duration of a run.
type Draft struct {
	Title          string
	BodyHTML       string
	Excerpt        string
	Categories     []string
	Tags           []string
	SeoTitle       string
	SeoDescription string
	FocusKeyphrase string
	OgTitle        string
	OgDescription  string
	TwitterTitle   string
	TwitterDesc    string
	ImagePrompt    string
	ImageAltText   string
	CoverMediaID   int // CMS media id once uploaded; 0 when absent
	Slug           string
}

// PublishedDraft is the CMS's receipt for a created draft post.
type PublishedDraft struct {
	PostID  int
	EditURL string
}
