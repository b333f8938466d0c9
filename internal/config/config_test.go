package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Anthropic.APIKey = "sk-test"
	cfg.Search.Provider = "brave"
	cfg.Search.Brave.APIKey = "brave-test"
	cfg.Search.Brave.Count = 20
	cfg.WordPress.SiteURL = "https://blog.example.com"
	cfg.WordPress.Username = "bot"
	cfg.WordPress.AppPassword = "secret"
	cfg.Scoring.MinUsabilityScore = 60
	cfg.Seo.ContentThreshold = 70
	cfg.Seo.HeadlineThreshold = 60
	cfg.Generator.MinBodyWords = 600
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"anthropic key", func(c *Config) { c.Anthropic.APIKey = "" }, "anthropic.api_key"},
		{"brave key", func(c *Config) { c.Search.Brave.APIKey = "" }, "search.brave.api_key"},
		{"wp site url", func(c *Config) { c.WordPress.SiteURL = "" }, "wordpress.site_url"},
		{"wp username", func(c *Config) { c.WordPress.Username = "" }, "wordpress.username"},
		{"wp app password", func(c *Config) { c.WordPress.AppPassword = "" }, "wordpress.app_password"},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }, "search.provider"},
		{"score range", func(c *Config) { c.Scoring.MinUsabilityScore = 101 }, "min_usability_score"},
		{"seo thresholds", func(c *Config) { c.Seo.ContentThreshold = 0 }, "seo thresholds"},
		{"body words", func(c *Config) { c.Generator.MinBodyWords = 0 }, "min_body_words"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestValidateSkipsCMSCredentialsInSimulate(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Simulate = true
	cfg.WordPress.SiteURL = ""
	cfg.WordPress.Username = ""
	cfg.WordPress.AppPassword = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("simulate runs should not require CMS credentials: %v", err)
	}
}

func TestValidateRSSProviderRequiresFeeds(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Provider = "rss"
	cfg.Search.Brave.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("rss provider without feeds should fail")
	}

	cfg.Search.RSS.Feeds = []RSSFeed{{Name: "example", URL: "https://news.example.org/feed"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
