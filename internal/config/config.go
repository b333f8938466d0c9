package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration. It is built once at
// startup and passed to components by value; nothing reads the environment
// after Load returns.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Search    SearchConfig    `mapstructure:"search"`
	WordPress WordPressConfig `mapstructure:"wordpress"`
	Topics    TopicsConfig    `mapstructure:"topics"`
	Collector CollectorConfig `mapstructure:"collector"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Seo       SeoConfig       `mapstructure:"seo"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Media     MediaConfig     `mapstructure:"media"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds state store settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite path
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// SearchConfig holds search provider settings
type SearchConfig struct {
	Provider string      `mapstructure:"provider"` // brave or rss
	Brave    BraveConfig `mapstructure:"brave"`
	RSS      RSSConfig   `mapstructure:"rss"`
}

// BraveConfig holds Brave Web Search API settings
type BraveConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Count   int    `mapstructure:"count"`
	Country string `mapstructure:"country"`
	Lang    string `mapstructure:"lang"`
	// Restrict results to pages published within this many days; 0 disables.
	FreshnessDays int `mapstructure:"freshness_days"`
}

// RSSConfig holds RSS provider settings
type RSSConfig struct {
	Feeds  []RSSFeed `mapstructure:"feeds"`
	MaxAge string    `mapstructure:"max_age"` // skip items older than this
}

// RSSFeed represents a single RSS feed
type RSSFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// WordPressConfig holds CMS publish settings
type WordPressConfig struct {
	SiteURL        string   `mapstructure:"site_url"`
	Username       string   `mapstructure:"username"`
	AppPassword    string   `mapstructure:"app_password"`
	SiteTitle      string   `mapstructure:"site_title"`
	TitleSeparator string   `mapstructure:"title_separator"`
	InternalLinks  []string `mapstructure:"internal_links"`
	// Push SEO metadata to the AIOSEO plugin endpoint after draft creation.
	SeoSync bool `mapstructure:"seo_sync"`
}

// TopicsConfig holds topic registry settings
type TopicsConfig struct {
	File string `mapstructure:"file"`
}

// CollectorConfig holds candidate filtering settings
type CollectorConfig struct {
	ExcludedDomains []string `mapstructure:"excluded_domains"`
	BlockedTerms    []string `mapstructure:"blocked_terms"`
}

// ScoringConfig holds relevance scoring settings
type ScoringConfig struct {
	MinUsabilityScore float64 `mapstructure:"min_usability_score"` // 0-100
	EvergreenPenalty  float64 `mapstructure:"evergreen_penalty"`   // subtracted, not a hard reject
}

// GeneratorConfig holds content generation settings and field limits
type GeneratorConfig struct {
	MinBodyWords           int  `mapstructure:"min_body_words"`
	SourceFetchEnabled     bool `mapstructure:"source_fetch_enabled"`
	SourceFetchMaxChars    int  `mapstructure:"source_fetch_max_chars"`
	MaxTags                int  `mapstructure:"max_tags"`
	PostTitleMaxLen        int  `mapstructure:"post_title_max_len"`
	SeoTitleMaxLen         int  `mapstructure:"seo_title_max_len"`
	SeoDescriptionMaxLen   int  `mapstructure:"seo_description_max_len"`
	ExcerptMaxLen          int  `mapstructure:"excerpt_max_len"`
	SocialTitleMaxLen      int  `mapstructure:"social_title_max_len"`
	SocialDescriptionMax   int  `mapstructure:"social_description_max_len"`
	FocusKeyphraseMaxWords int  `mapstructure:"focus_keyphrase_max_words"`
}

// SeoConfig holds SEO gate settings
type SeoConfig struct {
	ContentThreshold  int  `mapstructure:"content_threshold"`  // 0-100
	HeadlineThreshold int  `mapstructure:"headline_threshold"` // 0-100
	StrictKeyphrase   bool `mapstructure:"strict_keyphrase"`   // substring vs token-overlap match
	// Require an external authority link only every Nth publication.
	ExternalLinkInterval int      `mapstructure:"external_link_interval"`
	AuthorityLinks       []string `mapstructure:"authority_links"`
}

// PipelineConfig holds orchestrator settings
type PipelineConfig struct {
	PublishIntervalDays   int  `mapstructure:"publish_interval_days"`
	MaxPostsPerRun        int  `mapstructure:"max_posts_per_run"`
	MaxCandidatesPerTopic int  `mapstructure:"max_candidates_per_topic"`
	Simulate              bool `mapstructure:"simulate"`
}

// MediaConfig holds cover image settings
type MediaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UnsplashAPIKey string `mapstructure:"unsplash_api_key"`
	Width          int    `mapstructure:"width"`
	Height         int    `mapstructure:"height"`
	JpegQuality    int    `mapstructure:"jpeg_quality"`
	MaxBytes       int    `mapstructure:"max_bytes"`
}

// NotifyConfig holds draft notification settings
type NotifyConfig struct {
	WebhookURL       string `mapstructure:"webhook_url"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

// SchedulerConfig holds cron daemon settings
type SchedulerConfig struct {
	PipelineCron string `mapstructure:"pipeline_cron"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".blogforge"))
		}
	}

	v.SetEnvPrefix("BLOGFORGE")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "BLOGFORGE_ANTHROPIC_API_KEY")
	v.BindEnv("search.provider", "BLOGFORGE_SEARCH_PROVIDER")
	v.BindEnv("search.brave.api_key", "BLOGFORGE_BRAVE_API_KEY")
	v.BindEnv("wordpress.site_url", "BLOGFORGE_WP_SITE_URL")
	v.BindEnv("wordpress.username", "BLOGFORGE_WP_USERNAME")
	v.BindEnv("wordpress.app_password", "BLOGFORGE_WP_APP_PASSWORD")
	v.BindEnv("database.dsn", "BLOGFORGE_DATABASE_DSN")
	v.BindEnv("pipeline.simulate", "BLOGFORGE_PIPELINE_SIMULATE")
	v.BindEnv("media.unsplash_api_key", "BLOGFORGE_MEDIA_UNSPLASH_API_KEY")
	v.BindEnv("notify.webhook_url", "BLOGFORGE_NOTIFY_WEBHOOK_URL")
	v.BindEnv("notify.telegram_bot_token", "BLOGFORGE_NOTIFY_TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.telegram_chat_id", "BLOGFORGE_NOTIFY_TELEGRAM_CHAT_ID")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "./data/blogforge.db")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.7)

	v.SetDefault("search.provider", "brave")
	v.SetDefault("search.brave.count", 20)
	v.SetDefault("search.brave.freshness_days", 7)
	v.SetDefault("search.rss.max_age", "168h")

	v.SetDefault("wordpress.title_separator", "|")
	v.SetDefault("wordpress.seo_sync", true)

	v.SetDefault("topics.file", "./configs/topics.yaml")

	v.SetDefault("scoring.min_usability_score", 60.0)
	v.SetDefault("scoring.evergreen_penalty", 15.0)

	v.SetDefault("generator.min_body_words", 600)
	v.SetDefault("generator.source_fetch_enabled", true)
	v.SetDefault("generator.source_fetch_max_chars", 8000)
	v.SetDefault("generator.max_tags", 8)
	v.SetDefault("generator.post_title_max_len", 60)
	v.SetDefault("generator.seo_title_max_len", 60)
	v.SetDefault("generator.seo_description_max_len", 160)
	v.SetDefault("generator.excerpt_max_len", 160)
	v.SetDefault("generator.social_title_max_len", 60)
	v.SetDefault("generator.social_description_max_len", 155)
	v.SetDefault("generator.focus_keyphrase_max_words", 5)

	v.SetDefault("seo.content_threshold", 70)
	v.SetDefault("seo.headline_threshold", 60)
	v.SetDefault("seo.strict_keyphrase", false)
	v.SetDefault("seo.external_link_interval", 3)

	v.SetDefault("pipeline.publish_interval_days", 0)
	v.SetDefault("pipeline.max_posts_per_run", 1)
	v.SetDefault("pipeline.max_candidates_per_topic", 10)
	v.SetDefault("pipeline.simulate", false)

	v.SetDefault("media.enabled", false)
	v.SetDefault("media.width", 1200)
	v.SetDefault("media.height", 630)
	v.SetDefault("media.jpeg_quality", 90)
	v.SetDefault("media.max_bytes", 400_000)

	v.SetDefault("scheduler.pipeline_cron", "0 9 * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate checks required credentials and thresholds. A validation error
// is fatal: the run must abort before any state mutation.
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	switch c.Search.Provider {
	case "brave":
		if c.Search.Brave.APIKey == "" {
			return fmt.Errorf("search.brave.api_key is required when search.provider=brave")
		}
		if c.Search.Brave.Count <= 0 {
			return fmt.Errorf("search.brave.count must be greater than 0")
		}
	case "rss":
		if len(c.Search.RSS.Feeds) == 0 {
			return fmt.Errorf("search.rss.feeds is required when search.provider=rss")
		}
	default:
		return fmt.Errorf("invalid search.provider %q: valid values are brave, rss", c.Search.Provider)
	}
	if !c.Pipeline.Simulate {
		if c.WordPress.SiteURL == "" {
			return fmt.Errorf("wordpress.site_url is required")
		}
		if c.WordPress.Username == "" {
			return fmt.Errorf("wordpress.username is required")
		}
		if c.WordPress.AppPassword == "" {
			return fmt.Errorf("wordpress.app_password is required")
		}
	}
	if c.Scoring.MinUsabilityScore < 0 || c.Scoring.MinUsabilityScore > 100 {
		return fmt.Errorf("scoring.min_usability_score must be within 0-100")
	}
	if c.Seo.ContentThreshold <= 0 || c.Seo.HeadlineThreshold <= 0 {
		return fmt.Errorf("seo thresholds must be greater than 0")
	}
	if c.Generator.MinBodyWords <= 0 {
		return fmt.Errorf("generator.min_body_words must be greater than 0")
	}
	return nil
}
