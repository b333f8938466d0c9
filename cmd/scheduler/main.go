package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/blogforge-agent/internal/agent/pipeline"
	"github.com/blogforge-agent/internal/ai"
	"github.com/blogforge-agent/internal/collector"
	"github.com/blogforge-agent/internal/config"
	"github.com/blogforge-agent/internal/fetch"
	"github.com/blogforge-agent/internal/generator"
	"github.com/blogforge-agent/internal/media"
	"github.com/blogforge-agent/internal/media/unsplash"
	"github.com/blogforge-agent/internal/notify"
	"github.com/blogforge-agent/internal/scorer"
	"github.com/blogforge-agent/internal/search"
	"github.com/blogforge-agent/internal/search/brave"
	"github.com/blogforge-agent/internal/search/rss"
	"github.com/blogforge-agent/internal/seo"
	"github.com/blogforge-agent/internal/storage"
	"github.com/blogforge-agent/internal/storage/sqlite"
	"github.com/blogforge-agent/internal/topics"
	"github.com/blogforge-agent/internal/wordpress"
	"github.com/blogforge-agent/pkg/logger"
	"github.com/blogforge-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	store   storage.Store
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blogforge-scheduler",
		Short: "Background scheduler for the blog publication agent",
		Long: `Runs the publication pipeline on a cron schedule.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting BlogForge scheduler")

	store, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	go startHealthServer()

	p, err := buildPipeline()
	if err != nil {
		return err
	}

	c := cron.New(cron.WithLogger(cronLogger{log}))

	_, err = c.AddFunc(cfg.Scheduler.PipelineCron, func() {
		ctx := context.Background()
		log.Info().Msg("Running scheduled publication cycle")

		profiles, err := topics.Load(cfg, nil)
		if err != nil {
			log.Error().Err(err).Msg("Could not load topics")
			return
		}

		summary, err := p.Run(ctx, profiles, cfg.Pipeline.Simulate)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled run failed")
			return
		}

		log.Info().
			Int("published", summary.Published).
			Int("seo_failed", summary.SeoFailed).
			Int("gen_failed", summary.GenFailed).
			Bool("skipped_cadence", summary.SkippedCadence).
			Msg("Scheduled run completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.PipelineCron).Msg("Pipeline job scheduled")

	c.Start()
	log.Info().Msg("Scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

func buildPipeline() (*pipeline.Pipeline, error) {
	limiter := ratelimit.NewDefaultLimiter()

	provider, err := buildSearchProvider(limiter)
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)

	var fetcher generator.SourceFetcher
	if cfg.Generator.SourceFetchEnabled {
		fetcher = fetch.New(cfg.Generator.SourceFetchMaxChars, log)
	}

	var cms pipeline.CMS
	var notifier pipeline.Notifier
	if !cfg.Pipeline.Simulate {
		cms = wordpress.NewClient(cfg.WordPress, limiter, log)
		notifier = notify.New(cfg.Notify, log)
	}

	var cover pipeline.CoverService
	if cfg.Media.Enabled && cfg.Media.UnsplashAPIKey != "" {
		cover = media.NewService(
			unsplash.NewClient(cfg.Media.UnsplashAPIKey, limiter, log),
			cfg.Media, log)
	}

	return pipeline.New(
		cfg,
		store,
		collector.New(provider, store, cfg.Collector, log),
		scorer.New(aiClient, cfg.Scoring, log),
		generator.New(aiClient, fetcher, cfg.Generator, cfg.WordPress, cfg.Collector.BlockedTerms, log),
		seo.NewGate(cfg.Seo, cfg.WordPress, cfg.Generator),
		seo.NewOptimizer(cfg.WordPress, log),
		cover,
		cms,
		notifier,
		log,
	), nil
}

func buildSearchProvider(limiter *ratelimit.MultiLimiter) (search.Provider, error) {
	switch cfg.Search.Provider {
	case "brave":
		return brave.New(cfg.Search.Brave, limiter, log), nil
	case "rss":
		return rss.New(cfg.Search.RSS, log), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer exposes a minimal health endpoint for the host.
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	log.Info().Str("port", port).Msg("Health server listening")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server stopped")
	}
}
