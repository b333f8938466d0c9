package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

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
		Use:   "blogforge",
		Short: "Autonomous blog publication agent powered by AI",
		Long: `An agent that discovers newsworthy pages for configured topics,
drafts full articles with Claude, gates them on SEO rules, and
publishes them as WordPress drafts.`,
		PersistentPreRunE: initializeApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(topicsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
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

	store, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// ============ RUN COMMAND ============

func runCmd() *cobra.Command {
	var (
		simulate bool
		publish  bool
		topicIDs []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one publication cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer store.Close()

			mode := cfg.Pipeline.Simulate
			if simulate {
				mode = true
			}
			if publish {
				mode = false
			}

			profiles, err := topics.Load(cfg, topicIDs)
			if err != nil {
				return fmt.Errorf("failed to load topics: %w", err)
			}

			p, err := buildPipeline(mode)
			if err != nil {
				return err
			}

			summary, err := p.Run(context.Background(), profiles, mode)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if summary.SkippedCadence {
				fmt.Println("Publish interval not elapsed; nothing to do.")
				return nil
			}

			fmt.Printf("Run complete: %d published, %d low score, %d generation failures, %d SEO failures, %d CMS failures (%d topics, %d candidates)\n",
				summary.Published, summary.LowScore, summary.GenFailed,
				summary.SeoFailed, summary.WpFailed,
				summary.TopicsRun, summary.Collected)
			return nil
		},
	}

	cmd.Flags().BoolVar(&simulate, "simulate", false, "Run everything except CMS publication")
	cmd.Flags().BoolVar(&publish, "publish", false, "Force real publication even when config defaults to simulate")
	cmd.Flags().StringSliceVar(&topicIDs, "topic", nil, "Restrict the run to these topic IDs")

	return cmd
}

func buildPipeline(simulate bool) (*pipeline.Pipeline, error) {
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
	if !simulate {
		cms = wordpress.NewClient(cfg.WordPress, limiter, log)
	}

	var cover pipeline.CoverService
	if cfg.Media.Enabled && cfg.Media.UnsplashAPIKey != "" {
		cover = media.NewService(
			unsplash.NewClient(cfg.Media.UnsplashAPIKey, limiter, log),
			cfg.Media, log)
	}

	var notifier pipeline.Notifier
	if !simulate {
		notifier = notify.New(cfg.Notify, log)
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

// ============ REPORTS COMMAND ============

func reportsCmd() *cobra.Command {
	var (
		limit      int
		topicID    string
		onlyFailed bool
		asJSON     bool
		days       int
	)

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show recent SEO gate reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer store.Close()

			filter := storage.DefaultReportFilter()
			filter.Limit = limit
			filter.TopicID = topicID
			filter.OnlyFailed = onlyFailed
			if days > 0 {
				since := time.Now().AddDate(0, 0, -days)
				filter.Since = &since
			}

			rows, err := store.QueryReports(context.Background(), filter)
			if err != nil {
				return fmt.Errorf("failed to query reports: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			if len(rows) == 0 {
				fmt.Println("No reports found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tTOPIC\tVERDICT\tCONTENT\tHEADLINE\tSTATUS\tTITLE")
			for _, row := range rows {
				verdict := "pass"
				if !row.Verdict {
					verdict = "FAIL"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					row.CreatedAt.Format("2006-01-02 15:04"),
					row.TopicID, verdict,
					row.ContentScore, row.HeadlineScore,
					row.Status, truncateCol(row.Title, 50))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum reports to show")
	cmd.Flags().StringVar(&topicID, "topic", "", "Filter by topic ID")
	cmd.Flags().BoolVar(&onlyFailed, "only-failed", false, "Show only items that failed the SEO gate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVar(&days, "days", 0, "Show only reports from the last N days")

	return cmd
}

func truncateCol(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// ============ TOPICS COMMAND ============

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage topic profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured topic profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer store.Close()

			profiles, err := topics.Load(cfg, nil)
			if err != nil {
				return fmt.Errorf("failed to load topics: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMIN SCORE\tQUERIES")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\n",
					p.ID, p.Name, p.MinScore, strings.Join(p.Queries, "; "))
			}
			return w.Flush()
		},
	})

	return cmd
}
