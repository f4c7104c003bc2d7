// Command trendwatch runs the ingestion → normalization → trend-scoring →
// alerting pipeline described by this repository, exposing it as both a set
// of one-shot CLI subcommands and a long-running daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geraldfingburke/trendwatch/internal/adapters"
	discussionadapter "github.com/geraldfingburke/trendwatch/internal/adapters/discussion"
	feedadapter "github.com/geraldfingburke/trendwatch/internal/adapters/feed"
	"github.com/geraldfingburke/trendwatch/internal/alert"
	"github.com/geraldfingburke/trendwatch/internal/config"
	"github.com/geraldfingburke/trendwatch/internal/httpapi"
	"github.com/geraldfingburke/trendwatch/internal/ingest"
	"github.com/geraldfingburke/trendwatch/internal/models"
	"github.com/geraldfingburke/trendwatch/internal/store"
	"github.com/geraldfingburke/trendwatch/internal/telemetry"
	"github.com/geraldfingburke/trendwatch/internal/trend"
)

// Exit codes, per the external interface contract: 0 success, 1 generic
// failure, 2 configuration error, 3 partial failure (some adapters or
// sinks failed but the cycle still completed).
const (
	exitOK             = 0
	exitFailure        = 1
	exitConfigError    = 2
	exitPartialFailure = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config error: %v", err)
		return exitConfigError
	}

	root := &cobra.Command{
		Use:   "trendwatch",
		Short: "Social trend ingestion, scoring, and alerting pipeline",
	}

	var exitCode int

	root.AddCommand(
		newInitCmd(cfg, &exitCode),
		newIngestCmd(cfg, &exitCode),
		newTrendsCmd(cfg, &exitCode),
		newCleanupCmd(cfg, &exitCode),
		newHealthCmd(cfg, &exitCode),
		newStatsCmd(cfg, &exitCode),
		newServeCmd(cfg, &exitCode),
	)

	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		if exitCode == exitOK {
			exitCode = exitFailure
		}
	}
	return exitCode
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.DBPath)
}

func buildAdapters(cfg *config.Config) []adapters.SourceAdapter {
	var out []adapters.SourceAdapter
	out = append(out, feedadapter.New(cfg.RSSFeeds))
	if cfg.DiscussionEnabled() {
		out = append(out, discussionadapter.New(discussionadapter.Config{
			ClientID:     cfg.RedditClientID,
			ClientSecret: cfg.RedditClientSecret,
			UserAgent:    cfg.RedditUserAgent,
			Subreddits:   []string{"technology", "worldnews"},
			Sort:         "new",
		}))
	}
	return out
}

func newInitCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database file and run schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()
			fmt.Println("database initialized:", cfg.DBPath)
			return nil
		},
	}
}

func newIngestCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	var limitPerSource int
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle across all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()

			metrics, err := telemetry.New()
			if err != nil {
				log.Printf("telemetry disabled: %v", err)
			}
			defer metrics.Shutdown(cmd.Context())

			coordinator := ingest.New(st, metrics, buildAdapters(cfg)...)
			coordinator.SetLimitPerSource(limitPerSource)
			summary, err := coordinator.RunCycle(cmd.Context())
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			fmt.Printf("ingest cycle: %d posts written in %s\n", summary.PostsWritten, summary.Duration)
			for _, e := range summary.Errors {
				fmt.Println("warning:", e)
			}
			if summary.PartialFailure() {
				*exitCode = exitPartialFailure
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limitPerSource, "limit-per-source", 0, "maximum records fetched per source this cycle (0 = ingest coordinator default)")
	return cmd
}

func newTrendsCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	var windowHours, baselineHours, minCount int
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Score trends for the current window and persist the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()

			metrics, err := telemetry.New()
			if err != nil {
				log.Printf("telemetry disabled: %v", err)
			}
			defer metrics.Shutdown(cmd.Context())

			trendCfg := models.TrendConfig{
				WindowHours:   cfg.TrendWindowHours,
				BaselineHours: cfg.TrendBaselineHours,
				MinCount:      cfg.TrendMinCount,
			}
			if cmd.Flags().Changed("window") {
				trendCfg.WindowHours = windowHours
			}
			if cmd.Flags().Changed("baseline") {
				trendCfg.BaselineHours = baselineHours
			}
			if cmd.Flags().Changed("min-count") {
				trendCfg.MinCount = minCount
			}

			engine := trend.New(st, trendCfg, metrics)

			trends, err := engine.Run(cmd.Context(), time.Now().UTC())
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			fmt.Printf("scored %d trend rows\n", len(trends))
			return nil
		},
	}
	cmd.Flags().IntVar(&windowHours, "window", 0, "current-window size in hours (overrides TREND_WINDOW_HOURS)")
	cmd.Flags().IntVar(&baselineHours, "baseline", 0, "baseline-window size in hours (overrides TREND_BASELINE_HOURS)")
	cmd.Flags().IntVar(&minCount, "min-count", 0, "minimum mention count for a trend row (overrides TREND_MIN_COUNT)")
	return cmd
}

func newCleanupCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete trends older than N days and resolved alerts older than 2N days; posts are never deleted",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()

			now := time.Now().UTC()
			trendsCutoff := now.AddDate(0, 0, -days)
			alertsCutoff := now.AddDate(0, 0, -2*days)
			trends, alerts, err := st.CleanupOlderThan(cmd.Context(), trendsCutoff, alertsCutoff)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			fmt.Printf("deleted %d trends older than %s, %d resolved alerts older than %s\n",
				trends, trendsCutoff, alerts, alertsCutoff)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "retention window in days for trends; resolved alerts retain 2x this window")
	return cmd
}

func newHealthCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run an integrity check and report missing indexes or oversize storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()

			report, err := st.Health(cmd.Context())
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			for _, issue := range report.Issues {
				fmt.Println("issue:", issue)
			}
			for _, rec := range report.Recommendations {
				fmt.Println("recommendation:", rec)
			}
			if !report.OK {
				*exitCode = exitFailure
				return fmt.Errorf("health check failed")
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func newStatsCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate post/trend/alert counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				*exitCode = exitFailure
				return err
			}
			fmt.Printf("posts=%d trends=%d alerts=%d\n", stats.TotalPosts, stats.TotalTrends, stats.TotalAlerts)
			return nil
		},
	}
}

func newServeCmd(cfg *config.Config, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ticker-driven ingest/trend/alert pipeline continuously and serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				*exitCode = exitConfigError
				return err
			}
			defer st.Close()

			metrics, err := telemetry.New()
			if err != nil {
				log.Printf("telemetry disabled: %v", err)
			}

			daemon := newDaemon(cfg, st, metrics)

			router, err := httpapi.NewRouter(st)
			if err != nil {
				*exitCode = exitFailure
				return err
			}

			srv := &http.Server{
				Addr:         cfg.HTTPAddr,
				Handler:      router,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			daemon.Start()

			go func() {
				log.Printf("trendwatch serving on %s", cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("http server failed: %v", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("trendwatch shutting down...")
			daemon.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("http server forced to shutdown: %v", err)
			}
			metrics.Shutdown(shutdownCtx)
			return nil
		},
	}
}

// daemon runs IngestCoordinator and TrendEngine on independent tickers
// inside one process, guarded by a mutex so an overlapping tick is dropped
// rather than stacking concurrent cycles.
type daemon struct {
	cfg     *config.Config
	store   *store.Store
	metrics *telemetry.Metrics

	coordinator *ingest.Coordinator
	trendEngine *trend.Engine
	alertGate   *alert.Gate

	ingestTicker *time.Ticker
	trendTicker  *time.Ticker
	stopCh       chan struct{}

	mu      sync.Mutex
	running bool
}

func newDaemon(cfg *config.Config, st *store.Store, metrics *telemetry.Metrics) *daemon {
	coordinator := ingest.New(st, metrics, buildAdapters(cfg)...)
	trendEngine := trend.New(st, models.TrendConfig{
		WindowHours:   cfg.TrendWindowHours,
		BaselineHours: cfg.TrendBaselineHours,
		MinCount:      cfg.TrendMinCount,
	}, metrics)

	var sinks []alert.Sink
	if cfg.AlertEmailUser != "" {
		sinks = append(sinks, &alert.EmailSink{
			Host:     cfg.AlertEmailSMTP,
			Port:     "587",
			Username: cfg.AlertEmailUser,
			Password: cfg.AlertEmailPass,
			To:       cfg.AlertEmailTo,
		})
	}
	if cfg.AlertWebhookURL != "" {
		signingKey := cfg.AlertWebhookSigningKey
		if signingKey == "" {
			log.Println("alert: ALERT_WEBHOOK_SIGNING_KEY not set; webhook deliveries will be signed with an empty key")
		}
		sinks = append(sinks, &alert.WebhookSink{
			URL:        cfg.AlertWebhookURL,
			SigningKey: []byte(signingKey),
		})
	}

	alertGate := alert.New(st, models.AlertConfig{
		Enabled:         true,
		TrendThreshold:  2.0,
		GrowthThreshold: 1.0,
		VolumeThreshold: cfg.AlertVolumeThreshold,
		CooldownSeconds: 3600,
	}, metrics, sinks...)

	return &daemon{
		cfg:         cfg,
		store:       st,
		metrics:     metrics,
		coordinator: coordinator,
		trendEngine: trendEngine,
		alertGate:   alertGate,
		stopCh:      make(chan struct{}),
	}
}

func (d *daemon) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.ingestTicker = time.NewTicker(5 * time.Minute)
	d.trendTicker = time.NewTicker(15 * time.Minute)

	go d.loop()
}

func (d *daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false
	d.ingestTicker.Stop()
	d.trendTicker.Stop()
	close(d.stopCh)
}

func (d *daemon) loop() {
	ctx := context.Background()
	var cycleMu sync.Mutex
	var cycleRunning bool

	runIngest := func() {
		if !cycleMu.TryLock() {
			return
		}
		defer cycleMu.Unlock()
		if cycleRunning {
			return
		}
		cycleRunning = true
		defer func() { cycleRunning = false }()

		if _, err := d.coordinator.RunCycle(ctx); err != nil {
			log.Printf("ingest cycle failed: %v", err)
		}
	}

	var trendMu sync.Mutex
	runTrendAndAlert := func() {
		if !trendMu.TryLock() {
			return
		}
		defer trendMu.Unlock()

		trends, err := d.trendEngine.Run(ctx, time.Now().UTC())
		if err != nil {
			log.Printf("trend run failed: %v", err)
			return
		}
		if _, err := d.alertGate.Process(ctx, trends); err != nil {
			log.Printf("alert gate failed: %v", err)
		}
	}

	for {
		select {
		case <-d.ingestTicker.C:
			go runIngest()
		case <-d.trendTicker.C:
			go runTrendAndAlert()
		case <-d.stopCh:
			return
		}
	}
}
