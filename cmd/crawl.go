package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/browser"
	"github.com/tnprice/crawler/internal/cancel"
	"github.com/tnprice/crawler/internal/config"
	"github.com/tnprice/crawler/internal/metrics"
	"github.com/tnprice/crawler/internal/orchestrator"
	"github.com/tnprice/crawler/internal/sitemap"
	"github.com/tnprice/crawler/internal/strategy"
)

// newCrawlCmd creates the 'crawl' subcommand: run one scrape job against a
// configured website and print its report.
func newCrawlCmd(getApp func() *app) *cobra.Command {
	var (
		site     string
		jobID    string
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a scrape job against a configured website",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), getApp(), site, jobID, maxPages)
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "website name from the config file")
	cmd.Flags().StringVar(&jobID, "job-id", "", "job ID (generated when empty)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page cap override for this job")
	_ = cmd.MarkFlagRequired("site")

	return cmd
}

func runCrawl(ctx context.Context, a *app, site, jobID string, maxPages int) error {
	website, scraperCfg, err := a.cfg.Website(site)
	if err != nil {
		return err
	}
	if maxPages <= 0 {
		maxPages = a.cfg.MaxPages(scraperCfg.ConfigType)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if a.cfg.Metrics.Enabled {
		serveMetrics(a.cfg.Metrics.Port, m, a.logger)
	}

	pool := browser.NewPool(browser.Config{
		MaxSessions:       a.cfg.Browser.MaxSessions,
		Headless:          a.cfg.Browser.Headless,
		UserAgent:         a.cfg.Browser.UserAgent,
		NavigationTimeout: time.Duration(a.cfg.Browser.NavTimeoutSec) * time.Second,
		ReadyTimeout:      time.Duration(a.cfg.Browser.ReadyTimeoutSec) * time.Second,
	}, a.logger, m)
	defer pool.Close()

	gate, closeGate, err := buildGate(a.cfg.Redis)
	if err != nil {
		return err
	}
	defer closeGate()

	disc := sitemap.New(30*time.Second, a.logger, sitemap.WithUserAgent(a.cfg.Browser.UserAgent))
	registry := strategy.NewRegistry(a.logger)
	orch := orchestrator.New(pool, gate, registry, disc, m, a.logger)

	report, err := orch.Run(ctx, orchestrator.Job{
		ID:       jobID,
		Website:  website,
		Config:   scraperCfg,
		MaxPages: maxPages,
	})
	printReport(report)
	return err
}

// buildGate picks the Redis-backed gate when an address is configured and
// falls back to the in-process gate otherwise.
func buildGate(cfg config.RedisConfig) (cancel.Gate, func(), error) {
	if cfg.Addr == "" {
		return cancel.NewMemoryGate(0), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return cancel.NewRedisGate(client, 0), func() { _ = client.Close() }, nil
}

func serveMetrics(port int, m *metrics.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	addr := fmt.Sprintf(":%d", port)
	go func() {
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}

func printReport(report orchestrator.Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
