package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func newScrapeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [seed-url]",
		Short: "Discover products from a sitemap or category page and scrape them",
		Long: "Resolves the seed into product URLs, keeps those whose URL contains the\n" +
			"filter keyword, and writes one directory per product plus the aggregate\n" +
			"variants file. Products already on disk are skipped.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.SeedURL = args[0]
			}
			return runScrape(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.CategoryFilter, "filter", cfg.CategoryFilter, "Keep only product URLs containing this keyword (case-insensitive)")
	flags.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Maximum category listing pages to follow")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	return cmd
}

func runScrape(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return err
	}
	defer a.Close()

	stopMetrics := serveMetrics(cfg.MetricsAddr, a.metrics)
	defer stopMetrics()

	slog.Info("starting scrape",
		slog.String("seed", cfg.SeedURL),
		slog.String("filter", cfg.CategoryFilter),
		slog.Int("workers", cfg.Workers),
		slog.String("output_dir", cfg.OutputDir),
	)

	result, err := a.pipeline.RunSeed(ctx, cfg.SeedURL, cfg.CategoryFilter, nil)
	if err != nil {
		if scraper.IsDiscoveryError(err) {
			slog.Error("discovery failed", slog.String("seed", cfg.SeedURL), slog.Any("error", err))
		} else {
			slog.Error("scraping failed", slog.Any("error", err))
		}
		return err
	}

	printSummary(result, cfg.OutputDir, a.pipeline.Store().AggregatePath())
	if result.Failed > 0 {
		slog.Warn("batch finished with failures", slog.Int("failed", result.Failed))
	}
	if err := ctx.Err(); err != nil {
		slog.Warn("shutdown signal received, remaining items were skipped")
		return fmt.Errorf("scrape interrupted: %w", err)
	}
	return nil
}
