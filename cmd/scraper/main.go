package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
)

func main() {
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd binds flags directly to cfg, so environment values loaded
// beforehand become the flag defaults and explicit flags win.
func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "scraper",
		Short:         "Scrape a storefront catalog into per-product CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, level := newLogger(cfg.Verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose logging")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Root directory for per-product output")
	flags.StringVar(&cfg.AggregateFile, "aggregate", cfg.AggregateFile, "Aggregate variants file name inside the output dir")
	flags.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Aggregate format: csv or dual")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent product workers")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flags.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Delay between requests")
	flags.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Random jitter added to delay")
	flags.IntVar(&cfg.MinImageBytes, "min-image-bytes", cfg.MinImageBytes, "Images at or below this size are rejected")
	flags.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header for every request")
	flags.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Publish scraped products to this Redis server")
	flags.StringVar(&cfg.RedisStream, "redis-stream", cfg.RedisStream, "Redis stream for product events")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Mirror scraped products into this Postgres database")

	root.AddCommand(
		newScrapeCmd(cfg),
		newProductCmd(cfg),
		newServeCmd(cfg),
	)
	return root
}

func printSummary(result *models.BatchResult, outputDir, aggregatePath string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	duration := result.EndTime.Sub(result.StartTime)
	processed := result.Succeeded + result.Failed
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(processed) / duration.Seconds()
	}
	successRate := 0.0
	if processed > 0 {
		successRate = float64(result.Succeeded) / float64(processed) * 100
	}

	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Discovered:    %d\n", result.Discovered)
	fmt.Printf("  Succeeded:     %d\n", result.Succeeded)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  Failed:        %d\n", result.Failed)
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Variant rows:  %d\n", result.AggregateRows)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %s\n", formatCounts(result.ErrorsByType))
	}
	for _, u := range result.FailedURLs {
		fmt.Printf("  Failed URL:    %s\n", u)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output dir:    %s\n", outputDir)
	fmt.Printf("  Aggregate:     %s\n", aggregatePath)
	fmt.Println(separator)
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
