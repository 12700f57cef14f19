package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	SeedURL          string
	CategoryFilter   string
	MaxPages         int
	Workers          int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	UserAgent        string
	Headers          map[string]string
	RespectRobotsTxt bool
	OutputDir        string
	AggregateFile    string
	OutputFormat     string // csv or dual
	MinDetailBytes   int64
	MinImageBytes    int
	DedupeMaxSize    int
	Verbose          bool
	MetricsAddr      string
	ListenAddr       string
	RedisAddr        string
	RedisStream      string
	DatabaseURL      string
}

// DefaultConfig returns conservative defaults for the storefront.
func DefaultConfig() *Config {
	return &Config{
		SeedURL:        "https://rightgifting.com/sitemap.xml",
		CategoryFilter: "",
		MaxPages:       20,
		Workers:        6,
		Delay:          0,
		RandomDelay:    0,
		Timeout:        20 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		RespectRobotsTxt: false,
		OutputDir:        "sku",
		AggregateFile:    "master_variants.csv",
		OutputFormat:     "csv",
		MinDetailBytes:   50,
		MinImageBytes:    2000,
		DedupeMaxSize:    100000,
		RedisStream:      "catalog:products",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return fmt.Errorf("seed URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.SeedURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("seed URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.AggregateFile == "" {
		return fmt.Errorf("aggregate file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv or dual")
	}
	if c.MinDetailBytes < 0 {
		return fmt.Errorf("min detail bytes cannot be negative")
	}
	if c.MinImageBytes < 0 {
		return fmt.Errorf("min image bytes cannot be negative")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
