package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a Go duration string.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays SCRAPER_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	stringVars := map[string]*string{
		"SCRAPER_SEED_URL":       &cfg.SeedURL,
		"SCRAPER_FILTER":         &cfg.CategoryFilter,
		"SCRAPER_OUTPUT_DIR":     &cfg.OutputDir,
		"SCRAPER_AGGREGATE_FILE": &cfg.AggregateFile,
		"SCRAPER_FORMAT":         &cfg.OutputFormat,
		"SCRAPER_USER_AGENT":     &cfg.UserAgent,
		"SCRAPER_METRICS_ADDR":   &cfg.MetricsAddr,
		"SCRAPER_LISTEN_ADDR":    &cfg.ListenAddr,
		"SCRAPER_REDIS_ADDR":     &cfg.RedisAddr,
		"SCRAPER_REDIS_STREAM":   &cfg.RedisStream,
		"SCRAPER_DATABASE_URL":   &cfg.DatabaseURL,
	}
	for key, target := range stringVars {
		if value, ok := EnvString(key); ok {
			*target = value
		}
	}

	ints := map[string]*int{
		"SCRAPER_PAGES":           &cfg.MaxPages,
		"SCRAPER_WORKERS":         &cfg.Workers,
		"SCRAPER_MIN_IMAGE_BYTES": &cfg.MinImageBytes,
		"SCRAPER_DEDUPE_MAX_SIZE": &cfg.DedupeMaxSize,
	}
	for key, target := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		"SCRAPER_TIMEOUT":      &cfg.Timeout,
		"SCRAPER_DELAY":        &cfg.Delay,
		"SCRAPER_RANDOM_DELAY": &cfg.RandomDelay,
	}
	for key, target := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*target = value
		}
	}

	if value, ok, err := EnvBool("SCRAPER_RESPECT_ROBOTS"); err != nil {
		return err
	} else if ok {
		cfg.RespectRobotsTxt = value
	}

	return nil
}
