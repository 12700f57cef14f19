package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalog/catalogdb"
	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/events"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// app holds everything a command needs for one invocation.
type app struct {
	pipeline *pipeline.Pipeline
	metrics  *scraper.Metrics
	closers  []func()
}

// newApp validates cfg and wires the pipeline with any configured
// downstream notifiers.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := slog.Default()

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("initialising fetcher: %w", err)
	}
	p, err := pipeline.New(cfg, fetcher, metrics, logger)
	if err != nil {
		return nil, err
	}
	a := &app{pipeline: p, metrics: metrics}
	a.closers = append(a.closers, func() {
		if err := p.Close(); err != nil {
			slog.Error("close aggregate dataset", slog.Any("error", err))
		}
	})

	if cfg.RedisAddr != "" {
		publisher, err := events.Dial(ctx, cfg.RedisAddr, cfg.RedisStream, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		p.AddNotifier(publisher)
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				slog.Error("close redis publisher", slog.Any("error", err))
			}
		})
		slog.Info("publishing product events", slog.String("addr", cfg.RedisAddr), slog.String("stream", cfg.RedisStream))
	}

	if cfg.DatabaseURL != "" {
		store, err := catalogdb.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		p.AddNotifier(store)
		slog.Info("mirroring products to postgres")
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// serveMetrics starts a Prometheus endpoint on addr. The returned function
// shuts it down.
func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
