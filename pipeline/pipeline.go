// Package pipeline runs product URLs through fetch, extraction, image
// download and persistence with a fixed worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/extractor"
	"github.com/aluiziolira/go-scrape-catalog/imaging"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// Skip reasons.
const (
	ReasonAlreadyScraped = "already_scraped"
	ReasonDuplicate      = "duplicate"
	ReasonCancelled      = "cancelled"
)

// Notifier receives every committed item. Failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, item *models.ScrapedItem) error
}

// OutcomeFunc observes terminal outcomes as they happen. Calls are serialized.
type OutcomeFunc func(models.Outcome)

// Pipeline coordinates discovery, per-item processing and persistence.
type Pipeline struct {
	cfg       *config.Config
	fetcher   scraper.PageFetcher
	resolver  *scraper.Resolver
	extractor *extractor.Extractor
	images    *imaging.Materializer
	store     *PersistenceContext
	resume    *ResumeIndex
	metrics   *scraper.Metrics
	logger    *slog.Logger
	notifiers []Notifier
}

// New wires a pipeline around fetcher. The resume index is built from the
// existing output tree.
func New(cfg *config.Config, fetcher *scraper.Fetcher, metrics *scraper.Metrics, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	materializer, err := imaging.NewMaterializer(fetcher.As("image"), cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	resume, err := BuildResumeIndex(cfg.OutputDir, cfg.MinDetailBytes)
	if err != nil {
		return nil, err
	}
	logger.Debug("resume index loaded", slog.Int("committed_items", resume.Len()))

	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		resolver:  scraper.NewResolver(fetcher.As("discovery"), cfg.MaxPages, logger),
		extractor: extractor.NewDefault(),
		images:    materializer,
		store:     NewPersistenceContext(cfg),
		resume:    resume,
		metrics:   metrics,
		logger:    logger.With("component", "pipeline"),
	}, nil
}

// AddNotifier registers n for committed items.
func (p *Pipeline) AddNotifier(n Notifier) {
	p.notifiers = append(p.notifiers, n)
}

// WithMediaStore uploads accepted images to store.
func (p *Pipeline) WithMediaStore(store imaging.MediaStore) {
	p.images.WithMediaStore(store)
}

// Store returns the persistence context.
func (p *Pipeline) Store() *PersistenceContext {
	return p.store
}

// Close releases the aggregate dataset.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// RunSeed resolves seed into product URLs and runs them. A DiscoveryError
// aborts before any item is processed.
func (p *Pipeline) RunSeed(ctx context.Context, seed, filter string, onOutcome OutcomeFunc) (*models.BatchResult, error) {
	urls, err := p.resolver.Resolve(ctx, seed, filter)
	if err != nil {
		p.metrics.IncError(scraper.ErrorTypeLabel(err))
		return nil, err
	}
	p.metrics.AddDiscovered(len(urls))
	p.logger.Info("discovery complete", slog.String("seed", seed), slog.Int("urls", len(urls)))
	return p.Run(ctx, urls, onOutcome)
}

// Run processes urls with cfg.Workers workers. Item failures never stop the
// batch; once ctx is done, items not yet started are skipped as cancelled.
func (p *Pipeline) Run(ctx context.Context, urls []string, onOutcome OutcomeFunc) (*models.BatchResult, error) {
	result := &models.BatchResult{
		RunID:        uuid.NewString(),
		StartTime:    time.Now(),
		Discovered:   len(urls),
		ErrorsByType: make(map[string]int),
	}
	outcomes := make([]models.Outcome, len(urls))

	seen, err := lru.New[string, struct{}](max(p.cfg.DedupeMaxSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	var emitMu sync.Mutex
	emit := func(out models.Outcome) {
		emitMu.Lock()
		defer emitMu.Unlock()
		p.logOutcome(out)
		if onOutcome != nil {
			onOutcome(out)
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := max(min(p.cfg.Workers, len(urls)), 1)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out := p.processItem(ctx, urls[i], seen)
				outcomes[i] = out
				emit(out)
			}
		}()
	}

	for i, u := range urls {
		if ctx.Err() == nil {
			select {
			case jobs <- i:
				continue
			case <-ctx.Done():
			}
		}
		out := models.Outcome{URL: u, Status: models.StatusSkipped, Stage: models.StagePending, Reason: ReasonCancelled}
		outcomes[i] = out
		emit(out)
	}
	close(jobs)
	wg.Wait()

	for _, out := range outcomes {
		switch out.Status {
		case models.StatusSuccess:
			result.Succeeded++
			result.AggregateRows += out.VariantCount
		case models.StatusSkipped:
			result.Skipped++
		case models.StatusFailed:
			result.Failed++
			result.FailedURLs = append(result.FailedURLs, out.URL)
			result.ErrorsByType[out.Reason]++
		}
	}
	result.Outcomes = outcomes
	result.EndTime = time.Now()

	p.logger.Info("batch complete",
		slog.String("run_id", result.RunID),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int("aggregate_rows", result.AggregateRows),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

// ScrapeURL runs the full item pipeline for one URL, writing its outputs.
func (p *Pipeline) ScrapeURL(ctx context.Context, productURL string) models.Outcome {
	out := p.processItem(ctx, productURL, nil)
	p.logOutcome(out)
	return out
}

// Lookup fetches and extracts one URL without writing anything.
func (p *Pipeline) Lookup(ctx context.Context, productURL string) models.ProductResult {
	resp, err := p.fetcher.Fetch(ctx, productURL)
	if err != nil {
		p.metrics.IncError(scraper.ErrorTypeLabel(err))
		return models.ProductResult{Success: false, Error: err.Error()}
	}
	record, err := p.extractor.Extract(resp.Body, productURL)
	if err != nil {
		p.metrics.IncError(scraper.ErrorTypeLabel(err))
		return models.ProductResult{Success: false, Error: err.Error()}
	}
	return models.NewProductResult(record)
}

func (p *Pipeline) processItem(ctx context.Context, productURL string, seen *lru.Cache[string, struct{}]) (out models.Outcome) {
	start := time.Now()
	out = models.Outcome{URL: productURL, Stage: models.StagePending}

	p.metrics.WorkerBusy(1)
	defer func() {
		if r := recover(); r != nil {
			out.Status = models.StatusFailed
			out.Err = fmt.Errorf("panic in %s stage: %v", out.Stage, r)
			out.Reason = "panic"
			p.metrics.IncError(out.Reason)
		}
		out.Duration = time.Since(start)
		p.metrics.WorkerBusy(-1)
		p.metrics.IncItem(string(out.Status))
	}()

	if seen != nil {
		if dup, _ := seen.ContainsOrAdd(scraper.NormalizeProductURL(productURL), struct{}{}); dup {
			return skipped(out, ReasonDuplicate)
		}
	}
	if _, done := p.resume.Lookup(productURL); done {
		return skipped(out, ReasonAlreadyScraped)
	}

	out.Stage = models.StageFetching
	resp, err := p.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return p.failed(ctx, out, err)
	}

	out.Stage = models.StageExtracting
	record, err := p.extractor.Extract(resp.Body, productURL)
	if err != nil {
		return p.failed(ctx, out, err)
	}
	out.SKU = record.SKU

	detailPath := p.store.DetailPath(record)
	if p.resume.Complete(detailPath) {
		p.resume.Record(productURL, detailPath)
		return skipped(out, ReasonAlreadyScraped)
	}

	out.Stage = models.StageImaging
	images, err := p.images.Materialize(ctx, record)
	if err != nil {
		return p.failed(ctx, out, err)
	}

	out.Stage = models.StagePersisting
	variants := parser.BuildVariants(record)
	rows, err := p.store.Commit(record, variants, images)
	p.metrics.AddAggregateRows(rows)
	if err != nil {
		return p.failed(ctx, out, err)
	}
	p.resume.Record(productURL, detailPath)

	out.Stage = models.StageDone
	out.Status = models.StatusSuccess
	out.VariantCount = len(variants)
	out.ImageCount = len(images)

	item := &models.ScrapedItem{Record: record, Variants: variants, Images: make([]models.ImageAsset, 0, len(images))}
	for _, img := range images {
		item.Images = append(item.Images, img.Asset)
	}
	p.notify(ctx, item)
	return out
}

func (p *Pipeline) failed(ctx context.Context, out models.Outcome, err error) models.Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return skipped(out, ReasonCancelled)
	}
	out.Status = models.StatusFailed
	out.Err = err
	out.Reason = scraper.ErrorTypeLabel(err)
	p.metrics.IncError(out.Reason)
	return out
}

func skipped(out models.Outcome, reason string) models.Outcome {
	out.Status = models.StatusSkipped
	out.Reason = reason
	return out
}

func (p *Pipeline) notify(ctx context.Context, item *models.ScrapedItem) {
	for _, n := range p.notifiers {
		if err := notifySafely(ctx, n, item); err != nil {
			p.metrics.IncError("notifier")
			p.logger.Warn("notifier failed",
				slog.String("sku", item.Record.SKU),
				slog.String("error", err.Error()),
			)
		}
	}
}

func notifySafely(ctx context.Context, n Notifier, item *models.ScrapedItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.Notify(ctx, item)
}

func (p *Pipeline) logOutcome(out models.Outcome) {
	attrs := []any{
		slog.String("url", out.URL),
		slog.String("status", string(out.Status)),
		slog.String("stage", string(out.Stage)),
	}
	if out.SKU != "" {
		attrs = append(attrs, slog.String("sku", out.SKU))
	}

	switch out.Status {
	case models.StatusSuccess:
		attrs = append(attrs, slog.Int("variants", out.VariantCount), slog.Int("images", out.ImageCount))
		p.logger.Info("item scraped", attrs...)
	case models.StatusSkipped:
		p.logger.Info("item skipped", append(attrs, slog.String("reason", out.Reason))...)
	default:
		attrs = append(attrs, slog.String("reason", out.Reason))
		if out.Err != nil {
			attrs = append(attrs, slog.String("error", out.Err.Error()))
		}
		p.logger.Warn("item failed", attrs...)
	}
}
