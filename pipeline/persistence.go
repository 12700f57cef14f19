package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/imaging"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// PersistenceContext owns the output tree of one process. Per-item
// directories belong to the worker handling that SKU; the aggregate
// dataset is the only shared file and is guarded by mu.
type PersistenceContext struct {
	root          string
	aggregatePath string
	format        string

	mu        sync.Mutex // guards aggregate and rows
	aggregate AggregateWriter
	rows      int
}

// NewPersistenceContext binds the output tree described by cfg. Nothing is
// created on disk until the first commit.
func NewPersistenceContext(cfg *config.Config) *PersistenceContext {
	return &PersistenceContext{
		root:          cfg.OutputDir,
		aggregatePath: filepath.Join(cfg.OutputDir, cfg.AggregateFile),
		format:        cfg.OutputFormat,
	}
}

// Root returns the output root directory.
func (p *PersistenceContext) Root() string {
	return p.root
}

// AggregatePath returns the path of the master CSV dataset.
func (p *PersistenceContext) AggregatePath() string {
	return p.aggregatePath
}

// ItemDir returns <root>/<main>/<gender>/<type>/<sku>.
func (p *PersistenceContext) ItemDir(r *models.ProductRecord) string {
	parts := []string{p.root}
	for _, segment := range r.Category.Segments() {
		if s := parser.PathSegment(segment); s != "" {
			parts = append(parts, s)
		} else {
			parts = append(parts, parser.UnknownSegment)
		}
	}
	return filepath.Join(append(parts, parser.SanitizeSKU(r.SKU))...)
}

// DetailPath returns the commit-marker file for r.
func (p *PersistenceContext) DetailPath(r *models.ProductRecord) string {
	return filepath.Join(p.ItemDir(r), DetailFileName)
}

// Commit writes every output of one item and returns the number of
// aggregate rows appended. The detail file is written last, so its
// presence marks a fully committed item.
func (p *PersistenceContext) Commit(r *models.ProductRecord, variants []models.Variant, images []imaging.Image) (int, error) {
	dir := p.ItemDir(r)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create item directory: %w", err)
	}

	if err := writeImages(dir, images); err != nil {
		return 0, err
	}
	if err := writeVariants(dir, r, variants); err != nil {
		return 0, err
	}
	if err := writeImageIndex(dir, r.SKU, images); err != nil {
		return 0, err
	}

	rows := parser.AggregateRows(r, variants)
	if err := p.AppendAggregate(rows); err != nil {
		return 0, err
	}

	if err := writeDetail(dir, r); err != nil {
		return len(rows), err
	}
	return len(rows), nil
}

// AppendAggregate appends rows to the shared dataset under the lock.
func (p *PersistenceContext) AppendAggregate(rows []models.AggregateRow) error {
	if len(rows) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.aggregate == nil {
		w, err := NewAggregateWriter(p.aggregatePath, p.format)
		if err != nil {
			return fmt.Errorf("open aggregate dataset: %w", err)
		}
		p.aggregate = w
	}
	if err := p.aggregate.Write(rows); err != nil {
		return fmt.Errorf("append aggregate rows: %w", err)
	}
	p.rows += len(rows)
	return nil
}

// RowsAppended reports the aggregate rows written by this process.
func (p *PersistenceContext) RowsAppended() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows
}

// Close checks and closes the aggregate dataset, if it was opened.
func (p *PersistenceContext) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.aggregate == nil {
		return nil
	}
	validateErr := p.aggregate.Validate()
	if validateErr != nil {
		validateErr = fmt.Errorf("aggregate dataset: %w", validateErr)
	}
	err := errors.Join(validateErr, p.aggregate.Close())
	p.aggregate = nil
	return err
}
