// Package imaging downloads, validates and labels product images.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

const defaultRejectCacheSize = 4096

// Fetcher downloads one image.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Response, error)
}

// MediaStore receives accepted image bytes and returns a hosted URL for them.
type MediaStore interface {
	Store(ctx context.Context, data []byte, key string) (string, error)
}

// RejectedError explains why an image was dropped. It never fails an item.
type RejectedError struct {
	URL    string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("image %s rejected: %s", e.URL, e.Reason)
}

// Image is an accepted asset together with its bytes.
type Image struct {
	Asset models.ImageAsset
	Data  []byte
}

// Materializer turns resolved image URLs into accepted, labeled images.
type Materializer struct {
	fetcher  Fetcher
	minBytes int
	store    MediaStore
	rejected *lru.Cache[string, string]
	metrics  *scraper.Metrics
	logger   *slog.Logger
}

// NewMaterializer builds a materializer using cfg.MinImageBytes as the
// acceptance threshold.
func NewMaterializer(fetcher Fetcher, cfg *config.Config, metrics *scraper.Metrics, logger *slog.Logger) (*Materializer, error) {
	size := cfg.DedupeMaxSize
	if size <= 0 || size > defaultRejectCacheSize {
		size = defaultRejectCacheSize
	}
	rejected, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create reject cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		fetcher:  fetcher,
		minBytes: cfg.MinImageBytes,
		rejected: rejected,
		metrics:  metrics,
		logger:   logger.With("component", "imaging"),
	}, nil
}

// WithMediaStore enables uploads of accepted images to store.
func (m *Materializer) WithMediaStore(store MediaStore) *Materializer {
	m.store = store
	return m
}

// Materialize downloads record.Images in order. Rejected images are skipped;
// the only error returned is context cancellation.
func (m *Materializer) Materialize(ctx context.Context, record *models.ProductRecord) ([]Image, error) {
	var images []Image
	used := make(map[string]struct{}, len(record.Images))

	for i, imageURL := range record.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := i + 1

		label := parser.LabelImage(imageURL, index)
		if label == parser.LabelSizeChart {
			continue
		}
		if _, taken := used[label]; taken {
			label = parser.AltLabel(index)
		}

		data, err := m.download(ctx, imageURL)
		if err != nil {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				m.logger.Debug("image rejected",
					slog.String("sku", record.SKU),
					slog.String("url", imageURL),
					slog.String("reason", rejected.Reason),
				)
				continue
			}
			return nil, err
		}
		used[label] = struct{}{}

		asset := models.ImageAsset{
			SourceURL: imageURL,
			Label:     label,
			Filename:  label + parser.ImageExtension(imageURL),
		}
		if m.store != nil {
			key := path.Join(record.SKU, asset.Filename)
			hosted, err := m.store.Store(ctx, data, key)
			if err != nil {
				m.logger.Warn("media store upload failed",
					slog.String("sku", record.SKU),
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			} else {
				asset.HostedURL = hosted
			}
		}
		images = append(images, Image{Asset: asset, Data: data})
	}
	return images, nil
}

func (m *Materializer) download(ctx context.Context, imageURL string) ([]byte, error) {
	if reason, ok := m.rejected.Get(imageURL); ok {
		m.metrics.IncImage("cached_reject")
		return nil, &RejectedError{URL: imageURL, Reason: reason}
	}

	resp, err := m.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, m.reject(imageURL, scraper.ErrorTypeLabel(err))
	}
	if len(resp.Body) <= m.minBytes {
		return nil, m.reject(imageURL, fmt.Sprintf("body %d bytes, need more than %d", len(resp.Body), m.minBytes))
	}

	m.metrics.IncImage("accepted")
	return resp.Body, nil
}

func (m *Materializer) reject(imageURL, reason string) error {
	m.rejected.Add(imageURL, reason)
	m.metrics.IncImage("rejected")
	return &RejectedError{URL: imageURL, Reason: reason}
}
