// Package extractor turns product page HTML into catalog records.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ErrNotProductPage is returned when a page lacks the product container.
var ErrNotProductPage = errors.New("not a product page")

// Extractor parses product pages with ordered per-field strategies.
type Extractor struct {
	strategies Strategies
	images     ImageResolver
}

// New returns an extractor using the given strategies.
func New(strategies Strategies) *Extractor {
	return &Extractor{strategies: strategies}
}

// NewDefault returns an extractor for the storefront's default markup.
func NewDefault() *Extractor {
	return New(DefaultStrategies())
}

// Extract parses body fetched from pageURL into a record.
func (e *Extractor) Extract(body []byte, pageURL string) (*models.ProductRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if doc.Find(e.strategies.ProductMarker).Length() == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNotProductPage)
	}

	record := &models.ProductRecord{
		SKU:         parser.SanitizeSKU(e.strategies.SKU.Extract(doc, base)),
		Name:        e.strategies.Name.Extract(doc, base),
		Price:       e.strategies.Price.Extract(doc, base),
		Description: e.strategies.Description.Extract(doc, base),
		Sizes:       e.strategies.Sizes.Extract(doc),
		Fabrics:     e.strategies.Fabrics.Extract(doc),
		SourceURL:   pageURL,
		Category:    parser.CategoryFromURL(pageURL),
		Images:      e.images.Resolve(doc, base),
	}
	if record.SKU == "" {
		record.SKU = parser.SKUFromURL(pageURL)
	}

	if err := parser.ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}
