package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// NotAvailable fills the missing axis of a sentinel variant.
const NotAvailable = "N/A"

// ValidateRecord ensures the extractor captured the required fields.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.SKU) == "" {
		return fmt.Errorf("record missing sku for %s", r.SourceURL)
	}
	if strings.TrimSpace(r.SourceURL) == "" {
		return fmt.Errorf("record %s missing source url", r.SKU)
	}
	return nil
}

// Clean collapses every whitespace run to a single space and trims the result.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// BuildVariants returns the cartesian product of sizes and fabrics. When
// either axis is empty it contributes a single "N/A" entry, so a record
// always yields at least one variant.
func BuildVariants(r *models.ProductRecord) []models.Variant {
	sizes := r.Sizes
	if len(sizes) == 0 {
		sizes = []string{NotAvailable}
	}
	fabrics := r.Fabrics
	if len(fabrics) == 0 {
		fabrics = []string{NotAvailable}
	}

	variants := make([]models.Variant, 0, len(sizes)*len(fabrics))
	for _, size := range sizes {
		for _, fabric := range fabrics {
			variants = append(variants, models.Variant{
				SKU:    r.SKU,
				Size:   size,
				Fabric: fabric,
				Price:  r.Price,
			})
		}
	}
	return variants
}

// AggregateRows denormalizes a record and its variants into master rows.
func AggregateRows(r *models.ProductRecord, variants []models.Variant) []models.AggregateRow {
	category := r.Category.Label()
	rows := make([]models.AggregateRow, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, models.AggregateRow{
			SKU:         v.SKU,
			Category:    category,
			Size:        v.Size,
			Fabric:      v.Fabric,
			BasePrice:   v.Price,
			ProductName: r.Name,
			ProductURL:  r.SourceURL,
		})
	}
	return rows
}
