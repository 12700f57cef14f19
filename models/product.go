// Package models defines data structures for the scraper.
package models

// CategoryPath locates a product inside the storefront taxonomy.
type CategoryPath struct {
	Main        string `json:"main_category"`
	Gender      string `json:"gender"`
	ProductType string `json:"product_type"`
}

// Segments returns the path components used for the on-disk layout.
func (c CategoryPath) Segments() []string {
	return []string{c.Main, c.Gender, c.ProductType}
}

// Label returns the display category written to the CSV outputs.
func (c CategoryPath) Label() string {
	switch c.Gender {
	case "men":
		return "Men"
	case "women":
		return "Women"
	case "kids":
		return "Kids"
	case "unisex":
		return "Unisex"
	default:
		return "Other"
	}
}

// ProductRecord is one catalog item extracted from a product page.
// Records are built once per successful fetch and never mutated afterwards.
// Images holds the resolved candidate image URLs in display order.
type ProductRecord struct {
	SKU         string       `json:"sku"`
	Name        string       `json:"name"`
	Price       string       `json:"price"`
	Description string       `json:"description"`
	Sizes       []string     `json:"sizes"`
	Fabrics     []string     `json:"fabrics"`
	SourceURL   string       `json:"source_url"`
	Category    CategoryPath `json:"category_path"`
	Images      []string     `json:"images"`
}

// Variant is one size x fabric combination of a record.
type Variant struct {
	SKU    string `json:"sku"`
	Size   string `json:"size"`
	Fabric string `json:"fabric"`
	Price  string `json:"base_price"`
}

// ImageAsset is an image accepted and written for a record.
type ImageAsset struct {
	SourceURL string `json:"image_url"`
	Label     string `json:"label"`
	Filename  string `json:"filename"`
	HostedURL string `json:"hosted_url,omitempty"`
}

// AggregateRow is one row of the shared master dataset.
type AggregateRow struct {
	SKU         string `csv:"sku" json:"sku"`
	Category    string `csv:"category" json:"category"`
	Size        string `csv:"size" json:"size"`
	Fabric      string `csv:"fabric" json:"fabric"`
	BasePrice   string `csv:"base_price" json:"base_price"`
	ProductName string `csv:"product_name" json:"product_name"`
	ProductURL  string `csv:"product_url" json:"product_url"`
}

// ScrapedItem bundles everything produced for one committed item.
type ScrapedItem struct {
	Record   *ProductRecord `json:"record"`
	Variants []Variant      `json:"variants"`
	Images   []ImageAsset   `json:"images"`
}

// ProductResult is the response shape of the synchronous single-item query.
// A failed result carries only Success and Error; slices are null there.
type ProductResult struct {
	Success     bool     `json:"success"`
	SKU         string   `json:"sku,omitempty"`
	Name        string   `json:"name,omitempty"`
	Price       string   `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Sizes       []string `json:"sizes"`
	Fabrics     []string `json:"fabrics"`
	Images      []string `json:"images"`
	Error       string   `json:"error,omitempty"`
}

// NewProductResult converts a record into the query response shape.
func NewProductResult(rec *ProductRecord) ProductResult {
	return ProductResult{
		Success:     true,
		SKU:         rec.SKU,
		Name:        rec.Name,
		Price:       rec.Price,
		Description: rec.Description,
		Sizes:       nonNil(rec.Sizes),
		Fabrics:     nonNil(rec.Fabrics),
		Images:      nonNil(rec.Images),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
