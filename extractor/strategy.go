package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// FieldExtractor reads one field value from a parsed page. An empty result
// means the strategy found nothing and the next one should be tried.
type FieldExtractor interface {
	Extract(doc *goquery.Document, pageURL *url.URL) string
}

// MetadataAttribute reads an attribute of the first element matching Selector.
type MetadataAttribute struct {
	Selector string
	Attr     string
}

func (m MetadataAttribute) Extract(doc *goquery.Document, _ *url.URL) string {
	value, _ := doc.Find(m.Selector).First().Attr(m.Attr)
	return parser.Clean(value)
}

// LabeledElement reads the normalized text of the first element matching Selector.
type LabeledElement struct {
	Selector string
}

func (l LabeledElement) Extract(doc *goquery.Document, _ *url.URL) string {
	return parser.Clean(doc.Find(l.Selector).First().Text())
}

// URLFallback derives a value from the last segment of the page URL.
type URLFallback struct{}

func (URLFallback) Extract(_ *goquery.Document, pageURL *url.URL) string {
	if pageURL == nil {
		return ""
	}
	return parser.SKUFromURL(pageURL.String())
}

// Chain evaluates strategies left to right and returns the first non-empty value.
type Chain []FieldExtractor

func (c Chain) Extract(doc *goquery.Document, pageURL *url.URL) string {
	for _, strategy := range c {
		if value := strings.TrimSpace(strategy.Extract(doc, pageURL)); value != "" {
			return value
		}
	}
	return ""
}

// Strategies holds the strategy chain for each record field.
type Strategies struct {
	ProductMarker string
	SKU           Chain
	Name          Chain
	Price         Chain
	Description   Chain
	Sizes         OptionGroup
	Fabrics       OptionGroup
}

// DefaultStrategies matches the Magento storefront markup.
func DefaultStrategies() Strategies {
	return Strategies{
		ProductMarker: `[itemtype$="schema.org/Product"]`,
		SKU: Chain{
			MetadataAttribute{Selector: `meta[itemprop="sku"]`, Attr: "content"},
			LabeledElement{Selector: `div[itemprop="sku"]`},
			LabeledElement{Selector: `.product.attribute.sku .value`},
			URLFallback{},
		},
		Name: Chain{
			MetadataAttribute{Selector: `meta[itemprop="name"]`, Attr: "content"},
			LabeledElement{Selector: `h1.page-title`},
			MetadataAttribute{Selector: `meta[property="og:title"]`, Attr: "content"},
		},
		Price: Chain{
			LabeledElement{Selector: `.product-info-price span.price`},
			LabeledElement{Selector: `span.price`},
			MetadataAttribute{Selector: `meta[property="product:price:amount"]`, Attr: "content"},
		},
		Description: Chain{
			LabeledElement{Selector: `div.product.attribute.overview div.value`},
			LabeledElement{Selector: `#description`},
			LabeledElement{Selector: `div.product.attribute.description div.value`},
			MetadataAttribute{Selector: `meta[name="description"]`, Attr: "content"},
		},
		Sizes:   OptionGroup{Label: "Size", Class: "size"},
		Fabrics: OptionGroup{Label: "Fabric", Class: "fabric"},
	}
}
