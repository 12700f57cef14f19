package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

const shop = "http://shop.test"

var imageBody = bytes.Repeat([]byte("x"), 64)

func testConfig(dir string, workers int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SeedURL = shop + "/sitemap.xml"
	cfg.OutputDir = dir
	cfg.Workers = workers
	cfg.MinImageBytes = 32
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *httpmock.MockTransport) {
	t.Helper()

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	fetcher.WithTransport(transport)

	p, err := New(cfg, fetcher, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, transport
}

func productURL(n int) string {
	return fmt.Sprintf("%s/fashion/him/t-shirt/tsrg%d.html", shop, 100+n)
}

func productSKU(n int) string {
	return fmt.Sprintf("TSRG%d", 100+n)
}

func productPage(n int) string {
	sku := productSKU(n)
	var b strings.Builder
	b.WriteString(`<html><head><meta property="og:title" content="ignored"></head><body>`)
	b.WriteString(`<div class="product-info-main" itemscope itemtype="http://schema.org/Product">`)
	fmt.Fprintf(&b, `<meta itemprop="sku" content="%s">`, sku)
	fmt.Fprintf(&b, `<h1 class="page-title"><span>Tee  %d</span></h1>`, n)
	fmt.Fprintf(&b, `<div class="product-info-price"><span class="price">₹%d.00</span></div>`, 400+n)
	b.WriteString(`<div class="swatch-attribute size"><span class="swatch-attribute-label">Size</span>`)
	b.WriteString(`<div class="swatch-option">S</div><div class="swatch-option">M</div></div>`)
	b.WriteString(`<div class="swatch-attribute fabric"><span class="swatch-attribute-label">Fabric</span>`)
	b.WriteString(`<div class="swatch-option">Cotton</div></div>`)
	fmt.Fprintf(&b, `<div class="product attribute overview"><div class="value">Tee number %d, "soft", combed.</div></div>`, n)
	b.WriteString(`</div>`)
	fmt.Fprintf(&b, `<div class="fotorama__stage__frame" href="/media/%s-front.jpg"></div>`, strings.ToLower(sku))
	fmt.Fprintf(&b, `<div class="fotorama__stage__frame" href="/media/%s-back.jpg"></div>`, strings.ToLower(sku))
	fmt.Fprintf(&b, `<div class="fotorama__stage__frame" href="/media/%s-pixel.gif"></div>`, strings.ToLower(sku))
	b.WriteString(`</body></html>`)
	return b.String()
}

// registerProduct serves product n with two real images and one tracking pixel.
func registerProduct(transport *httpmock.MockTransport, n int) {
	sku := strings.ToLower(productSKU(n))
	transport.RegisterResponder("GET", productURL(n), httpmock.NewStringResponder(200, productPage(n)))
	transport.RegisterResponder("GET", fmt.Sprintf("%s/media/%s-front.jpg", shop, sku), httpmock.NewBytesResponder(200, imageBody))
	transport.RegisterResponder("GET", fmt.Sprintf("%s/media/%s-back.jpg", shop, sku), httpmock.NewBytesResponder(200, imageBody))
	transport.RegisterResponder("GET", fmt.Sprintf("%s/media/%s-pixel.gif", shop, sku), httpmock.NewBytesResponder(200, []byte("GIF89a")))
}

func productURLs(n int) []string {
	urls := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		urls = append(urls, productURL(i))
	}
	return urls
}
