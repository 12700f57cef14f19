package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ImageResolver assembles candidate image URLs from three sources in
// priority order: gallery JSON, visible gallery markup, and the primary
// image metadata (only when the first two yield nothing).
type ImageResolver struct {
	gallery GalleryJSONParser
}

// Resolve returns absolute, de-duplicated image URLs in first-seen order
// with size charts removed.
func (r ImageResolver) Resolve(doc *goquery.Document, pageURL *url.URL) []string {
	candidates := r.fromGalleryJSON(doc)
	candidates = append(candidates, r.fromMarkup(doc)...)

	resolved := filterAndDedupe(candidates, pageURL)
	if len(resolved) > 0 {
		return resolved
	}
	return filterAndDedupe(r.fromMetadata(doc), pageURL)
}

func (r ImageResolver) fromGalleryJSON(doc *goquery.Document) []string {
	var urls []string
	doc.Find(`script[type="text/x-magento-init"]`).Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, r.gallery.ParseInitScript(s.Text())...)
	})
	doc.Find(`[data-gallery]`).Each(func(_ int, s *goquery.Selection) {
		urls = append(urls, r.gallery.ParseDataAttribute(s.AttrOr("data-gallery", ""))...)
	})
	return urls
}

func (r ImageResolver) fromMarkup(doc *goquery.Document) []string {
	var urls []string
	doc.Find(`.fotorama__stage__frame`).Each(func(_ int, frame *goquery.Selection) {
		if href := frame.AttrOr("href", ""); href != "" {
			urls = append(urls, href)
		}
		frame.Find("img").Each(func(_ int, img *goquery.Selection) {
			if src := img.AttrOr("src", ""); src != "" {
				urls = append(urls, src)
			}
		})
	})
	doc.Find(`img.gallery-placeholder__image`).Each(func(_ int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

func (r ImageResolver) fromMetadata(doc *goquery.Document) []string {
	var urls []string
	doc.Find(`meta[itemprop="image"], meta[property="og:image"]`).Each(func(_ int, m *goquery.Selection) {
		if content := m.AttrOr("content", ""); content != "" {
			urls = append(urls, content)
		}
	})
	return urls
}

func filterAndDedupe(candidates []string, base *url.URL) []string {
	out := make([]string, 0, len(candidates))
	for _, raw := range candidates {
		abs := absoluteURL(strings.TrimSpace(raw), base)
		if abs == "" || parser.IsSizeChart(abs) {
			continue
		}
		out = append(out, abs)
	}
	return Dedupe(out)
}

// Dedupe removes repeated values while preserving first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func absoluteURL(raw string, base *url.URL) string {
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		if !ref.IsAbs() {
			return ""
		}
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
