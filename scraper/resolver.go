package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/aluiziolira/go-scrape-catalog/extractor"
)

const maxSitemapDepth = 2

// PageFetcher is the fetch capability the resolver and orchestrator consume.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Resolver turns a seed document into the ordered list of product URLs.
type Resolver struct {
	fetcher  PageFetcher
	maxPages int
	logger   *slog.Logger
}

// NewResolver returns a resolver that follows at most maxPages listing pages.
func NewResolver(fetcher PageFetcher, maxPages int, logger *slog.Logger) *Resolver {
	if maxPages <= 0 {
		maxPages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		fetcher:  fetcher,
		maxPages: maxPages,
		logger:   logger.With("component", "resolver"),
	}
}

// Resolve fetches seed (a sitemap or a category listing) and returns the
// unique product URLs whose text contains filter, case-insensitively.
// Any failure is a DiscoveryError: a partial listing is never returned.
func (r *Resolver) Resolve(ctx context.Context, seed, filter string) ([]string, error) {
	resp, err := r.fetcher.Fetch(ctx, seed)
	if err != nil {
		return nil, &DiscoveryError{Seed: seed, Err: err}
	}

	var urls []string
	if isSitemap(seed, resp) {
		urls, err = r.fromSitemap(ctx, seed, resp.Body, 0)
	} else {
		urls, err = r.fromCategory(ctx, seed, resp.Body)
	}
	if err != nil {
		return nil, &DiscoveryError{Seed: seed, Err: err}
	}

	urls = extractor.Dedupe(filterURLs(urls, filter))
	r.logger.Info("product urls discovered",
		slog.String("seed", seed),
		slog.String("filter", filter),
		slog.Int("count", len(urls)),
	)
	return urls, nil
}

func (r *Resolver) fromSitemap(ctx context.Context, source string, body []byte, depth int) ([]string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", source, err)
	}

	if children := xmlquery.Find(doc, "//sitemapindex/sitemap/loc"); len(children) > 0 {
		if depth >= maxSitemapDepth {
			return nil, fmt.Errorf("sitemap index nesting exceeds %d levels at %s", maxSitemapDepth, source)
		}
		var urls []string
		for _, loc := range children {
			child := strings.TrimSpace(loc.InnerText())
			if child == "" {
				continue
			}
			resp, err := r.fetcher.Fetch(ctx, child)
			if err != nil {
				return nil, fmt.Errorf("fetch child sitemap: %w", err)
			}
			childURLs, err := r.fromSitemap(ctx, child, resp.Body, depth+1)
			if err != nil {
				return nil, err
			}
			urls = append(urls, childURLs...)
		}
		return urls, nil
	}

	if xmlquery.FindOne(doc, "//urlset") == nil {
		return nil, fmt.Errorf("%s has no <urlset> or <sitemapindex>", source)
	}

	var urls []string
	for _, loc := range xmlquery.Find(doc, "//urlset/url/loc") {
		if text := strings.TrimSpace(loc.InnerText()); text != "" {
			urls = append(urls, text)
		}
	}
	return urls, nil
}

func (r *Resolver) fromCategory(ctx context.Context, seed string, body []byte) ([]string, error) {
	var urls []string
	visited := map[string]struct{}{seed: {}}
	pageURL := seed

	for page := 1; ; page++ {
		base, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("parse listing url: %w", err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parse listing %s: %w", pageURL, err)
		}

		doc.Find("a.product-item-link").Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if href == "" {
				return
			}
			if abs := resolveLink(base, NormalizeProductURL(href)); abs != "" {
				urls = append(urls, abs)
			}
		})

		if page >= r.maxPages {
			break
		}
		next := resolveLink(base, doc.Find(".pages-item-next a, a.action.next").First().AttrOr("href", ""))
		if next == "" {
			break
		}
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}

		resp, err := r.fetcher.Fetch(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("fetch listing page %d: %w", page+1, err)
		}
		r.logger.Debug("following listing page", slog.Int("page", page+1), slog.String("url", next))
		pageURL, body = next, resp.Body
	}
	return urls, nil
}

// NormalizeProductURL collapses an accidental doubled ".html.html" suffix.
func NormalizeProductURL(href string) string {
	for strings.Contains(href, ".html.html") {
		href = strings.ReplaceAll(href, ".html.html", ".html")
	}
	return href
}

func isSitemap(seed string, resp *Response) bool {
	head := resp.Body
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, []byte("<urlset")) || bytes.Contains(head, []byte("<sitemapindex")) {
		return true
	}
	contentType := strings.ToLower(resp.Headers.Get("Content-Type"))
	if strings.Contains(contentType, "xml") && !strings.Contains(contentType, "html") {
		return true
	}
	if parsed, err := url.Parse(seed); err == nil {
		return strings.HasSuffix(strings.ToLower(parsed.Path), ".xml")
	}
	return false
}

func filterURLs(urls []string, filter string) []string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return urls
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.Contains(strings.ToLower(u), filter) {
			out = append(out, u)
		}
	}
	return out
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// IsDiscoveryError reports whether err aborted URL discovery.
func IsDiscoveryError(err error) bool {
	var d *DiscoveryError
	return errors.As(err, &d)
}
