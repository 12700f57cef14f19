package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/gocolly/colly/v2"
)

// Response is a fetched document.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Fetcher retrieves raw bytes for a URL through a shared colly backend.
// It performs no retries: a non-200 status is a terminal HTTPStatusError
// and a failed round trip is a TransportError.
type Fetcher struct {
	collector *colly.Collector
	headers   map[string]string
	metrics   *Metrics
	kind      string
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.MaxBodySize = 32 << 20
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Workers,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if _, ok := headers["Referer"]; !ok {
		if seed, err := url.Parse(cfg.SeedURL); err == nil && seed.Host != "" {
			headers["Referer"] = seed.Scheme + "://" + seed.Host + "/"
		}
	}

	return &Fetcher{
		collector: collector,
		headers:   headers,
		metrics:   metrics,
		kind:      "page",
	}, nil
}

// As returns a fetcher sharing the same backend whose requests are
// reported under a different metrics kind.
func (f *Fetcher) As(kind string) *Fetcher {
	clone := *f
	clone.kind = kind
	return &clone
}

// WithTransport replaces the HTTP transport of the shared backend.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch issues one GET for rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{URL: rawURL, Err: err}
	}

	c := f.collector.Clone()

	var (
		resp     *Response
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range f.headers {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = *r.Headers
		}
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Headers:    headers,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &HTTPStatusError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = &TransportError{URL: rawURL, Err: err}
	})

	start := time.Now()
	visitErr := c.Visit(rawURL)
	f.metrics.ObserveRequest(f.kind, time.Since(start))

	switch {
	case fetchErr != nil:
		return nil, fetchErr
	case visitErr != nil:
		return nil, &TransportError{URL: rawURL, Err: visitErr}
	case resp == nil:
		return nil, &TransportError{URL: rawURL, Err: errors.New("no response received")}
	case resp.StatusCode != http.StatusOK:
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
