package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/go-scrape-catalog/extractor"
)

// TransportError indicates the request never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError indicates a response other than 200. It is terminal for the URL.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.StatusCode, e.URL)
}

// DiscoveryError aborts a batch: the seed document could not be fetched or parsed.
type DiscoveryError struct {
	Seed string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s: %v", e.Seed, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ErrorTypeLabel classifies err into a stable label for metrics and summaries.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}

	var discovery *DiscoveryError
	if errors.As(err, &discovery) {
		return "discovery"
	}
	if errors.Is(err, extractor.ErrNotProductPage) {
		return "not_a_product"
	}

	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "http_status"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "connection"
	}
	return "other"
}
