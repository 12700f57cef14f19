package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/extractor"
)

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "discovery", err: &DiscoveryError{Seed: "http://x.test/", Err: errors.New("boom")}, expected: "discovery"},
		{name: "not a product", err: fmt.Errorf("extract: %w", extractor.ErrNotProductPage), expected: "not_a_product"},
		{name: "forbidden", err: &HTTPStatusError{StatusCode: http.StatusForbidden}, expected: "forbidden"},
		{name: "not found", err: &HTTPStatusError{StatusCode: http.StatusNotFound}, expected: "not_found"},
		{name: "rate limited", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, expected: "rate_limited"},
		{name: "server error", err: &HTTPStatusError{StatusCode: http.StatusBadGateway}, expected: "http_status"},
		{name: "context timeout", err: &TransportError{Err: context.DeadlineExceeded}, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "transport", err: &TransportError{Err: errors.New("reset")}, expected: "connection"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("ErrorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDiscoveryErrorUnwraps(t *testing.T) {
	inner := &HTTPStatusError{URL: "http://x.test/sitemap.xml", StatusCode: http.StatusNotFound}
	err := fmt.Errorf("run: %w", &DiscoveryError{Seed: inner.URL, Err: inner})

	if !IsDiscoveryError(err) {
		t.Fatalf("expected wrapped discovery error to be detected")
	}
	var status *HTTPStatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HTTPStatusError 404 in chain, got %v", err)
	}
}
