package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ItemsTotal      *prometheus.CounterVec
	ImagesTotal     *prometheus.CounterVec
	AggregateRows   prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	DiscoveredTotal prometheus.Counter
	InFlightWorkers prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Items processed by terminal status.",
		},
		[]string{"status"},
	)
	images := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_images_total",
			Help: "Images downloaded or rejected.",
		},
		[]string{"result"},
	)
	aggregateRows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_aggregate_rows_total",
			Help: "Rows appended to the master dataset.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	discovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_discovered_urls_total",
			Help: "Product URLs returned by the resolver.",
		},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_workers_busy",
			Help: "Workers currently processing an item.",
		},
	)

	registry.MustRegister(requests, requestDuration, items, images, aggregateRows, errorsTotal, discovered, inFlight)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		ImagesTotal:     images,
		AggregateRows:   aggregateRows,
		ErrorsTotal:     errorsTotal,
		DiscoveredTotal: discovered,
		InFlightWorkers: inFlight,
	}
}

// ObserveRequest records one request of the given kind.
func (m *Metrics) ObserveRequest(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncItem counts an item outcome.
func (m *Metrics) IncItem(status string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status).Inc()
}

// IncImage counts a saved or rejected image.
func (m *Metrics) IncImage(result string) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(result).Inc()
}

// AddAggregateRows counts rows appended to the master dataset.
func (m *Metrics) AddAggregateRows(n int) {
	if m == nil {
		return
	}
	m.AggregateRows.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddDiscovered counts URLs handed to the orchestrator.
func (m *Metrics) AddDiscovered(n int) {
	if m == nil {
		return
	}
	m.DiscoveredTotal.Add(float64(n))
}

// WorkerBusy moves the busy-workers gauge by delta.
func (m *Metrics) WorkerBusy(delta float64) {
	if m == nil {
		return
	}
	m.InFlightWorkers.Add(delta)
}
