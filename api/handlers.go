// Package api exposes the scraper over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

// Scraper is the pipeline surface the handlers use.
type Scraper interface {
	Lookup(ctx context.Context, productURL string) models.ProductResult
	ScrapeURL(ctx context.Context, productURL string) models.Outcome
	Run(ctx context.Context, urls []string, onOutcome pipeline.OutcomeFunc) (*models.BatchResult, error)
	RunSeed(ctx context.Context, seed, filter string, onOutcome pipeline.OutcomeFunc) (*models.BatchResult, error)
}

type Handlers struct {
	scraper Scraper
	logger  *slog.Logger

	batchMu sync.Mutex
}

func NewHandlers(s Scraper, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scraper: s,
		logger:  logger.With("component", "api"),
	}
}

// ScrapeRequest names one product page.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// PersistResponse reports a full pipeline run for one URL.
type PersistResponse struct {
	Success bool           `json:"success"`
	Outcome models.Outcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// BatchRequest starts a batch from a seed document or an explicit URL list.
type BatchRequest struct {
	Seed   string   `json:"seed"`
	Filter string   `json:"filter"`
	URLs   []string `json:"urls"`
}

// Scrape extracts one product. With ?persist=true the item is also written
// to the output tree.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	persist, _ := strconv.ParseBool(r.URL.Query().Get("persist"))
	if !persist {
		result := h.scraper.Lookup(r.Context(), req.URL)
		if !result.Success {
			h.logger.Warn("lookup failed", "url", req.URL, "error", result.Error)
		}
		h.respondJSON(w, http.StatusOK, result)
		return
	}

	out := h.scraper.ScrapeURL(r.Context(), req.URL)
	resp := PersistResponse{
		Success: out.Status != models.StatusFailed,
		Outcome: out,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Batch runs a batch and streams one text line per item outcome, followed
// by a summary line. Only one batch runs at a time.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Seed == "" && len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "either seed or urls is required")
		return
	}
	if req.Seed != "" {
		if err := validateURL(req.Seed); err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if !h.batchMu.TryLock() {
		h.respondError(w, http.StatusConflict, "a batch is already running")
		return
	}
	defer h.batchMu.Unlock()

	flusher, _ := w.(http.Flusher)
	started := false
	emit := func(line string) {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
	onOutcome := func(out models.Outcome) {
		emit(FormatOutcome(out))
	}

	var (
		result *models.BatchResult
		err    error
	)
	if req.Seed != "" {
		result, err = h.scraper.RunSeed(r.Context(), req.Seed, req.Filter, onOutcome)
	} else {
		result, err = h.scraper.Run(r.Context(), req.URLs, onOutcome)
	}
	if err != nil {
		h.logger.Error("batch failed", "seed", req.Seed, "error", err)
		if started {
			emit("error " + err.Error())
			return
		}
		status := http.StatusInternalServerError
		var discovery *scraper.DiscoveryError
		if errors.As(err, &discovery) {
			status = http.StatusBadGateway
		}
		h.respondError(w, status, err.Error())
		return
	}

	emit(FormatSummary(result))
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// FormatOutcome renders one progress line.
func FormatOutcome(out models.Outcome) string {
	sku := out.SKU
	if sku == "" {
		sku = "-"
	}
	line := fmt.Sprintf("%s %s %s", out.Status, sku, out.URL)
	switch out.Status {
	case models.StatusSuccess:
		line += fmt.Sprintf(" variants=%d images=%d", out.VariantCount, out.ImageCount)
	default:
		line += " reason=" + out.Reason
	}
	return line
}

// FormatSummary renders the final progress line of a batch.
func FormatSummary(result *models.BatchResult) string {
	return fmt.Sprintf("summary run_id=%s discovered=%d succeeded=%d skipped=%d failed=%d aggregate_rows=%d",
		result.RunID, result.Discovered, result.Succeeded, result.Skipped, result.Failed, result.AggregateRows)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q", raw)
	}
	return nil
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
