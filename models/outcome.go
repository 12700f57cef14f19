package models

import "time"

// OutcomeStatus is the terminal state of one item.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Stage names the step an item was in when it reached a terminal state.
type Stage string

const (
	StagePending    Stage = "pending"
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageImaging    Stage = "imaging"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

// Outcome is the per-item result of a batch. It is never persisted.
type Outcome struct {
	URL          string        `json:"url"`
	Status       OutcomeStatus `json:"status"`
	Stage        Stage         `json:"stage"`
	Reason       string        `json:"reason,omitempty"`
	SKU          string        `json:"sku,omitempty"`
	VariantCount int           `json:"variant_count"`
	ImageCount   int           `json:"image_count"`
	Err          error         `json:"-"`
	Duration     time.Duration `json:"duration"`
}

// BatchResult holds the overall result of a batch run.
type BatchResult struct {
	RunID         string
	StartTime     time.Time
	EndTime       time.Time
	Discovered    int
	Succeeded     int
	Skipped       int
	Failed        int
	AggregateRows int
	Outcomes      []Outcome
	FailedURLs    []string
	ErrorsByType  map[string]int
}
