package dto

import (
	"time"

	"golang-stock-sentiment/internal/entity"
)

// CorrelationResponse wraps a result with an optional non-fatal warning.
type CorrelationResponse struct {
	Result  *entity.CorrelationResult `json:"result"`
	Cached  bool                      `json:"cached"`
	Warning string                    `json:"warning,omitempty"`
}

// RunResponse is one row of the run audit log.
type RunResponse struct {
	RunID        string         `json:"run_id"`
	Ticker       string         `json:"ticker"`
	Start        string         `json:"start"`
	End          string         `json:"end"`
	ModelVersion string         `json:"model_version"`
	NewsSource   string         `json:"news_source,omitempty"`
	Status       string         `json:"status"`
	PearsonR     *float64       `json:"pearson_r"`
	SampleSize   int            `json:"sample_size"`
	Stats        map[string]int `json:"stats,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// ErrorResponse is returned for failed API calls.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WarmupOutcome is the per-ticker result of a scheduled warmup.
type WarmupOutcome struct {
	Ticker  string                    `json:"ticker"`
	Result  *entity.CorrelationResult `json:"result,omitempty"`
	Cached  bool                      `json:"cached"`
	Warning string                    `json:"warning,omitempty"`
	Error   string                    `json:"error,omitempty"`
}
