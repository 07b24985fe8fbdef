package entity

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPriceSeries is returned when the price source has no bars for the requested range.
var ErrEmptyPriceSeries = errors.New("price source returned an empty series")

// ErrInvalidInput marks a rejected request (bad ticker, bad date range). Wrap it with details.
var ErrInvalidInput = errors.New("invalid input")

// MalformedInputError marks a raw record that cannot be used. The record is dropped, the batch goes on.
type MalformedInputError struct {
	Field    string
	Reason   string
	Headline string
}

func (e *MalformedInputError) Error() string {
	if e.Headline != "" {
		return fmt.Sprintf("malformed article %q: %s %s", e.Headline, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed article: %s %s", e.Field, e.Reason)
}

// SourceUnavailableError means an external source failed as a whole and the run cannot proceed.
type SourceUnavailableError struct {
	Source string
	Ticker string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable for %s: %v", e.Source, e.Ticker, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// InsufficientDataError means too few joined days exist for a meaningful correlation.
// It travels together with a partial result.
type InsufficientDataError struct {
	Pairs    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for correlation: %d joined days, need at least %d", e.Pairs, e.Required)
}

// RateLimitError is a transient refusal from a rate-limited external service.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsSourceUnavailable reports whether err carries a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	var target *SourceUnavailableError
	return errors.As(err, &target)
}

// IsInsufficientData reports whether err carries an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
