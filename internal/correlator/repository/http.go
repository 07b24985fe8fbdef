package repository

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang-stock-sentiment/internal/entity"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// statusError converts a non-OK upstream status into an error. 429 and every 5xx become
// *entity.RateLimitError so the scorer can retry them.
func statusError(service string, resp *http.Response, body []byte) error {
	err := fmt.Errorf("received non-OK response from %s: %d - %s", service, resp.StatusCode, truncateBody(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return &entity.RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After")), Err: err}
	}
	return err
}

func retryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
