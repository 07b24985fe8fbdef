package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/guregu/null/v6"
	"google.golang.org/genai"
)

var (
	retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)
	// transientStatusRegex matches a status code the way API errors print it, e.g. "Error 429," or "status: 503".
	transientStatusRegex = regexp.MustCompile(`(?i)\b(?:error|code|status)\W{0,3}(?:429|5\d\d)\b|\b(?:RESOURCE_EXHAUSTED|UNAVAILABLE)\b`)
)

// contentGenerator is the part of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiSentimentRepository struct {
	cfg       config.Sentiment
	log       *logger.Logger
	generator contentGenerator
}

// NewGeminiSentimentRepository creates a SentimentRepository backed by Gemini.
func NewGeminiSentimentRepository(cfg config.Sentiment, log *logger.Logger, client *genai.Client) SentimentRepository {
	return newGeminiSentimentRepository(cfg, log, client.Models)
}

func newGeminiSentimentRepository(cfg config.Sentiment, log *logger.Logger, generator contentGenerator) *geminiSentimentRepository {
	return &geminiSentimentRepository{cfg: cfg, log: log, generator: generator}
}

func (r *geminiSentimentRepository) ModelVersion() string {
	return r.cfg.ModelVersion
}

func (r *geminiSentimentRepository) Score(ctx context.Context, text string) (entity.SentimentScore, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(BuildSentimentPrompt(text), genai.RoleUser),
	}
	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(r.cfg.Temperature),
		ResponseMIMEType: "application/json",
	}

	resp, err := r.generator.GenerateContent(ctx, r.cfg.Model, contents, genConfig)
	if err != nil {
		if isGeminiRateLimit(err) {
			return entity.SentimentScore{}, &entity.RateLimitError{RetryAfter: extractRetryDelay(err), Err: err}
		}
		return entity.SentimentScore{}, fmt.Errorf("gemini generate content failed: %w", err)
	}

	raw := resp.Text()
	r.log.DebugContext(ctx, "Gemini sentiment response", logger.StringField("response", raw))

	return parseSentimentJSON(raw)
}

func parseSentimentJSON(raw string) (entity.SentimentScore, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result dto.GeminiSentimentResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return entity.SentimentScore{}, fmt.Errorf("failed to unmarshal sentiment response: %w", err)
	}

	score := entity.SentimentScore{
		Label:      entity.SentimentLabel(strings.ToLower(strings.TrimSpace(result.Label))),
		Value:      null.FloatFromPtr(result.Score),
		Confidence: null.FloatFromPtr(result.Confidence),
	}
	if !score.Label.Valid() && !score.Value.Valid {
		return entity.SentimentScore{}, fmt.Errorf("sentiment response has neither a known label nor a score: %q", cleaned)
	}
	return score, nil
}

// isGeminiRateLimit reports whether a Gemini failure is worth retrying: 429 or any 5xx. Errors that
// did not come back as a genai.APIError are matched on their text.
func isGeminiRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return transientAPIError(*apiErrPtr)
	}
	return transientStatusRegex.MatchString(err.Error())
}

func transientAPIError(apiErr genai.APIError) bool {
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
		return true
	}
	return apiErr.Status == "RESOURCE_EXHAUSTED" || apiErr.Status == "UNAVAILABLE"
}

// extractRetryDelay reads "Please retry in 45.3s" style hints from a Gemini error.
func extractRetryDelay(err error) time.Duration {
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
