package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/guregu/null/v6"
)

type httpSentimentRepository struct {
	cfg        config.Sentiment
	log        *logger.Logger
	httpClient *http.Client
}

// NewHTTPSentimentRepository creates a SentimentRepository for a text-classification endpoint that
// returns label probabilities (FinBERT-style: positive, neutral, negative).
func NewHTTPSentimentRepository(cfg config.Sentiment, log *logger.Logger) SentimentRepository {
	return &httpSentimentRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (r *httpSentimentRepository) ModelVersion() string {
	return r.cfg.ModelVersion
}

func (r *httpSentimentRepository) Score(ctx context.Context, text string) (entity.SentimentScore, error) {
	payload, err := json.Marshal(dto.ClassifierRequest{Inputs: text, Model: r.cfg.Model})
	if err != nil {
		return entity.SentimentScore{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return entity.SentimentScore{}, fmt.Errorf("failed to create new http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to send request to sentiment classifier", logger.ErrorField(err))
		return entity.SentimentScore{}, fmt.Errorf("failed to send request to sentiment classifier: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.SentimentScore{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.log.ErrorContext(ctx, "Received non-OK response from sentiment classifier", logger.IntField("status_code", resp.StatusCode))
		return entity.SentimentScore{}, statusError("sentiment classifier", resp, body)
	}

	predictions, err := decodePredictions(body)
	if err != nil {
		return entity.SentimentScore{}, err
	}
	return scoreFromProbabilities(predictions)
}

// decodePredictions accepts both a flat list and the nested [[...]] batch shape.
func decodePredictions(body []byte) ([]dto.ClassifierPrediction, error) {
	var nested [][]dto.ClassifierPrediction
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("sentiment classifier returned no predictions")
		}
		return nested[0], nil
	}

	var flat []dto.ClassifierPrediction
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return flat, nil
}

// scoreFromProbabilities maps class probabilities to value = P(positive) - P(negative).
// The label is the most probable class and the confidence its probability.
func scoreFromProbabilities(predictions []dto.ClassifierPrediction) (entity.SentimentScore, error) {
	if len(predictions) == 0 {
		return entity.SentimentScore{}, fmt.Errorf("sentiment classifier returned no predictions")
	}

	var positive, negative, best float64
	var label entity.SentimentLabel
	known := 0
	for _, p := range predictions {
		l := entity.SentimentLabel(strings.ToLower(strings.TrimSpace(p.Label)))
		switch l {
		case entity.SentimentPositive:
			positive = p.Score
		case entity.SentimentNegative:
			negative = p.Score
		case entity.SentimentNeutral:
		default:
			continue
		}
		known++
		if p.Score > best {
			best = p.Score
			label = l
		}
	}
	if known == 0 {
		return entity.SentimentScore{}, fmt.Errorf("sentiment classifier returned unknown labels")
	}

	return entity.SentimentScore{
		Label:      label,
		Value:      null.FloatFrom(positive - negative),
		Confidence: null.FloatFrom(best),
	}, nil
}
