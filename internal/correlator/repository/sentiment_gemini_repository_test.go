package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text     string
	err      error
	model    string
	prompt   string
	mimeType string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.prompt = contents[0].Parts[0].Text
	f.mimeType = cfg.ResponseMIMEType
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func geminiConfig() config.Sentiment {
	return config.Sentiment{Provider: "gemini", Model: "gemini-2.0-flash", ModelVersion: "gemini/gemini-2.0-flash", Temperature: 0.1}
}

func TestGeminiSentimentRepository_Score(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"label\": \"Positive\", \"score\": 0.72, \"confidence\": 0.9}\n```"}
	repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

	score, err := repo.Score(context.Background(), "XYZ beats earnings")
	require.NoError(t, err)
	assert.Equal(t, entity.SentimentPositive, score.Label)
	assert.Equal(t, 0.72, score.Value.Float64)
	assert.Equal(t, 0.9, score.Confidence.Float64)

	assert.Equal(t, "gemini-2.0-flash", gen.model)
	assert.Contains(t, gen.prompt, "XYZ beats earnings")
	assert.Equal(t, "application/json", gen.mimeType)
	assert.Equal(t, "gemini/gemini-2.0-flash", repo.ModelVersion())
}

func TestGeminiSentimentRepository_MissingScoreStaysNull(t *testing.T) {
	repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), &fakeGenerator{text: `{"label":"neutral"}`})

	score, err := repo.Score(context.Background(), "XYZ holds annual meeting")
	require.NoError(t, err)
	assert.Equal(t, entity.SentimentNeutral, score.Label)
	assert.False(t, score.Value.Valid)
}

func TestGeminiSentimentRepository_Errors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("Error 429, Message: quota exceeded. Please retry in 12.5s., Status: RESOURCE_EXHAUSTED")}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		var rateErr *entity.RateLimitError
		require.True(t, errors.As(err, &rateErr))
		assert.Equal(t, 12500*time.Millisecond, rateErr.RetryAfter)
	})

	t.Run("rate limited api error", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded. Please retry in 3s.", Status: "RESOURCE_EXHAUSTED"}}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		var rateErr *entity.RateLimitError
		require.True(t, errors.As(err, &rateErr))
		assert.Equal(t, 3*time.Second, rateErr.RetryAfter)
	})

	t.Run("server error api error", func(t *testing.T) {
		gen := &fakeGenerator{err: fmt.Errorf("generate: %w", &genai.APIError{Code: http.StatusBadGateway})}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		var rateErr *entity.RateLimitError
		assert.True(t, errors.As(err, &rateErr))
	})

	t.Run("permanent api error", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: http.StatusBadRequest, Message: "prompt has 4290 tokens, limit 503", Status: "INVALID_ARGUMENT"}}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		require.Error(t, err)
		var rateErr *entity.RateLimitError
		assert.False(t, errors.As(err, &rateErr))
	})

	t.Run("numbers in message text are not status codes", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("request 4290 rejected: field exceeds 503 characters")}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		require.Error(t, err)
		var rateErr *entity.RateLimitError
		assert.False(t, errors.As(err, &rateErr))
	})

	t.Run("permanent", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("Error 400, Message: invalid argument, Status: INVALID_ARGUMENT")}
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), gen)

		_, err := repo.Score(context.Background(), "x")
		require.Error(t, err)
		var rateErr *entity.RateLimitError
		assert.False(t, errors.As(err, &rateErr))
	})

	t.Run("not json", func(t *testing.T) {
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), &fakeGenerator{text: "I think it is positive"})
		_, err := repo.Score(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("no usable fields", func(t *testing.T) {
		repo := newGeminiSentimentRepository(geminiConfig(), logger.NewNop(), &fakeGenerator{text: `{"label":"bullish"}`})
		_, err := repo.Score(context.Background(), "x")
		assert.Error(t, err)
	})
}
