package repository

import (
	"context"

	"golang-stock-sentiment/internal/entity"
)

// NewsRepository fetches raw news records for a ticker and date range.
type NewsRepository interface {
	Name() string
	Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.RawArticle, error)
}

// PriceRepository fetches daily OHLC bars in trading-day order.
// An unknown ticker yields an empty series rather than an error.
type PriceRepository interface {
	Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.PriceBar, error)
}

// SentimentRepository classifies a text span. Implementations are called concurrently.
type SentimentRepository interface {
	Score(ctx context.Context, text string) (entity.SentimentScore, error)
	ModelVersion() string
}
