package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// DayPoint is one row of the per-day detail shown next to the correlation.
type DayPoint struct {
	TradingDay    Date       `json:"trading_day"`
	MeanSentiment null.Float `json:"mean_sentiment"`
	PctChange     null.Float `json:"pct_change"`
	Close         null.Float `json:"close"`
	ArticleCount  int        `json:"article_count"`
}

// LagCorrelation is Pearson r between sentiment on day t and return on day t+Lag.
type LagCorrelation struct {
	Lag        int        `json:"lag"`
	PearsonR   null.Float `json:"pearson_r"`
	SampleSize int        `json:"sample_size"`
}

// SentimentSummary is the label distribution and mean over every scored article of a run.
type SentimentSummary struct {
	MeanSentiment null.Float `json:"mean_sentiment"`
	Positive      int        `json:"positive"`
	Neutral       int        `json:"neutral"`
	Negative      int        `json:"negative"`
	Missing       int        `json:"missing"`
}

// RunStats counts what was absorbed along the way.
type RunStats struct {
	RawArticles   int `json:"raw_articles"`
	Duplicates    int `json:"duplicates"`
	Malformed     int `json:"malformed"`
	Articles      int `json:"articles"`
	Scored        int `json:"scored"`
	ScoreFailures int `json:"score_failures"`
	Unattributed  int `json:"unattributed"`
	PriceBars     int `json:"price_bars"`
}

// CorrelationResult is the terminal output of a run. Consumers must treat it as read-only.
type CorrelationResult struct {
	Ticker       string           `json:"ticker"`
	DateRange    DateRange        `json:"date_range"`
	PearsonR     null.Float       `json:"pearson_r"`
	SampleSize   int              `json:"sample_size"`
	PerDay       []DayPoint       `json:"per_day"`
	Lags         []LagCorrelation `json:"lags,omitempty"`
	Summary      SentimentSummary `json:"summary"`
	ModelVersion string           `json:"model_version"`
	NewsSource   string           `json:"news_source,omitempty"`
	Stats        RunStats         `json:"stats"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// CacheKey identifies a memoized CorrelationResult.
type CacheKey struct {
	Ticker       string `json:"ticker"`
	Start        Date   `json:"start"`
	End          Date   `json:"end"`
	ModelVersion string `json:"model_version"`
}

func (k CacheKey) String() string {
	return k.Ticker + ":" + k.Start.String() + ":" + k.End.String() + ":" + k.ModelVersion
}

// CacheEntry is a stored result together with its lifetime.
type CacheEntry struct {
	Key       CacheKey           `json:"key"`
	Value     *CorrelationResult `json:"value"`
	CreatedAt time.Time          `json:"created_at"`
	TTL       time.Duration      `json:"ttl"`
}

// Expired reports whether the entry has outlived its TTL at now. A zero TTL never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && !now.Before(e.CreatedAt.Add(e.TTL))
}
