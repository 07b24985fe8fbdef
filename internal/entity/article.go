package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// SentimentLabel is the class assigned by the sentiment model.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Valid reports whether the label is one of the known classes.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// RawArticle is a news record as delivered by a news source, before any cleanup.
type RawArticle struct {
	Ticker    string `json:"ticker"`
	Headline  string `json:"headline"`
	Body      string `json:"body,omitempty"`
	Timestamp string `json:"timestamp"`
	SourceURL string `json:"source_url,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Article is a deduplicated, timestamped news record. Immutable once built by the normalizer.
type Article struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	PublishedAt time.Time `json:"published_at"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Source      string    `json:"source,omitempty"`
}

// ScoredArticle is an Article with its sentiment. Value is null when the model gave no usable score.
type ScoredArticle struct {
	Article
	Label      SentimentLabel `json:"sentiment_label,omitempty"`
	Value      null.Float     `json:"sentiment_value"`
	Confidence null.Float     `json:"confidence"`
}

// SentimentScore is what a sentiment model returns for one text.
type SentimentScore struct {
	Label      SentimentLabel
	Value      null.Float
	Confidence null.Float
}
