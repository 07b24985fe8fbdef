package entity

import "github.com/guregu/null/v6"

// PriceBar is one daily OHLC bar from the price source.
type PriceBar struct {
	Date   Date    `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// DailyReturn is the close-to-close change for one trading day. PctChange is null on the first day.
type DailyReturn struct {
	Ticker     string     `json:"ticker"`
	TradingDay Date       `json:"trading_day"`
	Close      float64    `json:"close"`
	PctChange  null.Float `json:"pct_change"`
}

// DailySentiment summarises the articles attributed to one trading day.
type DailySentiment struct {
	Ticker        string     `json:"ticker"`
	TradingDay    Date       `json:"trading_day"`
	MeanSentiment null.Float `json:"mean_sentiment"`
	ArticleCount  int        `json:"article_count"`
}
