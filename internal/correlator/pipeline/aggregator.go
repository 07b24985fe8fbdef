package pipeline

import (
	"time"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/utils"

	"github.com/guregu/null/v6"
)

// MarketClock knows the exchange timezone and the close cutoff.
type MarketClock struct {
	Location      *time.Location
	CutoffMinutes int
}

// NewMarketClock builds a MarketClock from a timezone name and an "HH:MM" cutoff.
func NewMarketClock(timezone, cutoff string) (MarketClock, error) {
	loc, err := utils.LoadMarketLocation(timezone)
	if err != nil {
		return MarketClock{}, err
	}
	minutes, err := utils.ParseClock(cutoff)
	if err != nil {
		return MarketClock{}, err
	}
	return MarketClock{Location: loc, CutoffMinutes: minutes}, nil
}

// CandidateDay is the local market date an article belongs to before calendar rollover.
// Anything at or after the cutoff counts toward the next day.
func (c MarketClock) CandidateDay(t time.Time) entity.Date {
	local := t.In(c.Location)
	day := entity.DateOf(local)
	if local.Hour()*60+local.Minute() >= c.CutoffMinutes {
		day = day.AddDays(1)
	}
	return day
}

// AggregateResult holds per-day sentiment plus the articles that fell outside the calendar.
type AggregateResult struct {
	Days         []entity.DailySentiment
	Unattributed int
}

// Aggregator buckets scored articles into trading days.
type Aggregator struct {
	clock MarketClock
}

func NewAggregator(clock MarketClock) *Aggregator {
	return &Aggregator{clock: clock}
}

// Aggregate groups articles by trading day. The mean skips null scores, the count does not.
func (a *Aggregator) Aggregate(ticker string, articles []entity.ScoredArticle, calendar TradingCalendar) AggregateResult {
	type bucket struct {
		sum    float64
		scored int
		count  int
	}

	var result AggregateResult
	buckets := make(map[entity.Date]*bucket)

	for _, article := range articles {
		day, ok := calendar.Resolve(a.clock.CandidateDay(article.PublishedAt))
		if !ok {
			result.Unattributed++
			continue
		}
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		if article.Value.Valid {
			b.sum += article.Value.Float64
			b.scored++
		}
	}

	for _, day := range calendar.Days() {
		b, ok := buckets[day]
		if !ok {
			continue
		}
		ds := entity.DailySentiment{
			Ticker:       ticker,
			TradingDay:   day,
			ArticleCount: b.count,
		}
		if b.scored > 0 {
			ds.MeanSentiment = null.FloatFrom(b.sum / float64(b.scored))
		}
		result.Days = append(result.Days, ds)
	}

	return result
}

// Summarize builds the label distribution and overall mean of a run's scored articles.
func Summarize(articles []entity.ScoredArticle) entity.SentimentSummary {
	var summary entity.SentimentSummary
	var sum float64
	var scored int

	for _, a := range articles {
		switch a.Label {
		case entity.SentimentPositive:
			summary.Positive++
		case entity.SentimentNegative:
			summary.Negative++
		case entity.SentimentNeutral:
			summary.Neutral++
		}
		if !a.Value.Valid {
			summary.Missing++
			continue
		}
		sum += a.Value.Float64
		scored++
	}

	if scored > 0 {
		summary.MeanSentiment = null.FloatFrom(sum / float64(scored))
	}
	return summary
}
