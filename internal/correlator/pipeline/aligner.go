package pipeline

import (
	"sort"

	"golang-stock-sentiment/internal/entity"

	"github.com/guregu/null/v6"
)

// TradingCalendar is the ordered set of trading days delivered by the price source.
// It is the only authority for rolling article days forward over weekends and holidays.
type TradingCalendar struct {
	days []entity.Date
}

// NewTradingCalendar sorts and deduplicates days.
func NewTradingCalendar(days []entity.Date) TradingCalendar {
	sorted := make([]entity.Date, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	unique := sorted[:0]
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1] {
			continue
		}
		unique = append(unique, d)
	}
	return TradingCalendar{days: unique}
}

func (c TradingCalendar) Len() int {
	return len(c.days)
}

// Days returns a copy of the trading days in order.
func (c TradingCalendar) Days() []entity.Date {
	out := make([]entity.Date, len(c.days))
	copy(out, c.days)
	return out
}

func (c TradingCalendar) Contains(d entity.Date) bool {
	i := c.search(d)
	return i < len(c.days) && c.days[i] == d
}

// Resolve returns the first trading day on or after d. It fails when d is past the last trading day.
func (c TradingCalendar) Resolve(d entity.Date) (entity.Date, bool) {
	i := c.search(d)
	if i >= len(c.days) {
		return entity.Date{}, false
	}
	return c.days[i], true
}

func (c TradingCalendar) search(d entity.Date) int {
	return sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(d) })
}

// Aligner turns a price series into per-day close-to-close returns.
type Aligner struct{}

func NewAligner() *Aligner {
	return &Aligner{}
}

// Align computes pct_change[i] = (close[i]-close[i-1]) / close[i-1]. The first day, and any day whose
// previous close is not positive, has a null change.
func (a *Aligner) Align(ticker string, bars []entity.PriceBar) ([]entity.DailyReturn, TradingCalendar) {
	ordered := make([]entity.PriceBar, 0, len(bars))
	seen := make(map[entity.Date]struct{}, len(bars))
	for _, b := range bars {
		if _, ok := seen[b.Date]; ok {
			continue
		}
		seen[b.Date] = struct{}{}
		ordered = append(ordered, b)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	returns := make([]entity.DailyReturn, len(ordered))
	days := make([]entity.Date, len(ordered))
	for i, bar := range ordered {
		days[i] = bar.Date
		returns[i] = entity.DailyReturn{
			Ticker:     ticker,
			TradingDay: bar.Date,
			Close:      bar.Close,
		}
		if i == 0 {
			continue
		}
		prev := ordered[i-1].Close
		if prev > 0 && bar.Close > 0 {
			returns[i].PctChange = null.FloatFrom((bar.Close - prev) / prev)
		}
	}

	return returns, NewTradingCalendar(days)
}
