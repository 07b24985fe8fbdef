package pipeline

import (
	"math"
	"sort"

	"golang-stock-sentiment/internal/entity"

	"github.com/guregu/null/v6"
)

// MinSamples is the fewest joined days for which a correlation is reported.
const MinSamples = 3

// Correlator joins daily sentiment with daily returns.
type Correlator struct {
	maxLag int
}

func NewCorrelator(maxLag int) *Correlator {
	if maxLag < 0 {
		maxLag = 0
	}
	return &Correlator{maxLag: maxLag}
}

// Correlate builds the per-day detail over every day seen on either side and computes Pearson r over the
// days where both values exist. With fewer than MinSamples pairs the result is still returned, with a null
// r, together with an *entity.InsufficientDataError.
func (c *Correlator) Correlate(ticker string, rng entity.DateRange, sentiment []entity.DailySentiment, returns []entity.DailyReturn) (*entity.CorrelationResult, error) {
	rows := make(map[entity.Date]*entity.DayPoint)
	row := func(d entity.Date) *entity.DayPoint {
		p, ok := rows[d]
		if !ok {
			p = &entity.DayPoint{TradingDay: d}
			rows[d] = p
		}
		return p
	}

	for _, r := range returns {
		p := row(r.TradingDay)
		p.PctChange = r.PctChange
		p.Close = null.FloatFrom(r.Close)
	}
	for _, s := range sentiment {
		p := row(s.TradingDay)
		p.MeanSentiment = s.MeanSentiment
		p.ArticleCount = s.ArticleCount
	}

	perDay := make([]entity.DayPoint, 0, len(rows))
	for _, p := range rows {
		perDay = append(perDay, *p)
	}
	sort.Slice(perDay, func(i, j int) bool { return perDay[i].TradingDay.Before(perDay[j].TradingDay) })

	result := &entity.CorrelationResult{
		Ticker:    ticker,
		DateRange: rng,
		PerDay:    perDay,
	}

	r, n := lagPearson(perDay, 0)
	result.PearsonR = r
	result.SampleSize = n

	for lag := 0; lag <= c.maxLag && c.maxLag > 0; lag++ {
		lr, ln := lagPearson(perDay, lag)
		result.Lags = append(result.Lags, entity.LagCorrelation{Lag: lag, PearsonR: lr, SampleSize: ln})
	}

	if n < MinSamples {
		return result, &entity.InsufficientDataError{Pairs: n, Required: MinSamples}
	}
	return result, nil
}

// lagPearson pairs sentiment on row i with the return on row i+lag.
func lagPearson(perDay []entity.DayPoint, lag int) (null.Float, int) {
	var xs, ys []float64
	for i := 0; i+lag < len(perDay); i++ {
		s := perDay[i].MeanSentiment
		r := perDay[i+lag].PctChange
		if !s.Valid || !r.Valid {
			continue
		}
		xs = append(xs, s.Float64)
		ys = append(ys, r.Float64)
	}

	if len(xs) < MinSamples {
		return null.Float{}, len(xs)
	}
	r, ok := Pearson(xs, ys)
	if !ok {
		return null.Float{}, len(xs)
	}
	return null.FloatFrom(r), len(xs)
}

// Pearson returns the correlation coefficient of xs and ys. ok is false when the inputs differ in length,
// have fewer than two points, or either side has zero variance.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return 0, false
	}
	if constant(xs) || constant(ys) {
		return 0, false
	}

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}

	r := sxy / math.Sqrt(sxx*syy)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
