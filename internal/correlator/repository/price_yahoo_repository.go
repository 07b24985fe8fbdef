package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/ratelimit"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type yahooPriceRepository struct {
	cfg            config.YahooFinance
	userAgent      string
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

// NewYahooPriceRepository creates a PriceRepository backed by the Yahoo Finance chart API.
func NewYahooPriceRepository(cfg config.YahooFinance, userAgent string, log *logger.Logger) PriceRepository {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &yahooPriceRepository{
		cfg:       cfg,
		userAgent: userAgent,
		log:       log,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		requestLimiter: ratelimit.NewPerMinuteLimiter(cfg.MaxRequestPerMinute),
	}
}

func (r *yahooPriceRepository) Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.PriceBar, error) {
	// period2 is exclusive and bars are stamped at the session open, so pad the end by a day.
	query := url.Values{}
	query.Set("period1", fmt.Sprintf("%d", rng.Start.Time().Unix()))
	query.Set("period2", fmt.Sprintf("%d", rng.End.AddDays(2).Time().Unix()))
	query.Set("interval", "1d")
	query.Set("events", "history")
	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(r.cfg.BaseURL, "/"), url.PathEscape(ticker), query.Encode())

	status, body, err := r.sendRequest(ctx, chartURL)
	if err != nil {
		return nil, err
	}

	var response dto.YahooChartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if status != http.StatusOK {
			return nil, fmt.Errorf("received non-OK response from Yahoo Finance chart API: %d", status)
		}
		return nil, fmt.Errorf("failed to decode Yahoo Finance chart response: %w", err)
	}

	if response.Chart.Error != nil {
		// Unknown symbols come back as a 404 with an error object; that is an empty series.
		if status == http.StatusNotFound || strings.EqualFold(response.Chart.Error.Code, "Not Found") {
			r.log.WarnContext(ctx, "Yahoo Finance does not know ticker", logger.StringField("ticker", ticker))
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo finance chart error %s: %s", response.Chart.Error.Code, response.Chart.Error.Description)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("received non-OK response from Yahoo Finance chart API: %d", status)
	}
	if len(response.Chart.Result) == 0 {
		return nil, nil
	}

	bars := toPriceBars(response.Chart.Result[0], rng)
	r.log.DebugContext(ctx, "Fetched price bars", logger.StringField("ticker", ticker), logger.IntField("bars", len(bars)))
	return bars, nil
}

func toPriceBars(result dto.YahooChartResult, rng entity.DateRange) []entity.PriceBar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	offset := time.Duration(result.Meta.Gmtoffset) * time.Second

	bars := make([]entity.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil {
			continue
		}
		day := entity.DateOf(time.Unix(ts, 0).UTC().Add(offset))
		if !rng.Contains(day) {
			continue
		}

		bar := entity.PriceBar{Date: day, Close: *closePrice}
		if v := at(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func (r *yahooPriceRepository) sendRequest(ctx context.Context, chartURL string) (int, []byte, error) {
	fields := []zap.Field{
		zap.String("url", chartURL),
		zap.Int("max_request_per_minute", r.cfg.MaxRequestPerMinute),
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to wait for request limit", fields...)
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to create new http request", fields...)
		return 0, nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to send request to Yahoo Finance chart API", fields...)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fields = append(fields, zap.Error(err))
		r.log.ErrorContext(ctx, "Failed to read response body from Yahoo Finance chart API", fields...)
		return 0, nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		fields = append(fields, zap.Int("status_code", resp.StatusCode))
		r.log.ErrorContext(ctx, "Received non-OK response from Yahoo Finance chart API", fields...)
		return resp.StatusCode, nil, statusError("Yahoo Finance chart API", resp, body)
	}

	return resp.StatusCode, body, nil
}
