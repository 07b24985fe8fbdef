package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/ratelimit"
	"golang-stock-sentiment/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const SourceYahooFinanceNews = "yahoo_finance_news"

var relativeTimePattern = regexp.MustCompile(`(?i)(\d+|an?)\s+(minute|min|hour|day|week)s?\s+ago`)

type yahooNewsRepository struct {
	cfg            config.News
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	now            func() time.Time
}

// NewYahooNewsRepository creates a NewsRepository that scrapes the Yahoo Finance quote news page.
func NewYahooNewsRepository(cfg config.News, log *logger.Logger) NewsRepository {
	return &yahooNewsRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		requestLimiter: ratelimit.NewPerMinuteLimiter(cfg.MaxRequestPerMinute),
		now:            time.Now,
	}
}

func (r *yahooNewsRepository) Name() string {
	return SourceYahooFinanceNews
}

func (r *yahooNewsRepository) Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.RawArticle, error) {
	pageURL := fmt.Sprintf("%s/quote/%s/news", strings.TrimRight(r.cfg.YahooBaseURL, "/"), ticker)

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to create new http request", logger.ErrorField(err), logger.StringField("url", pageURL))
		return nil, err
	}
	userAgent := r.cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to send request to Yahoo Finance", logger.ErrorField(err), logger.StringField("url", pageURL))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.log.ErrorContext(ctx, "Received non-OK response from Yahoo Finance", logger.IntField("status_code", resp.StatusCode), logger.StringField("url", pageURL))
		return nil, statusError("Yahoo Finance", resp, body)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Yahoo Finance news page: %w", err)
	}

	now := r.now().UTC()
	var articles []entity.RawArticle
	doc.Find("li.js-stream-content, li.stream-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if r.cfg.MaxArticles > 0 && len(articles) >= r.cfg.MaxArticles {
			return false
		}

		title := utils.SafeText(s.Find("h3").First().Text())
		link, ok := s.Find("a[href]").First().Attr("href")
		if title == "" || !ok {
			return true
		}
		if !strings.HasPrefix(link, "http") {
			link = strings.TrimRight(r.cfg.YahooBaseURL, "/") + link
		}

		timestamp := publishedAt(s, now)
		if t, err := time.Parse(time.RFC3339, timestamp); err == nil && !rng.Contains(entity.DateOf(t.UTC())) {
			return true
		}

		articles = append(articles, entity.RawArticle{
			Ticker:    ticker,
			Headline:  title,
			Body:      utils.SafeText(s.Find("p").First().Text()),
			Timestamp: timestamp,
			SourceURL: link,
			Source:    SourceYahooFinanceNews,
		})
		return true
	})

	r.log.InfoContext(ctx, "Scraped Yahoo Finance news", logger.StringField("ticker", ticker), logger.IntField("articles", len(articles)))
	return articles, nil
}

// publishedAt prefers a machine readable <time datetime>, then a relative "3 hours ago" label.
// Anything else is returned verbatim so the normalizer can reject it.
func publishedAt(s *goquery.Selection, now time.Time) string {
	if dt, ok := s.Find("time[datetime]").First().Attr("datetime"); ok && dt != "" {
		return dt
	}
	label := utils.SafeText(s.Find("div.publishing, time").First().Text())
	if t, ok := parseRelativeTime(label, now); ok {
		return t.Format(time.RFC3339)
	}
	return label
}

func parseRelativeTime(label string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(label)
	if strings.Contains(lower, "yesterday") {
		return now.Add(-24 * time.Hour), true
	}

	m := relativeTimePattern.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}
	n := 1
	if m[1] != "a" && m[1] != "an" {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		n = v
	}

	var unit time.Duration
	switch m[2] {
	case "minute", "min":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	}
	return now.Add(-time.Duration(n) * unit).Truncate(time.Minute), true
}
