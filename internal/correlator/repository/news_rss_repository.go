package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/ratelimit"
	"golang-stock-sentiment/pkg/utils"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const SourceGoogleNewsRSS = "google_news_rss"

type googleNewsRepository struct {
	cfg            config.News
	log            *logger.Logger
	parser         *gofeed.Parser
	body           *bodyFetcher
	requestLimiter *rate.Limiter
}

// NewGoogleNewsRepository creates a NewsRepository backed by the Google News RSS search feed.
func NewGoogleNewsRepository(cfg config.News, log *logger.Logger) NewsRepository {
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	if parser.UserAgent == "" {
		parser.UserAgent = defaultUserAgent
	}
	parser.Client = &http.Client{Timeout: 20 * time.Second}

	return &googleNewsRepository{
		cfg:            cfg,
		log:            log,
		parser:         parser,
		body:           newBodyFetcher(cfg.UserAgent, log),
		requestLimiter: ratelimit.NewPerMinuteLimiter(cfg.MaxRequestPerMinute),
	}
}

func (r *googleNewsRepository) Name() string {
	return SourceGoogleNewsRSS
}

func (r *googleNewsRepository) Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.RawArticle, error) {
	feedURL := r.searchURL(ticker, rng)
	r.log.InfoContext(ctx, "Processing RSS feed", logger.StringField("url", feedURL), logger.StringField("ticker", ticker))

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to parse RSS feed", logger.ErrorField(err), logger.StringField("url", feedURL))
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError) {
			return nil, &entity.RateLimitError{Err: err}
		}
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	// Newest first so MaxArticles keeps the most recent items.
	items := feed.Items
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PublishedParsed == nil || items[j].PublishedParsed == nil {
			return items[j].PublishedParsed == nil && items[i].PublishedParsed != nil
		}
		return items[i].PublishedParsed.After(*items[j].PublishedParsed)
	})

	var articles []entity.RawArticle
	for _, item := range items {
		if r.cfg.MaxArticles > 0 && len(articles) >= r.cfg.MaxArticles {
			break
		}
		if !utils.ShouldContinue(ctx, r.log) {
			return nil, ctx.Err()
		}

		// Undated items are passed through; the normalizer rejects them with a reason.
		if item.PublishedParsed != nil && !rng.Contains(entity.DateOf(item.PublishedParsed.UTC())) {
			continue
		}

		source := sourceHost(item)
		if utils.ContainsString(r.cfg.BlackListedDomains, source) {
			r.log.DebugContext(ctx, "Skip news from blacklisted domain", logger.StringField("domain", source))
			continue
		}

		article := entity.RawArticle{
			Ticker:    ticker,
			Headline:  utils.CleanToValidUTF8(item.Title),
			Timestamp: item.Published,
			SourceURL: item.Link,
			Source:    source,
		}
		if item.PublishedParsed != nil {
			article.Timestamp = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		if item.Description != "" {
			if text, err := htmlText(item.Description); err == nil {
				article.Body = text
			}
		}
		if r.cfg.FetchBody && item.Link != "" {
			if text, err := r.body.Fetch(ctx, item.Link); err != nil {
				r.log.WarnContext(ctx, "Failed to fetch article body", logger.ErrorField(err), logger.StringField("url", item.Link))
			} else if text != "" {
				article.Body = text
			}
		}

		articles = append(articles, article)
	}

	r.log.InfoContext(ctx, "Fetched RSS news",
		logger.StringField("ticker", ticker),
		logger.IntField("feed_items", len(feed.Items)),
		logger.IntField("articles", len(articles)),
	)
	return articles, nil
}

// searchURL builds e.g. /search?q=AAPL+stock+after:2024-01-01+before:2024-01-06&hl=en-US&gl=US&ceid=US:en.
// Google's before: operator is exclusive, hence End+1.
func (r *googleNewsRepository) searchURL(ticker string, rng entity.DateRange) string {
	query := fmt.Sprintf("%s stock after:%s before:%s", ticker, rng.Start, rng.End.AddDays(1))
	u := strings.TrimRight(r.cfg.RSSBaseURL, "/") + "/search?q=" + url.QueryEscape(query)
	if r.cfg.RSSQueryParams != "" {
		u += "&" + r.cfg.RSSQueryParams
	}
	return u
}

func sourceHost(item *gofeed.Item) string {
	if item.Link == "" {
		return ""
	}
	parsed, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
