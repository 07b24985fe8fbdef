package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sort"
	"sync"
	"time"

	"golang-stock-sentiment/internal/correlator/repository"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/ratelimit"
	"golang-stock-sentiment/pkg/utils"

	"github.com/guregu/null/v6"
)

// neutralBand is the half-width around zero where a numeric score maps to the neutral label.
const neutralBand = 0.05

// ScorerConfig controls retries and the text sent to the model.
type ScorerConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	CallTimeout  time.Duration
	ScoreBody    bool
	MaxBodyChars int
}

// ScoreResult holds the scored articles in input order plus the count of permanent failures.
type ScoreResult struct {
	Articles []entity.ScoredArticle
	Failed   int
	Errors   []error
}

// Scorer applies the sentiment model to articles through a shared throttle.
// One Scorer is shared by all runs so the external quota is respected process-wide.
type Scorer struct {
	model    repository.SentimentRepository
	throttle *ratelimit.Throttle
	cfg      ScorerConfig
	log      *logger.Logger
}

func NewScorer(model repository.SentimentRepository, throttle *ratelimit.Throttle, cfg ScorerConfig, log *logger.Logger) *Scorer {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Scorer{model: model, throttle: throttle, cfg: cfg, log: log}
}

// ModelVersion identifies the model used for scoring, part of the cache key.
func (s *Scorer) ModelVersion() string {
	return s.model.ModelVersion()
}

// Score scores every article. Per-article failures are absorbed and counted; only cancellation aborts.
func (s *Scorer) Score(ctx context.Context, articles []entity.Article) (ScoreResult, error) {
	if len(articles) == 0 {
		return ScoreResult{}, nil
	}

	scored := make([]*entity.ScoredArticle, len(articles))
	errs := make([]error, len(articles))

	workers := s.throttle.Capacity()
	if workers > len(articles) {
		workers = len(articles)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result, err := s.scoreWithRetry(ctx, articles[idx])
				if err != nil {
					errs[idx] = err
					continue
				}
				scored[idx] = &result
			}
		}()
	}

feed:
	for i := range articles {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return ScoreResult{}, err
	}

	result := ScoreResult{Articles: make([]entity.ScoredArticle, 0, len(articles))}
	for i := range articles {
		if scored[i] == nil {
			result.Failed++
			result.Errors = append(result.Errors, errs[i])
			s.log.WarnContext(ctx, "Sentiment scoring failed permanently",
				logger.StringField("article_id", articles[i].ID),
				logger.StringField("headline", articles[i].Headline),
				logger.ErrorField(errs[i]),
			)
			continue
		}
		result.Articles = append(result.Articles, *scored[i])
	}

	// Completion order is irrelevant; downstream expects publish-time order.
	sort.SliceStable(result.Articles, func(i, j int) bool {
		return result.Articles[i].PublishedAt.Before(result.Articles[j].PublishedAt)
	})

	return result, nil
}

func (s *Scorer) scoreWithRetry(ctx context.Context, article entity.Article) (entity.ScoredArticle, error) {
	text := s.textFor(article)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt, lastErr)
			s.log.DebugContext(ctx, "Retrying sentiment scoring",
				logger.StringField("article_id", article.ID),
				logger.IntField("attempt", attempt),
				logger.DurationField("delay", delay),
				logger.ErrorField(lastErr),
			)
			if err := sleepContext(ctx, delay); err != nil {
				return entity.ScoredArticle{}, err
			}
		}

		score, err := s.callModel(ctx, text)
		if err == nil {
			return toScoredArticle(article, score), nil
		}
		if ctx.Err() != nil {
			return entity.ScoredArticle{}, ctx.Err()
		}

		lastErr = err
		if !isTransient(err) {
			return entity.ScoredArticle{}, err
		}
	}

	return entity.ScoredArticle{}, fmt.Errorf("sentiment model still failing after %d retries: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Scorer) callModel(ctx context.Context, text string) (entity.SentimentScore, error) {
	release, err := s.throttle.Acquire(ctx)
	if err != nil {
		return entity.SentimentScore{}, err
	}
	defer release()

	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}
	return s.model.Score(callCtx, text)
}

// backoff doubles from BaseDelay per attempt (1s, 2s, 4s with the default) and honours a longer Retry-After.
func (s *Scorer) backoff(attempt int, lastErr error) time.Duration {
	delay := s.cfg.BaseDelay << uint(attempt-1)

	var rateErr *entity.RateLimitError
	if errors.As(lastErr, &rateErr) && rateErr.RetryAfter > delay {
		delay = rateErr.RetryAfter
	}
	return delay
}

func (s *Scorer) textFor(article entity.Article) string {
	if !s.cfg.ScoreBody || article.Body == "" {
		return article.Headline
	}
	body := article.Body
	if s.cfg.MaxBodyChars > 0 {
		body = utils.Truncate(body, s.cfg.MaxBodyChars)
	}
	return article.Headline + ". " + body
}

func toScoredArticle(article entity.Article, score entity.SentimentScore) entity.ScoredArticle {
	value := score.Value
	if value.Valid {
		if math.IsNaN(value.Float64) || math.IsInf(value.Float64, 0) {
			value = null.Float{}
		} else {
			value = null.FloatFrom(math.Max(-1, math.Min(1, value.Float64)))
		}
	}

	label := score.Label
	if !label.Valid() {
		label = ""
		if value.Valid {
			label = LabelFor(value.Float64)
		}
	}

	return entity.ScoredArticle{
		Article:    article,
		Label:      label,
		Value:      value,
		Confidence: score.Confidence,
	}
}

// LabelFor maps a score in [-1,1] to a label.
func LabelFor(value float64) entity.SentimentLabel {
	switch {
	case value > neutralBand:
		return entity.SentimentPositive
	case value < -neutralBand:
		return entity.SentimentNegative
	default:
		return entity.SentimentNeutral
	}
}

func isTransient(err error) bool {
	var rateErr *entity.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
