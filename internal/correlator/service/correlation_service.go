package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang-stock-sentiment/internal/correlator/cache"
	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/pipeline"
	"golang-stock-sentiment/internal/correlator/repository"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/common"
	"golang-stock-sentiment/pkg/logger"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const SourcePrice = "price"

var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-^=]{0,14}$`)

// ErrRunLogDisabled is returned by RecentRuns when no run log is configured.
var ErrRunLogDisabled = errors.New("run log is disabled")

// RunOutput is what a caller gets back from Run.
type RunOutput struct {
	Result *entity.CorrelationResult
	Cached bool
}

// CorrelationService runs the sentiment-price correlation pipeline behind the result cache.
type CorrelationService interface {
	// Run returns the correlation for ticker over rng. When fewer than three paired days exist the
	// result is still returned, together with an *entity.InsufficientDataError.
	Run(ctx context.Context, ticker string, rng entity.DateRange) (RunOutput, error)
	Invalidate(ctx context.Context, ticker string, rng entity.DateRange) error
	RecentRuns(ctx context.Context, ticker string, limit int) ([]entity.CorrelationRun, error)
}

type correlationService struct {
	cfg        config.Pipeline
	log        *logger.Logger
	news       repository.NewsRepository
	prices     repository.PriceRepository
	runs       repository.CorrelationRunRepository
	cache      *cache.ResultCache
	normalizer *pipeline.Normalizer
	scorer     *pipeline.Scorer
	aligner    *pipeline.Aligner
	aggregator *pipeline.Aggregator
	correlator *pipeline.Correlator
}

// NewCorrelationService wires the pipeline stages. runs may be nil to disable the run log.
func NewCorrelationService(cfg config.Pipeline, log *logger.Logger, news repository.NewsRepository, prices repository.PriceRepository, scorer *pipeline.Scorer, resultCache *cache.ResultCache, runs repository.CorrelationRunRepository) (CorrelationService, error) {
	clock, err := pipeline.NewMarketClock(cfg.MarketTimezone, cfg.MarketCloseCutoff)
	if err != nil {
		return nil, err
	}

	return &correlationService{
		cfg:        cfg,
		log:        log,
		news:       news,
		prices:     prices,
		runs:       runs,
		cache:      resultCache,
		normalizer: pipeline.NewNormalizer(log),
		scorer:     scorer,
		aligner:    pipeline.NewAligner(),
		aggregator: pipeline.NewAggregator(clock),
		correlator: pipeline.NewCorrelator(cfg.MaxLag),
	}, nil
}

// NormalizeTicker upper-cases and validates a ticker symbol.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%w: ticker %q", entity.ErrInvalidInput, ticker)
	}
	return t, nil
}

func (s *correlationService) cacheKey(ticker string, rng entity.DateRange) entity.CacheKey {
	return entity.CacheKey{
		Ticker:       ticker,
		Start:        rng.Start,
		End:          rng.End,
		ModelVersion: s.scorer.ModelVersion(),
	}
}

func (s *correlationService) Run(ctx context.Context, ticker string, rng entity.DateRange) (RunOutput, error) {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return RunOutput{}, err
	}
	if err := rng.Validate(); err != nil {
		return RunOutput{}, err
	}

	key := s.cacheKey(ticker, rng)
	result, cached, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*entity.CorrelationResult, error) {
		return s.compute(ctx, ticker, rng)
	})
	if err != nil {
		return RunOutput{}, err
	}

	if cached {
		s.log.InfoContext(ctx, "Serving correlation from cache", logger.StringField("key", key.String()))
	}

	out := RunOutput{Result: result, Cached: cached}
	if result.SampleSize < pipeline.MinSamples {
		return out, &entity.InsufficientDataError{Pairs: result.SampleSize, Required: pipeline.MinSamples}
	}
	return out, nil
}

func (s *correlationService) Invalidate(ctx context.Context, ticker string, rng entity.DateRange) error {
	ticker, err := NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	if err := rng.Validate(); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, s.cacheKey(ticker, rng))
}

func (s *correlationService) RecentRuns(ctx context.Context, ticker string, limit int) ([]entity.CorrelationRun, error) {
	if s.runs == nil {
		return nil, ErrRunLogDisabled
	}
	if ticker != "" {
		t, err := NormalizeTicker(ticker)
		if err != nil {
			return nil, err
		}
		ticker = t
	}
	if limit <= 0 {
		limit = common.DefaultRunListLimit
	}
	if limit > common.MaxRunListLimit {
		limit = common.MaxRunListLimit
	}
	return s.runs.FindRecent(ctx, ticker, limit)
}

// compute is the cache miss path. It runs once per key no matter how many callers wait on it.
func (s *correlationService) compute(ctx context.Context, ticker string, rng entity.DateRange) (*entity.CorrelationResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	s.log.InfoContext(ctx, "Starting correlation run",
		logger.StringField("ticker", ticker),
		logger.StringField("range", rng.String()),
		logger.StringField("model_version", s.scorer.ModelVersion()),
	)

	run := s.startRun(ctx, runID, ticker, rng, started)
	result, err := s.execute(ctx, ticker, rng)
	s.finishRun(ctx, run, result, err)

	if err != nil {
		s.log.ErrorContext(ctx, "Correlation run failed", logger.StringField("ticker", ticker), logger.ErrorField(err))
		return nil, err
	}

	s.log.InfoContext(ctx, "Correlation run finished",
		logger.StringField("ticker", ticker),
		logger.IntField("sample_size", result.SampleSize),
		logger.Field("pearson_r", result.PearsonR),
		logger.DurationField("took", time.Since(started)),
	)
	return result, nil
}

func (s *correlationService) execute(ctx context.Context, ticker string, rng entity.DateRange) (*entity.CorrelationResult, error) {
	var (
		raw  []entity.RawArticle
		bars []entity.PriceBar
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articles, err := s.news.Fetch(gctx, ticker, rng)
		if err != nil {
			return &entity.SourceUnavailableError{Source: s.news.Name(), Ticker: ticker, Err: err}
		}
		raw = articles
		return nil
	})
	g.Go(func() error {
		series, err := s.prices.Fetch(gctx, ticker, rng)
		if err != nil {
			return &entity.SourceUnavailableError{Source: SourcePrice, Ticker: ticker, Err: err}
		}
		if len(series) == 0 {
			return &entity.SourceUnavailableError{Source: SourcePrice, Ticker: ticker, Err: entity.ErrEmptyPriceSeries}
		}
		bars = series
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	normalized := s.normalizer.Normalize(raw)

	scored, err := s.scorer.Score(ctx, normalized.Articles)
	if err != nil {
		return nil, err
	}

	returns, calendar := s.aligner.Align(ticker, bars)
	aggregated := s.aggregator.Aggregate(ticker, scored.Articles, calendar)

	result, err := s.correlator.Correlate(ticker, rng, aggregated.Days, returns)
	var insufficient *entity.InsufficientDataError
	if err != nil && !errors.As(err, &insufficient) {
		return nil, err
	}

	result.ModelVersion = s.scorer.ModelVersion()
	result.NewsSource = s.news.Name()
	result.Summary = pipeline.Summarize(scored.Articles)
	result.Stats = entity.RunStats{
		RawArticles:   len(raw),
		Duplicates:    normalized.Duplicates,
		Malformed:     normalized.Malformed,
		Articles:      len(normalized.Articles),
		Scored:        len(scored.Articles),
		ScoreFailures: scored.Failed,
		Unattributed:  aggregated.Unattributed,
		PriceBars:     len(bars),
	}
	result.GeneratedAt = time.Now().UTC().Round(0)

	return result, nil
}

// startRun records the run as started. The run log is best effort and never fails a run.
func (s *correlationService) startRun(ctx context.Context, runID, ticker string, rng entity.DateRange, started time.Time) *entity.CorrelationRun {
	if s.runs == nil {
		return nil
	}

	run := &entity.CorrelationRun{
		RunID:        runID,
		Ticker:       ticker,
		RangeStart:   rng.Start.Time(),
		RangeEnd:     rng.End.Time(),
		ModelVersion: s.scorer.ModelVersion(),
		NewsSource:   s.news.Name(),
		Status:       entity.RunStatusRunning,
		StartedAt:    started,
	}

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Create(dbCtx, run); err != nil {
		s.log.WarnContext(ctx, "Failed to record correlation run", logger.ErrorField(err))
		return nil
	}
	return run
}

func (s *correlationService) finishRun(ctx context.Context, run *entity.CorrelationRun, result *entity.CorrelationResult, runErr error) {
	if run == nil {
		return
	}

	run.CompletedAt.Time = time.Now()
	run.CompletedAt.Valid = true

	switch {
	case runErr == nil && result.SampleSize >= pipeline.MinSamples:
		run.Status = entity.RunStatusCompleted
	case runErr == nil:
		run.Status = entity.RunStatusInsufficient
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		run.Status = entity.RunStatusCancelled
	default:
		run.Status = entity.RunStatusFailed
	}

	if runErr != nil {
		run.ErrorMessage.String = runErr.Error()
		run.ErrorMessage.Valid = true
	}

	if result != nil {
		run.PearsonR = result.PearsonR
		run.SampleSize = result.SampleSize
		if stats, err := json.Marshal(result.Stats); err == nil {
			run.Stats = datatypes.JSON(stats)
		}
		run.Warnings = pq.StringArray(runWarnings(result))
	} else {
		run.PearsonR = null.Float{}
	}

	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Update(dbCtx, run); err != nil {
		s.log.WarnContext(ctx, "Failed to update correlation run", logger.ErrorField(err), logger.StringField("run_id", run.RunID))
	}
}

func runWarnings(result *entity.CorrelationResult) []string {
	var warnings []string
	if result.SampleSize < pipeline.MinSamples {
		warnings = append(warnings, (&entity.InsufficientDataError{Pairs: result.SampleSize, Required: pipeline.MinSamples}).Error())
	}
	if result.Stats.ScoreFailures > 0 {
		warnings = append(warnings, fmt.Sprintf("%d articles could not be scored", result.Stats.ScoreFailures))
	}
	if result.Stats.Malformed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d malformed articles dropped", result.Stats.Malformed))
	}
	if result.Stats.Unattributed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d articles published after the last trading day", result.Stats.Unattributed))
	}
	return warnings
}
