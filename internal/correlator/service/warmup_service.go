package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-stock-sentiment/internal/correlator/config"
	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/common"
	"golang-stock-sentiment/pkg/logger"
	"golang-stock-sentiment/pkg/telegram"
	"golang-stock-sentiment/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const warmupLockTTL = 30 * time.Minute

// WarmupService precomputes correlations for a watchlist on a cron schedule so dashboard reads hit the cache.
type WarmupService interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) []dto.WarmupOutcome
}

type warmupService struct {
	cfg      config.Warmup
	location *time.Location
	svc      CorrelationService
	notifier telegram.Notifier
	locker   redis.Cmdable
	log      *logger.Logger
	now      func() time.Time
}

// NewWarmupService creates a WarmupService. notifier and locker are optional.
func NewWarmupService(cfg config.Warmup, marketTimezone string, svc CorrelationService, notifier telegram.Notifier, locker redis.Cmdable, log *logger.Logger) (WarmupService, error) {
	loc, err := utils.LoadMarketLocation(marketTimezone)
	if err != nil {
		return nil, err
	}
	return &warmupService{
		cfg:      cfg,
		location: loc,
		svc:      svc,
		notifier: notifier,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}, nil
}

// Start schedules RunOnce and blocks until ctx is done.
func (s *warmupService) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
	)
	if _, err := c.AddFunc(s.cfg.Cron, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid warmup cron %q: %w", s.cfg.Cron, err)
	}

	s.log.Info("Warmup scheduler started",
		logger.StringField("cron", s.cfg.Cron),
		logger.IntField("tickers", len(s.cfg.Tickers)),
	)
	c.Start()

	<-ctx.Done()
	s.log.Info("Warmup scheduler stopping")
	<-c.Stop().Done()
	return nil
}

func (s *warmupService) RunOnce(ctx context.Context) []dto.WarmupOutcome {
	release, ok := s.acquireLock(ctx)
	if !ok {
		return nil
	}
	defer release()

	end := entity.DateOf(s.now().In(s.location))
	rng := entity.DateRange{Start: end.AddDays(-s.cfg.LookbackDays), End: end}

	outcomes := make([]dto.WarmupOutcome, 0, len(s.cfg.Tickers))
	for _, ticker := range s.cfg.Tickers {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		outcome := dto.WarmupOutcome{Ticker: ticker}
		out, err := s.svc.Run(ctx, ticker, rng)
		outcome.Result = out.Result
		outcome.Cached = out.Cached

		var insufficient *entity.InsufficientDataError
		switch {
		case err == nil:
		case errors.As(err, &insufficient):
			outcome.Warning = insufficient.Error()
		default:
			outcome.Result = nil
			outcome.Error = err.Error()
			s.log.Warn("Warmup run failed", logger.StringField("ticker", ticker), logger.ErrorField(err))
		}
		outcomes = append(outcomes, outcome)
	}

	s.log.Info("Warmup finished", logger.StringField("range", rng.String()), logger.IntField("tickers", len(outcomes)))
	s.notify(ctx, end, outcomes)
	return outcomes
}

func (s *warmupService) notify(ctx context.Context, date entity.Date, outcomes []dto.WarmupOutcome) {
	if s.notifier == nil {
		return
	}

	messages := telegram.FormatWarmupDigest(date, outcomes)
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	if len(outcomes) > 0 && failed == len(outcomes) {
		messages = []string{telegram.FormatErrorAlertMessage(s.now(), "Warmup failed", fmt.Sprintf("all %d tickers failed, first error: %s", failed, outcomes[0].Error))}
	}

	for _, msg := range messages {
		if err := s.notifier.SendMessage(ctx, msg); err != nil {
			s.log.Warn("Failed to send warmup digest", logger.ErrorField(err))
			return
		}
	}
}

// acquireLock takes the shared warmup lock when a redis is configured. Without one every instance runs.
func (s *warmupService) acquireLock(ctx context.Context) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}

	token := uuid.NewString()
	ok, err := s.locker.SetNX(ctx, common.WarmupLockKey, token, warmupLockTTL).Result()
	if err != nil {
		s.log.Warn("Failed to take warmup lock, running anyway", logger.ErrorField(err))
		return func() {}, true
	}
	if !ok {
		s.log.Info("Warmup already running elsewhere, skipping")
		return nil, false
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		current, err := s.locker.Get(releaseCtx, common.WarmupLockKey).Result()
		if err == nil && current == token {
			s.locker.Del(releaseCtx, common.WarmupLockKey)
		}
	}, true
}
