package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"
)

type fallbackNewsRepository struct {
	primary NewsRepository
	backup  NewsRepository
	log     *logger.Logger
}

// NewFallbackNewsRepository queries backup only when primary fails or returns nothing.
// Results from the two sources are never merged.
func NewFallbackNewsRepository(primary, backup NewsRepository, log *logger.Logger) NewsRepository {
	return &fallbackNewsRepository{primary: primary, backup: backup, log: log}
}

func (r *fallbackNewsRepository) Name() string {
	return r.primary.Name() + "+" + r.backup.Name()
}

func (r *fallbackNewsRepository) Fetch(ctx context.Context, ticker string, rng entity.DateRange) ([]entity.RawArticle, error) {
	articles, primaryErr := r.primary.Fetch(ctx, ticker, rng)
	if primaryErr == nil && len(articles) > 0 {
		return articles, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.log.WarnContext(ctx, "Primary news source gave nothing, trying backup",
		logger.StringField("primary", r.primary.Name()),
		logger.StringField("backup", r.backup.Name()),
		logger.StringField("ticker", ticker),
		logger.ErrorField(primaryErr),
	)

	backupArticles, backupErr := r.backup.Fetch(ctx, ticker, rng)
	switch {
	case backupErr == nil:
		return backupArticles, nil
	case primaryErr != nil:
		return nil, errors.Join(
			fmt.Errorf("%s: %w", r.primary.Name(), primaryErr),
			fmt.Errorf("%s: %w", r.backup.Name(), backupErr),
		)
	default:
		// Primary answered with an empty list; an empty result is still a valid answer.
		r.log.WarnContext(ctx, "Backup news source failed", logger.StringField("backup", r.backup.Name()), logger.ErrorField(backupErr))
		return articles, nil
	}
}
