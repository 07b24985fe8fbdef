package repository

import (
	"context"

	"golang-stock-sentiment/internal/entity"

	"gorm.io/gorm"
)

// CorrelationRunRepository stores the audit trail of correlation runs.
type CorrelationRunRepository interface {
	Create(ctx context.Context, run *entity.CorrelationRun) error
	Update(ctx context.Context, run *entity.CorrelationRun) error
	FindByRunID(ctx context.Context, runID string) (*entity.CorrelationRun, error)
	FindRecent(ctx context.Context, ticker string, limit int) ([]entity.CorrelationRun, error)
}

// NewCorrelationRunRepository creates a new GORM-based correlation run repository.
func NewCorrelationRunRepository(db *gorm.DB) CorrelationRunRepository {
	return &correlationRunRepository{db: db}
}

type correlationRunRepository struct {
	db *gorm.DB
}

func (r *correlationRunRepository) Create(ctx context.Context, run *entity.CorrelationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update writes every column of run, including ones reset to zero values.
func (r *correlationRunRepository) Update(ctx context.Context, run *entity.CorrelationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *correlationRunRepository) FindByRunID(ctx context.Context, runID string) (*entity.CorrelationRun, error) {
	var run entity.CorrelationRun
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// FindRecent returns the latest runs, newest first. An empty ticker matches all tickers.
func (r *correlationRunRepository) FindRecent(ctx context.Context, ticker string, limit int) ([]entity.CorrelationRun, error) {
	query := r.db.WithContext(ctx).Order("started_at desc").Order("id desc")
	if ticker != "" {
		query = query.Where("ticker = ?", ticker)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []entity.CorrelationRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
