package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"golang-stock-sentiment/internal/entity"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The postgres column types (uuid, jsonb, text[]) have no sqlite equivalent, so the table is declared by hand.
const sqliteCorrelationRuns = `CREATE TABLE correlation_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	ticker TEXT NOT NULL,
	range_start DATETIME NOT NULL,
	range_end DATETIME NOT NULL,
	model_version TEXT,
	news_source TEXT,
	status TEXT NOT NULL,
	pearson_r REAL,
	sample_size INTEGER,
	stats TEXT,
	warnings TEXT,
	error_message TEXT,
	started_at DATETIME,
	completed_at DATETIME,
	created_at DATETIME
)`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec(sqliteCorrelationRuns).Error)
	return db
}

func newRun(ticker string, startedAt time.Time) *entity.CorrelationRun {
	return &entity.CorrelationRun{
		RunID:        uuid.NewString(),
		Ticker:       ticker,
		RangeStart:   entity.MustParseDate("2024-01-02").Time(),
		RangeEnd:     entity.MustParseDate("2024-01-05").Time(),
		ModelVersion: "gemini/gemini-2.0-flash",
		Status:       entity.RunStatusRunning,
		StartedAt:    startedAt,
	}
}

func TestCorrelationRunRepository_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewCorrelationRunRepository(newTestDB(t))

	run := newRun("XYZ", time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, run))
	require.NotZero(t, run.ID)

	run.Status = entity.RunStatusInsufficient
	run.PearsonR = null.Float{}
	run.SampleSize = 0
	run.Stats = datatypes.JSON(`{"raw_articles":3,"scored":3}`)
	run.Warnings = pq.StringArray{"insufficient data: 0 paired days, need 3"}
	run.CompletedAt = sql.NullTime{Time: time.Date(2024, 1, 6, 10, 0, 5, 0, time.UTC), Valid: true}
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.FindByRunID(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusInsufficient, got.Status)
	assert.False(t, got.PearsonR.Valid)
	assert.JSONEq(t, `{"raw_articles":3,"scored":3}`, string(got.Stats))
	assert.Equal(t, []string{"insufficient data: 0 paired days, need 3"}, []string(got.Warnings))
	assert.True(t, got.CompletedAt.Valid)
}

func TestCorrelationRunRepository_FindRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewCorrelationRunRepository(newTestDB(t))

	base := time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)
	for i, ticker := range []string{"XYZ", "ABC", "XYZ", "XYZ"} {
		run := newRun(ticker, base.Add(time.Duration(i)*time.Minute))
		run.Status = entity.RunStatusCompleted
		run.PearsonR = null.FloatFrom(0.1 * float64(i))
		require.NoError(t, repo.Create(ctx, run))
	}

	runs, err := repo.FindRecent(ctx, "XYZ", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))
	assert.InDelta(t, 0.3, runs[0].PearsonR.Float64, 1e-9)

	all, err := repo.FindRecent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = repo.FindByRunID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
