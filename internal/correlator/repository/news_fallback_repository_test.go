package repository

import (
	"context"
	"errors"
	"testing"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNews struct {
	name     string
	articles []entity.RawArticle
	err      error
	calls    int
}

func (s *stubNews) Name() string { return s.name }

func (s *stubNews) Fetch(_ context.Context, _ string, _ entity.DateRange) ([]entity.RawArticle, error) {
	s.calls++
	return s.articles, s.err
}

func TestFallbackNewsRepository(t *testing.T) {
	one := []entity.RawArticle{{Ticker: "XYZ", Headline: "primary"}}
	two := []entity.RawArticle{{Ticker: "XYZ", Headline: "backup"}}

	t.Run("primary answers", func(t *testing.T) {
		primary := &stubNews{name: "rss", articles: one}
		backup := &stubNews{name: "yahoo", articles: two}

		got, err := NewFallbackNewsRepository(primary, backup, logger.NewNop()).Fetch(context.Background(), "XYZ", newsRange())
		require.NoError(t, err)
		assert.Equal(t, one, got)
		assert.Zero(t, backup.calls, "backup is never merged in")
	})

	t.Run("primary empty", func(t *testing.T) {
		primary := &stubNews{name: "rss"}
		backup := &stubNews{name: "yahoo", articles: two}

		got, err := NewFallbackNewsRepository(primary, backup, logger.NewNop()).Fetch(context.Background(), "XYZ", newsRange())
		require.NoError(t, err)
		assert.Equal(t, two, got)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &stubNews{name: "rss", err: errors.New("boom")}
		backup := &stubNews{name: "yahoo", articles: two}

		got, err := NewFallbackNewsRepository(primary, backup, logger.NewNop()).Fetch(context.Background(), "XYZ", newsRange())
		require.NoError(t, err)
		assert.Equal(t, two, got)
	})

	t.Run("both fail", func(t *testing.T) {
		primaryErr := errors.New("rss down")
		backupErr := errors.New("yahoo down")
		repo := NewFallbackNewsRepository(&stubNews{name: "rss", err: primaryErr}, &stubNews{name: "yahoo", err: backupErr}, logger.NewNop())

		_, err := repo.Fetch(context.Background(), "XYZ", newsRange())
		require.Error(t, err)
		assert.ErrorIs(t, err, primaryErr)
		assert.ErrorIs(t, err, backupErr)
		assert.Equal(t, "rss+yahoo", repo.Name())
	})

	t.Run("primary empty and backup fails", func(t *testing.T) {
		repo := NewFallbackNewsRepository(&stubNews{name: "rss"}, &stubNews{name: "yahoo", err: errors.New("down")}, logger.NewNop())

		got, err := repo.Fetch(context.Background(), "XYZ", newsRange())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
