package pipeline

import (
	"testing"
	"time"

	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_CollapsesDuplicatesKeepingFirstBody(t *testing.T) {
	n := NewNormalizer(logger.NewNop())

	result := n.Normalize([]entity.RawArticle{
		{Ticker: "xyz", Headline: "XYZ beats estimates", Body: "first body", Timestamp: "2024-01-02T14:30:05Z"},
		{Ticker: "XYZ", Headline: "  xyz   BEATS estimates ", Body: "second body", Timestamp: "2024-01-02T14:30:55Z"},
		{Ticker: "XYZ", Headline: "XYZ beats estimates", Body: "next minute", Timestamp: "2024-01-02T14:31:00Z"},
	})

	require.Len(t, result.Articles, 2)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, "first body", result.Articles[0].Body)
	assert.Equal(t, "XYZ", result.Articles[0].Ticker)
	assert.Equal(t, "next minute", result.Articles[1].Body)
}

func TestNormalize_DropsMalformedRecords(t *testing.T) {
	n := NewNormalizer(logger.NewNop())

	result := n.Normalize([]entity.RawArticle{
		{Ticker: "XYZ", Headline: "No timestamp", Timestamp: ""},
		{Ticker: "XYZ", Headline: "Garbage timestamp", Timestamp: "yesterday-ish"},
		{Ticker: "", Headline: "No ticker", Timestamp: "2024-01-02T14:30:00Z"},
		{Ticker: "XYZ", Headline: "Good one", Timestamp: "2024-01-02T14:30:00Z"},
	})

	require.Len(t, result.Articles, 1)
	assert.Equal(t, 3, result.Malformed)
	require.Len(t, result.Errors, 3)
	for _, err := range result.Errors {
		var malformed *entity.MalformedInputError
		assert.ErrorAs(t, err, &malformed)
	}
}

func TestNormalize_OrdersByPublishTime(t *testing.T) {
	n := NewNormalizer(logger.NewNop())

	result := n.Normalize([]entity.RawArticle{
		{Ticker: "XYZ", Headline: "third", Timestamp: "Wed, 03 Jan 2024 10:00:00 GMT"},
		{Ticker: "XYZ", Headline: "first", Timestamp: "2024-01-01 09:00:00"},
		{Ticker: "XYZ", Headline: "second", Timestamp: "1704189600"},
	})

	require.Len(t, result.Articles, 3)
	assert.Equal(t, "first", result.Articles[0].Headline)
	assert.Equal(t, "second", result.Articles[1].Headline)
	assert.Equal(t, "third", result.Articles[2].Headline)
	for _, a := range result.Articles {
		assert.Equal(t, time.UTC, a.PublishedAt.Location())
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2024-01-02T14:30:00Z", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"2024-01-02T09:30:00-05:00", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"Tue, 02 Jan 2024 14:30:00 GMT", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"Tue, 02 Jan 2024 09:30:00 -0500", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"2024-01-02 14:30:00", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"Jan 2, 2024 2:30 PM", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"1704205800", time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), true},
		{"1704204000", time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC), true},
		{"1704204000000", time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC), true},
		{"1704205800250", time.Date(2024, 1, 2, 14, 30, 0, 250000000, time.UTC), true},
		{"17042040000", time.Time{}, false},
		{"1704204000000000", time.Time{}, false},
		{"2024", time.Time{}, false},
		{"N/A", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestArticleID_StableForSameMinute(t *testing.T) {
	a := ArticleID("XYZ", "Headline Here", time.Date(2024, 1, 2, 14, 29, 31, 0, time.UTC))
	b := ArticleID("xyz", "headline   here", time.Date(2024, 1, 2, 14, 30, 29, 0, time.UTC))
	c := ArticleID("XYZ", "Headline Here", time.Date(2024, 1, 2, 14, 30, 30, 0, time.UTC))
	d := ArticleID("ABC", "Headline Here", time.Date(2024, 1, 2, 14, 30, 1, 0, time.UTC))
	e := ArticleID("XYZ", "Headline Here", time.Date(2024, 1, 2, 14, 31, 0, 0, time.UTC))

	assert.Equal(t, a, b, "both round to 14:30")
	assert.NotEqual(t, a, c)
	assert.Equal(t, c, e, "half a minute rounds up")
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 32)
}
