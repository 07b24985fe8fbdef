package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_AddDaysCrossesMonth(t *testing.T) {
	d := MustParseDate("2024-01-31")
	assert.Equal(t, MustParseDate("2024-02-01"), d.AddDays(1))
	assert.Equal(t, MustParseDate("2024-01-30"), d.AddDays(-1))
}

func TestDate_JSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Day Date `json:"day"`
	}{Day: MustParseDate("2024-01-02")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-01-02"}`, string(payload))

	var decoded struct {
		Day Date `json:"day"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, MustParseDate("2024-01-02"), decoded.Day)
}

func TestDateOf_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	utc := time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, MustParseDate("2024-01-03"), DateOf(utc))
	assert.Equal(t, MustParseDate("2024-01-02"), DateOf(utc.In(ny)))
}

func TestDateRange_Validate(t *testing.T) {
	assert.NoError(t, DateRange{Start: MustParseDate("2024-01-02"), End: MustParseDate("2024-01-02")}.Validate())
	assert.ErrorIs(t, DateRange{Start: MustParseDate("2024-01-05"), End: MustParseDate("2024-01-02")}.Validate(), ErrInvalidInput)
	assert.Error(t, DateRange{End: MustParseDate("2024-01-02")}.Validate())
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{CreatedAt: now, TTL: time.Minute}

	assert.False(t, entry.Expired(now.Add(59*time.Second)))
	assert.True(t, entry.Expired(now.Add(time.Minute)))
	assert.False(t, CacheEntry{CreatedAt: now}.Expired(now.Add(24*time.Hour)))
}
