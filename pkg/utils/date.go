package utils

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultMarketTimezone is the exchange timezone used when none is configured.
const DefaultMarketTimezone = "America/New_York"

// LoadMarketLocation loads the exchange timezone, falling back to DefaultMarketTimezone for an empty name.
func LoadMarketLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultMarketTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseClock parses a "HH:MM" wall clock string into minutes after midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
