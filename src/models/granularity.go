package models

import (
	"fmt"
	"time"
)

// MGranularity is the bucket width of a series view. The set is fixed: each
// granularity carries its own lookback window (minute series cover the last
// hour, hour series the last day).
type MGranularity string

const (
	GranularityMinute MGranularity = "minute"
	GranularityHour   MGranularity = "hour"
)

// -----------------------------------------------------------------------------

// ParseGranularity validates a configured granularity name. An unknown name
// is a configuration error, fatal at startup.
func ParseGranularity(name string) (MGranularity, error) {
	switch MGranularity(name) {
	case GranularityMinute, GranularityHour:
		return MGranularity(name), nil
	default:
		return "", fmt.Errorf("invalid granularity %q (want \"minute\" or \"hour\")", name)
	}
}

// -----------------------------------------------------------------------------

// Unit is the width of one series point at this granularity.
func (g MGranularity) Unit() time.Duration {
	switch g {
	case GranularityHour:
		return time.Hour
	default:
		return time.Minute
	}
}

// -----------------------------------------------------------------------------

// Lookback is the maximum age of data included in this granularity's series.
func (g MGranularity) Lookback() time.Duration {
	switch g {
	case GranularityHour:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// -----------------------------------------------------------------------------

func (g MGranularity) String() string {
	return string(g)
}
