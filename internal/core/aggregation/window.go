package aggregation

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is one level of the calendar bucket hierarchy.
type Granularity int

const (
	Daily Granularity = iota
	Weekly
	Monthly
	Yearly
)

// Granularities lists every level, finest first.
var Granularities = []Granularity{Daily, Weekly, Monthly, Yearly}

// WeekStart is the weekday every weekly bucket begins on.
const WeekStart = time.Sunday

func (g Granularity) String() string {
	switch g {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return fmt.Sprintf("unknown(%d)", int(g))
	}
}

// ParseGranularity parses "daily"/"day", "weekly"/"week", "monthly"/"month" or
// "yearly"/"year".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	}
	return 0, fmt.Errorf("invalid granularity %q (must be daily, weekly, monthly or yearly)", s)
}

// BucketStart maps a timestamp to the start of the bucket containing it, in the
// timestamp's own location.
// Example: BucketStart(Wed 2026-02-11 10:35, Weekly) → Sun 2026-02-08 00:00
func BucketStart(t time.Time, g Granularity) time.Time {
	year, month, day := t.Date()
	switch g {
	case Weekly:
		offset := (int(t.Weekday()) - int(WeekStart) + 7) % 7
		return time.Date(year, month, day-offset, 0, 0, 0, 0, t.Location())
	case Monthly:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	case Yearly:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	}
}

// BucketEnd returns the exclusive end of the bucket that starts at start.
func BucketEnd(start time.Time, g Granularity) time.Time {
	switch g {
	case Weekly:
		return start.AddDate(0, 0, 7)
	case Monthly:
		return start.AddDate(0, 1, 0)
	case Yearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
