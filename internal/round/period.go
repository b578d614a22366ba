package round

import (
	"fmt"
	"time"
)

// Period names a leaderboard window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Periods lists every supported window.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

// ParsePeriod validates a period name.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// WindowStart returns the earliest instant that belongs to p at now.
// Daily starts at midnight in loc, weekly and monthly trail 7 and 30 days,
// and all_time is unbounded (zero time).
func (p Period) WindowStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch p {
	case PeriodDaily:
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}
