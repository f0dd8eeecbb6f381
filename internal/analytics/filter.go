// Package analytics builds the aggregate documents behind the analytics
// screen and keeps the default dashboard warm.
package analytics

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

const (
	DefaultWindow = 30 * 24 * time.Hour
	dateLayout    = "2006-01-02"
)

// Filter is a half-open [From, To) range plus the trend bucket size.
type Filter struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Period Period    `json:"period"`
}

// DefaultFilter covers the last 30 days, grouped by day.
func DefaultFilter(now time.Time) Filter {
	to := startOfDay(now).AddDate(0, 0, 1)
	return Filter{From: to.Add(-DefaultWindow), To: to, Period: PeriodDay}
}

// ParseFilter reads date_from, date_to (inclusive dates) and period.
func ParseFilter(values url.Values, now time.Time) (Filter, error) {
	f := DefaultFilter(now)

	if raw := strings.TrimSpace(values.Get("date_from")); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("date_from must be YYYY-MM-DD")
		}
		f.From = from
	}
	if raw := strings.TrimSpace(values.Get("date_to")); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("date_to must be YYYY-MM-DD")
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if raw := strings.TrimSpace(values.Get("period")); raw != "" {
		f.Period = Period(strings.ToLower(raw))
		if !f.Period.Valid() {
			return Filter{}, fmt.Errorf("period must be one of day, week, month")
		}
	}
	if !f.From.Before(f.To) {
		return Filter{}, fmt.Errorf("date_from must not be after date_to")
	}
	return f, nil
}

// Previous is the window of equal length immediately before f.
func (f Filter) Previous() Filter {
	length := f.To.Sub(f.From)
	return Filter{From: f.From.Add(-length), To: f.From, Period: f.Period}
}

// Key identifies the filter in the snapshot cache.
func (f Filter) Key() string {
	return fmt.Sprintf("analytics:%s:%s:%s", f.From.UTC().Format(dateLayout), f.To.UTC().Format(dateLayout), f.Period)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
