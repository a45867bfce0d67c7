package analytics

import (
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
	PeriodRange Period = "range"

	DefaultPeriod = PeriodMonth
	dateLayout    = "2006-01-02"
)

// Query selects the report window: an explicit [StartDate, EndDate] (YYYY-MM-DD, inclusive
// whole days) or a named Period.
type Query struct {
	Period    Period
	StartDate string
	EndDate   string
}

// Window is an inclusive [From, To] range. A zero From means unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Bounded() bool { return !w.From.IsZero() }

// Previous is the window of equal length ending right before w.
func (w Window) Previous() (Window, bool) {
	if !w.Bounded() {
		return Window{}, false
	}
	length := w.To.Sub(w.From)
	return Window{From: w.From.Add(-length), To: w.From.Add(-time.Nanosecond)}, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Resolve turns q into a concrete window as of now, using loc for day boundaries.
func Resolve(q Query, now time.Time, loc *time.Location) (Period, Window, error) {
	now = now.In(loc)

	if q.StartDate != "" || q.EndDate != "" {
		if q.StartDate == "" || q.EndDate == "" {
			return "", Window{}, apperr.Validation("start_date and end_date must be given together")
		}
		start, err := time.ParseInLocation(dateLayout, q.StartDate, loc)
		if err != nil {
			return "", Window{}, apperr.Validation("invalid start_date %q", q.StartDate)
		}
		end, err := time.ParseInLocation(dateLayout, q.EndDate, loc)
		if err != nil {
			return "", Window{}, apperr.Validation("invalid end_date %q", q.EndDate)
		}
		if end.Before(start) {
			return "", Window{}, apperr.Validation("end_date is before start_date")
		}
		return PeriodRange, Window{From: start, To: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
	}

	p := q.Period
	if p == "" {
		p = DefaultPeriod
	}
	switch p {
	case PeriodToday:
		return p, Window{From: startOfDay(now), To: now}, nil
	case PeriodWeek:
		return p, Window{From: now.AddDate(0, 0, -7), To: now}, nil
	case PeriodMonth:
		return p, Window{From: now.AddDate(0, 0, -30), To: now}, nil
	case PeriodYear:
		return p, Window{From: now.AddDate(0, 0, -365), To: now}, nil
	case PeriodAll:
		return p, Window{To: now}, nil
	default:
		return "", Window{}, apperr.Validation("invalid period %q", q.Period)
	}
}
