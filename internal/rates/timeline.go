// Package rates resolves the central-bank policy rate effective on a date.
package rates

import (
	"context"
	"sort"

	"patrimonio/internal/core"
)

// Interval is a period during which a policy rate target was in force.
// A zero End means the interval is still open.
type Interval struct {
	Start       core.Date `json:"start"`
	End         core.Date `json:"end"`
	RatePercent float64   `json:"rate_percent"`
}

// Open reports whether the interval has no end date yet.
func (iv Interval) Open() bool { return iv.End.IsZero() }

// Timeline is a set of non-overlapping rate intervals. Open intervals end on Today.
type Timeline struct {
	Intervals []Interval `json:"intervals"`
	Today     core.Date  `json:"today"`
}

// Provider supplies the rate timeline.
type Provider interface {
	Timeline(ctx context.Context) (Timeline, error)
}

// NewTimeline copies the intervals and sorts them by start date.
func NewTimeline(intervals []Interval, today core.Date) Timeline {
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return Timeline{Intervals: out, Today: today}
}

// RateAt returns the annual rate, in percent, of the first interval with
// Start < d < End. Both comparisons are strict, so a date that falls exactly
// on a boundary matches neither neighbouring interval.
func (t Timeline) RateAt(d core.Date) (float64, error) {
	for _, iv := range t.Intervals {
		end := iv.End
		if iv.Open() {
			end = t.Today
		}
		if iv.Start.Before(d) && d.Before(end) {
			return iv.RatePercent, nil
		}
	}
	return 0, &core.NoApplicableRateError{Date: d}
}

// Resolved returns the intervals with open ends replaced by Today.
func (t Timeline) Resolved() []Interval {
	out := make([]Interval, len(t.Intervals))
	for i, iv := range t.Intervals {
		if iv.Open() {
			iv.End = t.Today
		}
		out[i] = iv
	}
	return out
}

// Static is a Provider over a fixed set of intervals.
type Static struct {
	Intervals []Interval
	Now       func() core.Date
}

func (s Static) Timeline(context.Context) (Timeline, error) {
	today := core.Date{}
	if s.Now != nil {
		today = s.Now()
	}
	return NewTimeline(s.Intervals, today), nil
}
