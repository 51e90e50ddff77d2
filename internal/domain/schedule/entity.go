package schedule

import (
	"time"
)

// ShiftWindow is the expected work period for one employee on one
// reference date. ScheduledIn and ScheduledOut are absolute instants:
// the provider has already rolled ScheduledOut into the next calendar
// day for graveyard shifts, so ScheduledOut is always after ScheduledIn.
type ShiftWindow struct {
	EmployeeID         string
	Date               time.Time // reference date, midnight site-local
	ScheduledIn        time.Time
	ScheduledOut       time.Time
	GracePeriodMinutes int
	RestDay            bool
}

// Overnight reports whether the window crosses midnight into Date+1.
func (w ShiftWindow) Overnight() bool {
	return !w.RestDay && w.ScheduledOut.YearDay() != w.ScheduledIn.YearDay()
}

// Duration is the scheduled length of the shift.
func (w ShiftWindow) Duration() time.Duration {
	if w.RestDay {
		return 0
	}
	return w.ScheduledOut.Sub(w.ScheduledIn)
}

// GraceLimit is the last instant a punch-in still counts as on time.
func (w ShiftWindow) GraceLimit() time.Time {
	return w.ScheduledIn.Add(time.Duration(w.GracePeriodMinutes) * time.Minute)
}

// MatchInterval is the span of punches this window may claim:
// [ScheduledIn - grace, ScheduledOut + tail]. For overnight windows it
// spans the date boundary because ScheduledOut already does.
func (w ShiftWindow) MatchInterval(tail time.Duration) (time.Time, time.Time) {
	return w.ScheduledIn.Add(-time.Duration(w.GracePeriodMinutes) * time.Minute),
		w.ScheduledOut.Add(tail)
}

// Contains reports whether ts falls inside the match interval.
func (w ShiftWindow) Contains(ts time.Time, tail time.Duration) bool {
	lo, hi := w.MatchInterval(tail)
	return !ts.Before(lo) && !ts.After(hi)
}
