package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
	"github.com/shiftsync/attendance-engine/internal/pkg/database"
)

// shiftAssignment is one row of the assignment/shift join, effective for
// a contiguous span of dates.
type shiftAssignment struct {
	effectiveFrom time.Time
	effectiveTo   *time.Time
	clockIn       time.Time // time-of-day only
	clockOut      time.Time // time-of-day only
	graceMinutes  int
	workDays      []int32 // weekdays scheduled, 0 = Sunday
}

type scheduleProvider struct {
	db  *database.DB
	loc *time.Location
}

// NewScheduleProvider builds a schedule.Provider over the assignment and
// shift-definition tables. loc is the site-local timezone the scheduled
// instants are composed in.
func NewScheduleProvider(db *database.DB, loc *time.Location) schedule.Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &scheduleProvider{db: db, loc: loc}
}

// ResolveWindows implements schedule.Provider. The assignment rows for
// the whole range are loaded once; the per-date expansion happens in
// memory, so a months-long reprocess issues one query per employee.
func (p *scheduleProvider) ResolveWindows(ctx context.Context, employeeID string, from, to time.Time) ([]schedule.ShiftWindow, error) {
	q := GetQuerier(ctx, p.db)

	query := `
		SELECT a.effective_from, a.effective_to,
			   s.clock_in, s.clock_out, s.grace_period_minutes, s.work_days
		FROM employee_shift_assignments a
		JOIN work_shifts s ON s.id = a.shift_id
		WHERE a.employee_id = $1
		  AND a.effective_from <= $3
		  AND (a.effective_to IS NULL OR a.effective_to >= $2)
		ORDER BY a.effective_from ASC
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift assignments: %w", err)
	}
	defer rows.Close()

	var assignments []shiftAssignment
	for rows.Next() {
		var a shiftAssignment
		if err := rows.Scan(&a.effectiveFrom, &a.effectiveTo, &a.clockIn, &a.clockOut, &a.graceMinutes, &a.workDays); err != nil {
			return nil, fmt.Errorf("failed to scan shift assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shift assignments: %w", err)
	}

	var windows []schedule.ShiftWindow
	for date := p.dayStart(from); !date.After(to); date = date.AddDate(0, 0, 1) {
		a, ok := assignmentFor(assignments, date)
		if !ok {
			// No schedule defined for this date; the grouper surfaces
			// punches found here as manual-review instances.
			continue
		}
		windows = append(windows, p.window(employeeID, date, a))
	}
	return windows, nil
}

// assignmentFor picks the assignment covering date; when spans overlap
// the latest effective_from wins, matching how amendments supersede the
// original assignment.
func assignmentFor(assignments []shiftAssignment, date time.Time) (shiftAssignment, bool) {
	var picked shiftAssignment
	found := false
	for _, a := range assignments {
		if date.Before(a.effectiveFrom) {
			continue
		}
		if a.effectiveTo != nil && date.After(*a.effectiveTo) {
			continue
		}
		picked = a // assignments are ordered by effective_from
		found = true
	}
	return picked, found
}

func (p *scheduleProvider) window(employeeID string, date time.Time, a shiftAssignment) schedule.ShiftWindow {
	w := schedule.ShiftWindow{
		EmployeeID:         employeeID,
		Date:               date,
		GracePeriodMinutes: a.graceMinutes,
		RestDay:            !scheduledDay(a.workDays, date.Weekday()),
	}
	if w.RestDay {
		return w
	}

	w.ScheduledIn = time.Date(date.Year(), date.Month(), date.Day(),
		a.clockIn.Hour(), a.clockIn.Minute(), 0, 0, p.loc)
	w.ScheduledOut = time.Date(date.Year(), date.Month(), date.Day(),
		a.clockOut.Hour(), a.clockOut.Minute(), 0, 0, p.loc)
	// Clock-out at or before clock-in means the shift crosses midnight.
	if !w.ScheduledOut.After(w.ScheduledIn) {
		w.ScheduledOut = w.ScheduledOut.AddDate(0, 0, 1)
	}
	return w
}

func scheduledDay(workDays []int32, day time.Weekday) bool {
	for _, d := range workDays {
		if int(d) == int(day) {
			return true
		}
	}
	return false
}

func (p *scheduleProvider) dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}
