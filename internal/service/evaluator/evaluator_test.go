package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/scan"
	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
	"github.com/shiftsync/attendance-engine/internal/service/grouper"
)

// nineToSix is the baseline window for these tests: 2026-06-01 09:00 to
// 18:00 with a 15 minute grace period.
func nineToSix(t *testing.T) schedule.ShiftWindow {
	t.Helper()
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return schedule.ShiftWindow{
		EmployeeID:         "emp-001",
		Date:               day,
		ScheduledIn:        day.Add(9 * time.Hour),
		ScheduledOut:       day.Add(18 * time.Hour),
		GracePeriodMinutes: 15,
	}
}

func punch(ts time.Time, site string) *scan.Record {
	return &scan.Record{RawName: "DELA CRUZ, JUAN", SiteID: site, Timestamp: ts}
}

func instance(w schedule.ShiftWindow, in, out *scan.Record) grouper.ShiftInstance {
	return grouper.ShiftInstance{
		EmployeeID: w.EmployeeID,
		Date:       w.Date,
		Window:     w,
		TimeIn:     in,
		TimeOut:    out,
	}
}

func TestEvaluator_Evaluate_OnTime(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w,
		punch(w.ScheduledIn.Add(-5*time.Minute), "site-a"),
		punch(w.ScheduledOut, "site-a"))

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.Equal(t, 0, det.TardyMinutes)
	assert.Equal(t, 0, det.UndertimeMinutes)
	assert.Equal(t, 0, det.OvertimeMinutes)
	require.NotNil(t, det.ActualIn)
	require.NotNil(t, det.ActualOut)
	assert.False(t, det.CrossSite)
	assert.Empty(t, det.Warnings)
}

func TestEvaluator_Evaluate_GraceBoundary(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)

	// Arriving exactly at the grace limit is still on time.
	atLimit := instance(w, punch(w.GraceLimit(), "site-a"), punch(w.ScheduledOut, "site-a"))
	det := e.Evaluate(atLimit, Flags{})
	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.Equal(t, 0, det.TardyMinutes)

	// One minute past it is tardy by one minute.
	pastLimit := instance(w, punch(w.GraceLimit().Add(time.Minute), "site-a"), punch(w.ScheduledOut, "site-a"))
	det = e.Evaluate(pastLimit, Flags{})
	assert.Equal(t, attendance.StatusTardy, det.Status)
	assert.Equal(t, 1, det.TardyMinutes)
}

func TestEvaluator_Evaluate_UndertimeThreshold(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)

	// Leaving exactly one hour early is plain undertime.
	hourEarly := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut.Add(-time.Hour), "site-a"))
	det := e.Evaluate(hourEarly, Flags{})
	assert.Equal(t, attendance.StatusUndertime, det.Status)
	assert.Equal(t, 60, det.UndertimeMinutes)

	// One more minute crosses the threshold.
	moreThanHour := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut.Add(-61*time.Minute), "site-a"))
	det = e.Evaluate(moreThanHour, Flags{})
	assert.Equal(t, attendance.StatusUndertimeOverHour, det.Status)
	assert.Equal(t, 61, det.UndertimeMinutes)
}

func TestEvaluator_Evaluate_TardyWinsOverUndertime(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w,
		punch(w.ScheduledIn.Add(30*time.Minute), "site-a"),
		punch(w.ScheduledOut.Add(-2*time.Hour), "site-a"))

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusTardy, det.Status)
	assert.Equal(t, 15, det.TardyMinutes)
	assert.Equal(t, 120, det.UndertimeMinutes)
}

func TestEvaluator_Evaluate_OvertimeStaysOnTime(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut.Add(95*time.Minute), "site-a"))

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.Equal(t, 95, det.OvertimeMinutes)
	assert.Equal(t, 0, det.UndertimeMinutes)
}

func TestEvaluator_Evaluate_NoScans(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)

	det := e.Evaluate(instance(w, nil, nil), Flags{})
	assert.Equal(t, attendance.StatusNCNS, det.Status)

	det = e.Evaluate(instance(w, nil, nil), Flags{Advised: true})
	assert.Equal(t, attendance.StatusAdvisedAbsence, det.Status)

	det = e.Evaluate(instance(w, nil, nil), Flags{PresentNoBio: true})
	assert.Equal(t, attendance.StatusPresentNoBio, det.Status)

	// A pre-notified absence outranks an admin presence marker.
	det = e.Evaluate(instance(w, nil, nil), Flags{Advised: true, PresentNoBio: true})
	assert.Equal(t, attendance.StatusAdvisedAbsence, det.Status)
}

func TestEvaluator_Evaluate_MissingClockOut(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)

	// Early enough arrival leaves most of the shift coverable.
	early := instance(w, punch(w.ScheduledIn.Add(5*time.Minute), "site-a"), nil)
	det := e.Evaluate(early, Flags{})
	assert.Equal(t, attendance.StatusFailedBioOut, det.Status)
	assert.Contains(t, det.Warnings, "no clock-out punch recorded")

	// Arriving at 14:30 leaves only 3.5 of 9 scheduled hours, under the
	// half-day fraction.
	late := instance(w, punch(w.ScheduledIn.Add(5*time.Hour+30*time.Minute), "site-a"), nil)
	det = e.Evaluate(late, Flags{})
	assert.Equal(t, attendance.StatusHalfDayAbsence, det.Status)
	assert.Equal(t, 315, det.TardyMinutes)
}

func TestEvaluator_Evaluate_MissingClockIn(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)

	fullDay := instance(w, nil, punch(w.ScheduledOut.Add(5*time.Minute), "site-a"))
	det := e.Evaluate(fullDay, Flags{})
	assert.Equal(t, attendance.StatusFailedBioIn, det.Status)
	assert.Contains(t, det.Warnings, "no clock-in punch recorded")
	assert.Equal(t, 5, det.OvertimeMinutes)

	// A lone punch-out at noon bounds the worked time to three hours.
	noon := instance(w, nil, punch(w.ScheduledIn.Add(3*time.Hour), "site-a"))
	det = e.Evaluate(noon, Flags{})
	assert.Equal(t, attendance.StatusHalfDayAbsence, det.Status)
	assert.Equal(t, 360, det.UndertimeMinutes)
}

func TestEvaluator_Evaluate_CrossSitePunches(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut, "site-b"))

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.True(t, det.CrossSite)
	require.NotEmpty(t, det.Warnings)
	assert.Contains(t, det.Warnings[0], "cross-site")
}

func TestEvaluator_Evaluate_ReviewReasonsWin(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut, "site-a"))
	inst.ReviewReasons = []string{"scan claim tied with an adjacent window around 2026-06-01 09:00"}

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusNeedsManualReview, det.Status)
	assert.Contains(t, det.Warnings, inst.ReviewReasons[0])
}

func TestEvaluator_Evaluate_RestDay(t *testing.T) {
	e := New(Default())
	day := time.Date(2026, 6, 7, 0, 0, 0, 0, time.UTC)
	inst := grouper.ShiftInstance{
		EmployeeID: "emp-001",
		Date:       day,
		Window:     schedule.ShiftWindow{EmployeeID: "emp-001", Date: day, RestDay: true},
	}

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusNonWorkDay, det.Status)
	assert.Nil(t, det.ScheduledIn)
	assert.Nil(t, det.ScheduledOut)
}

func TestEvaluator_Evaluate_OvernightShift(t *testing.T) {
	e := New(Default())
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	w := schedule.ShiftWindow{
		EmployeeID:         "emp-001",
		Date:               day,
		ScheduledIn:        day.Add(22 * time.Hour),
		ScheduledOut:       day.Add(30 * time.Hour), // 06:00 next day
		GracePeriodMinutes: 15,
	}
	inst := instance(w,
		punch(w.ScheduledIn.Add(-2*time.Minute), "site-a"),
		punch(w.ScheduledOut.Add(10*time.Minute), "site-a"))

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.Equal(t, 10, det.OvertimeMinutes)
	assert.Equal(t, "2026-06-01", det.ShiftDate.Format("2006-01-02"))
}

// TestEvaluator_GroupedDayShift runs the grouper and evaluator together
// over a plain 08:00–17:00 shift with a 10 minute grace period.
func TestEvaluator_GroupedDayShift(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := schedule.ShiftWindow{
		EmployeeID:         "emp-001",
		Date:               day,
		ScheduledIn:        day.Add(8 * time.Hour),
		ScheduledOut:       day.Add(17 * time.Hour),
		GracePeriodMinutes: 10,
	}
	g := grouper.New(grouper.Params{})
	e := New(Default())

	// Punches at 08:05 and 17:02 are a clean on-time day.
	scans := []scan.Record{
		*punch(day.Add(8*time.Hour+5*time.Minute), "site-a"),
		*punch(day.Add(17*time.Hour+2*time.Minute), "site-a"),
	}
	grouped := g.Group("emp-001", []schedule.ShiftWindow{w}, scans)
	require.Len(t, grouped.Instances, 1)

	det := e.Evaluate(grouped.Instances[0], Flags{})
	assert.Equal(t, "2024-03-01", det.ShiftDate.Format("2006-01-02"))
	assert.Equal(t, attendance.StatusOnTime, det.Status)
	assert.Equal(t, 0, det.TardyMinutes)
	assert.Equal(t, 0, det.UndertimeMinutes)

	// Leaving at 16:00 instead is an hour of undertime.
	scans = []scan.Record{
		*punch(day.Add(8*time.Hour), "site-a"),
		*punch(day.Add(16*time.Hour), "site-a"),
	}
	grouped = g.Group("emp-001", []schedule.ShiftWindow{w}, scans)
	require.Len(t, grouped.Instances, 1)

	det = e.Evaluate(grouped.Instances[0], Flags{})
	assert.Equal(t, attendance.StatusUndertime, det.Status)
	assert.Equal(t, 60, det.UndertimeMinutes)
}

func TestEvaluator_Evaluate_ExtraScansWarn(t *testing.T) {
	e := New(Default())
	w := nineToSix(t)
	inst := instance(w, punch(w.ScheduledIn, "site-a"), punch(w.ScheduledOut, "site-a"))
	mid := punch(w.ScheduledIn.Add(4*time.Hour), "site-a")
	inst.Extra = []scan.Record{*mid}

	det := e.Evaluate(inst, Flags{})

	assert.Equal(t, attendance.StatusOnTime, det.Status)
	require.Len(t, det.Warnings, 1)
	assert.Contains(t, det.Warnings[0], "surplus scan")
}
