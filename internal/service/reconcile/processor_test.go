package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/employee"
	"github.com/shiftsync/attendance-engine/internal/domain/scan"
	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
	"github.com/shiftsync/attendance-engine/internal/service/evaluator"
	"github.com/shiftsync/attendance-engine/internal/service/grouper"
)

type fakeScanRepo struct {
	mu    sync.Mutex
	scans []scan.Record
}

func (r *fakeScanRepo) BulkInsert(_ context.Context, records []scan.Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, records...)
	return len(records), nil
}

func (r *fakeScanRepo) ListByEmployee(_ context.Context, employeeID string, from, to time.Time) ([]scan.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scan.Record
	for _, s := range r.scans {
		if s.EmployeeID == nil || *s.EmployeeID != employeeID {
			continue
		}
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeScanRepo) ListUnresolved(_ context.Context, from, to time.Time) ([]scan.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scan.Record
	for _, s := range r.scans {
		if s.EmployeeID != nil {
			continue
		}
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeScanRepo) ResolveEmployee(_ context.Context, rawName, employeeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.scans {
		if r.scans[i].EmployeeID == nil && r.scans[i].RawName == rawName {
			id := employeeID
			r.scans[i].EmployeeID = &id
			n++
		}
	}
	return n, nil
}

type fakeEmployeeRepo struct {
	employees []employee.Employee
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (employee.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) GetByNormalizedName(_ context.Context, key string) (employee.Employee, error) {
	for _, e := range r.employees {
		if e.NormalizedName == key && e.Active {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *fakeEmployeeRepo) ListActiveIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, e := range r.employees {
		if e.Active {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

type fakeScheduleProvider struct {
	windows map[string][]schedule.ShiftWindow
	failFor string
}

func (p *fakeScheduleProvider) ResolveWindows(_ context.Context, employeeID string, from, to time.Time) ([]schedule.ShiftWindow, error) {
	if employeeID == p.failFor {
		return nil, fmt.Errorf("schedule backend unavailable")
	}
	var out []schedule.ShiftWindow
	for _, w := range p.windows[employeeID] {
		if w.Date.Before(from) || w.Date.After(to) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

type fakeAttendanceRepo struct {
	mu   sync.Mutex
	rows map[string]attendance.Attendance
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{rows: make(map[string]attendance.Attendance)}
}

func rowKey(employeeID string, shiftDate time.Time) string {
	return employeeID + "|" + shiftDate.Format("2006-01-02")
}

func (r *fakeAttendanceRepo) Upsert(_ context.Context, att attendance.Attendance, force bool) (attendance.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rowKey(att.EmployeeID, att.ShiftDate)
	if existing, ok := r.rows[key]; ok && existing.AdminVerified && !force {
		return attendance.UpsertProtected, nil
	}
	r.rows[key] = att
	return attendance.UpsertWritten, nil
}

func (r *fakeAttendanceRepo) GetByEmployeeAndDate(_ context.Context, employeeID string, shiftDate time.Time) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.rows[rowKey(employeeID, shiftDate)]
	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}
	return att, nil
}

func (r *fakeAttendanceRepo) ListByEmployee(_ context.Context, employeeID string, from, to time.Time) ([]attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []attendance.Attendance
	for _, att := range r.rows {
		if att.EmployeeID == employeeID && !att.ShiftDate.Before(from) && !att.ShiftDate.After(to) {
			out = append(out, att)
		}
	}
	return out, nil
}

type fixture struct {
	scans      *fakeScanRepo
	employees  *fakeEmployeeRepo
	schedules  *fakeScheduleProvider
	attendance *fakeAttendanceRepo
}

var (
	day1 = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
)

func dayShift(employeeID string, day time.Time) schedule.ShiftWindow {
	return schedule.ShiftWindow{
		EmployeeID:         employeeID,
		Date:               day,
		ScheduledIn:        day.Add(9 * time.Hour),
		ScheduledOut:       day.Add(18 * time.Hour),
		GracePeriodMinutes: 15,
	}
}

func resolvedScan(employeeID, rawName string, ts time.Time) scan.Record {
	id := employeeID
	return scan.Record{RawName: rawName, EmployeeID: &id, SiteID: "site-a", Timestamp: ts}
}

func newFixture() *fixture {
	return &fixture{
		scans: &fakeScanRepo{},
		employees: &fakeEmployeeRepo{employees: []employee.Employee{
			{ID: "emp-001", FullName: "Juan dela Cruz", NormalizedName: "juan dela cruz", Active: true},
			{ID: "emp-002", FullName: "José Ramírez", NormalizedName: "jose ramirez", Active: true},
		}},
		schedules:  &fakeScheduleProvider{windows: map[string][]schedule.ShiftWindow{}},
		attendance: newFakeAttendanceRepo(),
	}
}

func (f *fixture) processor() attendance.ReconciliationService {
	return NewProcessor(
		f.scans,
		f.employees,
		f.schedules,
		f.attendance,
		nil,
		grouper.New(grouper.Params{}),
		evaluator.New(evaluator.Default()),
		nil,
		2,
		grouper.DefaultTailWindow,
	)
}

func TestProcessor_Reprocess_WritesDeterminations(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{dayShift("emp-001", day1)}
	f.scans.scans = []scan.Record{
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(8*time.Hour+55*time.Minute)),
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(18*time.Hour+2*time.Minute)),
	}

	result, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-001"}, From: day1, To: day1,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 0, result.Skipped)
	assert.NotEmpty(t, result.RunID)

	row, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-001", day1)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOnTime, row.Status)
}

func TestProcessor_Reprocess_Idempotent(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{
		dayShift("emp-001", day1),
		dayShift("emp-001", day2),
	}
	f.scans.scans = []scan.Record{
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(9*time.Hour+30*time.Minute)),
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(18*time.Hour)),
	}
	req := attendance.ReprocessRequest{EmployeeIDs: []string{"emp-001"}, From: day1, To: day2}
	p := f.processor()

	first, err := p.Reprocess(context.Background(), req)
	require.NoError(t, err)
	afterFirst := make(map[string]attendance.Attendance, len(f.attendance.rows))
	for k, v := range f.attendance.rows {
		afterFirst[k] = v
	}

	second, err := p.Reprocess(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.Upserted, second.Upserted)
	require.Len(t, f.attendance.rows, len(afterFirst))
	for k, v := range afterFirst {
		assert.Equal(t, v, f.attendance.rows[k])
	}

	// Day one is tardy, day two has no punches at all.
	tardy, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-001", day1)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusTardy, tardy.Status)
	ncns, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-001", day2)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNCNS, ncns.Status)
}

func TestProcessor_Reprocess_AdminVerifiedGuard(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{dayShift("emp-001", day1)}
	f.attendance.rows[rowKey("emp-001", day1)] = attendance.Attendance{
		EmployeeID:    "emp-001",
		ShiftDate:     day1,
		Status:        attendance.StatusPresentNoBio,
		AdminVerified: true,
	}
	p := f.processor()

	result, err := p.Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-001"}, From: day1, To: day1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Upserted)
	assert.Equal(t, 1, result.Skipped)

	kept, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-001", day1)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresentNoBio, kept.Status)
	assert.True(t, kept.AdminVerified)

	// Force drops the guard and the computed row replaces the manual one.
	result, err = p.Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-001"}, From: day1, To: day1, Force: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 0, result.Skipped)

	replaced, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-001", day1)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNCNS, replaced.Status)
}

func TestProcessor_Reprocess_DryRunWritesNothing(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{dayShift("emp-001", day1)}
	f.scans.scans = []scan.Record{
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(9*time.Hour)),
		resolvedScan("emp-001", "DELA CRUZ, JUAN", day1.Add(18*time.Hour)),
	}

	result, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-001"}, From: day1, To: day1, DryRun: true,
	})

	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Upserted)
	assert.Empty(t, f.attendance.rows)
}

func TestProcessor_Reprocess_MatchesScanNames(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-002"] = []schedule.ShiftWindow{dayShift("emp-002", day1)}
	f.scans.scans = []scan.Record{
		// Accented device spelling must still bind to the directory entry.
		{RawName: "JOSÉ RAMÍREZ", SiteID: "site-a", Timestamp: day1.Add(9 * time.Hour)},
		{RawName: "JOSÉ RAMÍREZ", SiteID: "site-a", Timestamp: day1.Add(18 * time.Hour)},
		{RawName: "UNKNOWN PERSON", SiteID: "site-a", Timestamp: day1.Add(10 * time.Hour)},
	}

	result, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-002"}, From: day1, To: day1,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"UNKNOWN PERSON"}, result.Unresolved)
	assert.Equal(t, 1, result.Upserted)

	row, err := f.attendance.GetByEmployeeAndDate(context.Background(), "emp-002", day1)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOnTime, row.Status)
}

func TestProcessor_Reprocess_PartialFailureCompletesBatch(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{dayShift("emp-001", day1)}
	f.schedules.windows["emp-002"] = []schedule.ShiftWindow{dayShift("emp-002", day1)}
	f.schedules.failFor = "emp-001"
	f.scans.scans = []scan.Record{
		resolvedScan("emp-002", "RAMIREZ, JOSE", day1.Add(9*time.Hour)),
		resolvedScan("emp-002", "RAMIREZ, JOSE", day1.Add(18*time.Hour)),
	}

	result, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		From: day1, To: day1,
	})

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "emp-001", result.Errors[0].EmployeeID)
	assert.Equal(t, 1, result.Upserted)

	_, err = f.attendance.GetByEmployeeAndDate(context.Background(), "emp-002", day1)
	assert.NoError(t, err)
}

func TestProcessor_Reprocess_UnknownEmployeeID(t *testing.T) {
	f := newFixture()

	result, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-999"}, From: day1, To: day1,
	})

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "emp-999", result.Errors[0].EmployeeID)
	assert.Contains(t, result.Errors[0].Message, "employee not found")
}

func TestProcessor_Reprocess_CanceledContext(t *testing.T) {
	f := newFixture()
	f.schedules.windows["emp-001"] = []schedule.ShiftWindow{dayShift("emp-001", day1)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.processor().Reprocess(ctx, attendance.ReprocessRequest{
		EmployeeIDs: []string{"emp-001"}, From: day1, To: day1,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, f.attendance.rows)
}

func TestProcessor_Reprocess_InvalidRange(t *testing.T) {
	f := newFixture()

	_, err := f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{
		From: day2, To: day1,
	})
	assert.ErrorIs(t, err, attendance.ErrInvalidDateRange)

	_, err = f.processor().Reprocess(context.Background(), attendance.ReprocessRequest{})
	assert.ErrorIs(t, err, attendance.ErrInvalidDateRange)
}
