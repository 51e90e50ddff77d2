package attendance

import (
	"context"
	"time"
)

// UpsertOutcome describes what a guarded upsert actually did.
type UpsertOutcome int

const (
	// UpsertWritten means the row was inserted or updated.
	UpsertWritten UpsertOutcome = iota
	// UpsertProtected means an admin-verified row blocked the write.
	UpsertProtected
)

// AttendanceRepository persists determinations keyed by
// (employee_id, shift_date). The uniqueness constraint lives in the
// storage layer so two concurrent reprocess runs over overlapping ranges
// can never duplicate a row.
type AttendanceRepository interface {
	// Upsert inserts or updates the row for (att.EmployeeID,
	// att.ShiftDate). Unless force is set, an existing row with
	// admin_verified = true is left byte-identical and UpsertProtected is
	// returned; the guard is part of the statement itself, so the
	// read-then-write race cannot bypass it.
	Upsert(ctx context.Context, att Attendance, force bool) (UpsertOutcome, error)

	// GetByEmployeeAndDate retrieves the row for one shift date.
	GetByEmployeeAndDate(ctx context.Context, employeeID string, shiftDate time.Time) (Attendance, error)

	// ListByEmployee returns rows with ShiftDate in [from, to], ordered
	// by shift date ascending.
	ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]Attendance, error)
}
