package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/pkg/database"
)

const uniqueViolation = "23505"

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `
	id, employee_id, shift_date, scheduled_in, scheduled_out, actual_in, actual_out,
	status, tardy_minutes, undertime_minutes, overtime_minutes,
	site_in, site_out, cross_site, warnings, admin_verified, created_at, updated_at`

// Upsert implements attendance.AttendanceRepository. The admin
// verification guard is part of the conflict clause, so the check and
// the write are one statement and the read-then-decide race cannot
// overwrite a verified row.
func (r *attendanceRepository) Upsert(ctx context.Context, att attendance.Attendance, force bool) (attendance.UpsertOutcome, error) {
	q := GetQuerier(ctx, r.db)

	guard := "WHERE attendances.admin_verified = FALSE"
	if force {
		guard = ""
	}
	query := fmt.Sprintf(`
		INSERT INTO attendances (
			employee_id, shift_date, scheduled_in, scheduled_out, actual_in, actual_out,
			status, tardy_minutes, undertime_minutes, overtime_minutes,
			site_in, site_out, cross_site, warnings
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (employee_id, shift_date) DO UPDATE SET
			scheduled_in = EXCLUDED.scheduled_in,
			scheduled_out = EXCLUDED.scheduled_out,
			actual_in = EXCLUDED.actual_in,
			actual_out = EXCLUDED.actual_out,
			status = EXCLUDED.status,
			tardy_minutes = EXCLUDED.tardy_minutes,
			undertime_minutes = EXCLUDED.undertime_minutes,
			overtime_minutes = EXCLUDED.overtime_minutes,
			site_in = EXCLUDED.site_in,
			site_out = EXCLUDED.site_out,
			cross_site = EXCLUDED.cross_site,
			warnings = EXCLUDED.warnings,
			updated_at = NOW()
		%s
		RETURNING id
	`, guard)

	args := []interface{}{
		att.EmployeeID, att.ShiftDate, att.ScheduledIn, att.ScheduledOut,
		att.ActualIn, att.ActualOut, string(att.Status),
		att.TardyMinutes, att.UndertimeMinutes, att.OvertimeMinutes,
		att.SiteIn, att.SiteOut, att.CrossSite, att.Warnings,
	}

	var id string
	err := q.QueryRow(ctx, query, args...).Scan(&id)
	if err == nil {
		return attendance.UpsertWritten, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict hit a verified row and the guard suppressed the
		// update: the record is protected, not failed.
		return attendance.UpsertProtected, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		// Two workers raced the same (employee, date) key. Retry once as
		// an update-by-key; the row now exists, so the guarded update
		// either lands or reports the protected skip.
		return r.updateByKey(ctx, att, force)
	}
	return attendance.UpsertWritten, fmt.Errorf("failed to upsert attendance: %w", err)
}

func (r *attendanceRepository) updateByKey(ctx context.Context, att attendance.Attendance, force bool) (attendance.UpsertOutcome, error) {
	q := GetQuerier(ctx, r.db)

	guard := "AND admin_verified = FALSE"
	if force {
		guard = ""
	}
	query := fmt.Sprintf(`
		UPDATE attendances SET
			scheduled_in = $3, scheduled_out = $4, actual_in = $5, actual_out = $6,
			status = $7, tardy_minutes = $8, undertime_minutes = $9, overtime_minutes = $10,
			site_in = $11, site_out = $12, cross_site = $13, warnings = $14,
			updated_at = NOW()
		WHERE employee_id = $1 AND shift_date = $2 %s
	`, guard)

	tag, err := q.Exec(ctx, query,
		att.EmployeeID, att.ShiftDate, att.ScheduledIn, att.ScheduledOut,
		att.ActualIn, att.ActualOut, string(att.Status),
		att.TardyMinutes, att.UndertimeMinutes, att.OvertimeMinutes,
		att.SiteIn, att.SiteOut, att.CrossSite, att.Warnings,
	)
	if err != nil {
		return attendance.UpsertWritten, fmt.Errorf("update after conflict: %w", attendance.ErrPersistenceConflict)
	}
	if tag.RowsAffected() == 0 {
		if force {
			return attendance.UpsertWritten, fmt.Errorf("row vanished after conflict: %w", attendance.ErrPersistenceConflict)
		}
		return attendance.UpsertProtected, nil
	}
	return attendance.UpsertWritten, nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, shiftDate time.Time) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = $1 AND shift_date = $2
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, shiftDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by employee and date: %w", err)
	}
	return att, nil
}

// ListByEmployee implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT` + attendanceColumns + `
		FROM attendances
		WHERE employee_id = $1
		  AND shift_date >= $2
		  AND shift_date <= $3
		ORDER BY shift_date ASC
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	var atts []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		atts = append(atts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance rows: %w", err)
	}
	return atts, nil
}

func scanAttendance(row pgx.Row) (attendance.Attendance, error) {
	var att attendance.Attendance
	var status string
	err := row.Scan(
		&att.ID, &att.EmployeeID, &att.ShiftDate, &att.ScheduledIn, &att.ScheduledOut,
		&att.ActualIn, &att.ActualOut, &status,
		&att.TardyMinutes, &att.UndertimeMinutes, &att.OvertimeMinutes,
		&att.SiteIn, &att.SiteOut, &att.CrossSite, &att.Warnings,
		&att.AdminVerified, &att.CreatedAt, &att.UpdatedAt,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}
	att.Status = attendance.Status(status)
	return att, nil
}
