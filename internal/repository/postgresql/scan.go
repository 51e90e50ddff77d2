package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shiftsync/attendance-engine/internal/domain/scan"
	"github.com/shiftsync/attendance-engine/internal/pkg/database"
)

type scanRepository struct {
	db *database.DB
}

func NewScanRepository(db *database.DB) scan.ScanRepository {
	return &scanRepository{db: db}
}

// BulkInsert implements scan.ScanRepository. Rows duplicating an already
// ingested (raw_name, ts, site_id) tuple are skipped, so overlapping
// uploads of the same device export converge to one scan per punch.
func (r *scanRepository) BulkInsert(ctx context.Context, records []scan.Record) (int, error) {
	q := GetQuerier(ctx, r.db)

	inserted := 0
	for _, rec := range records {
		if rec.RawName == "" || rec.Timestamp.IsZero() {
			return inserted, fmt.Errorf("bulk insert: %w", scan.ErrInvalidScanRecord)
		}
		tag, err := q.Exec(ctx, `
			INSERT INTO biometric_scans (raw_name, site_id, ts)
			VALUES ($1, $2, $3)
			ON CONFLICT (raw_name, ts, site_id) DO NOTHING
		`, rec.RawName, rec.SiteID, rec.Timestamp)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert scan: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListByEmployee implements scan.ScanRepository.
func (r *scanRepository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]scan.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, raw_name, employee_id, site_id, ts, created_at
		FROM biometric_scans
		WHERE employee_id = $1
		  AND ts >= $2
		  AND ts < $3
		ORDER BY ts ASC
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans by employee: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListUnresolved implements scan.ScanRepository.
func (r *scanRepository) ListUnresolved(ctx context.Context, from, to time.Time) ([]scan.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, raw_name, employee_id, site_id, ts, created_at
		FROM biometric_scans
		WHERE employee_id IS NULL
		  AND ts >= $1
		  AND ts < $2
		ORDER BY ts ASC
	`

	rows, err := q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved scans: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ResolveEmployee implements scan.ScanRepository. Only the employee
// binding is written; timestamps are immutable once ingested.
func (r *scanRepository) ResolveEmployee(ctx context.Context, rawName string, employeeID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE biometric_scans
		SET employee_id = $2
		WHERE raw_name = $1
		  AND employee_id IS NULL
	`, rawName, employeeID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve scans for %q: %w", rawName, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRows(rows pgx.Rows) ([]scan.Record, error) {
	var records []scan.Record
	for rows.Next() {
		var rec scan.Record
		if err := rows.Scan(&rec.ID, &rec.RawName, &rec.EmployeeID, &rec.SiteID, &rec.Timestamp, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan biometric scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate biometric scan rows: %w", err)
	}
	return records, nil
}
