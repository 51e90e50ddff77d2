package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/shiftsync/attendance-engine/internal/pkg/database"
	"github.com/shiftsync/attendance-engine/internal/service/evaluator"
	"github.com/shiftsync/attendance-engine/internal/service/reconcile"
)

type advisoryRepository struct {
	db  *database.DB
	loc *time.Location
}

// NewAdvisoryRepository reads the externally maintained absence
// advisories (pre-notified absences, admin "present without bio" marks)
// the evaluator folds into its determination.
func NewAdvisoryRepository(db *database.DB, loc *time.Location) reconcile.AdvisoryProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &advisoryRepository{db: db, loc: loc}
}

// Advisories implements reconcile.AdvisoryProvider.
func (r *advisoryRepository) Advisories(ctx context.Context, employeeID string, from, to time.Time) (map[time.Time]evaluator.Flags, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT advisory_date, kind
		FROM absence_advisories
		WHERE employee_id = $1
		  AND advisory_date >= $2
		  AND advisory_date <= $3
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query advisories: %w", err)
	}
	defer rows.Close()

	flags := make(map[time.Time]evaluator.Flags)
	for rows.Next() {
		var date time.Time
		var kind string
		if err := rows.Scan(&date, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan advisory row: %w", err)
		}
		day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
		f := flags[day]
		switch kind {
		case "advised":
			f.Advised = true
		case "present_no_bio":
			f.PresentNoBio = true
		}
		flags[day] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advisory rows: %w", err)
	}
	return flags, nil
}
