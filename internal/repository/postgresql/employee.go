package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shiftsync/attendance-engine/internal/domain/employee"
	"github.com/shiftsync/attendance-engine/internal/pkg/database"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepository{db: db}
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, full_name, normalized_name, site_id, active, created_at, updated_at
		FROM employees
		WHERE id = $1
	`

	var emp employee.Employee
	err := q.QueryRow(ctx, query, id).Scan(
		&emp.ID, &emp.FullName, &emp.NormalizedName, &emp.SiteID, &emp.Active,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by id: %w", err)
	}
	return emp, nil
}

// GetByNormalizedName implements employee.EmployeeRepository.
func (r *employeeRepository) GetByNormalizedName(ctx context.Context, key string) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, full_name, normalized_name, site_id, active, created_at, updated_at
		FROM employees
		WHERE normalized_name = $1
		  AND active = TRUE
		LIMIT 1
	`

	var emp employee.Employee
	err := q.QueryRow(ctx, query, key).Scan(
		&emp.ID, &emp.FullName, &emp.NormalizedName, &emp.SiteID, &emp.Active,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by normalized name: %w", err)
	}
	return emp, nil
}

// ListActiveIDs implements employee.EmployeeRepository.
func (r *employeeRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id FROM employees
		WHERE active = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employee ids: %w", err)
	}
	return ids, nil
}
