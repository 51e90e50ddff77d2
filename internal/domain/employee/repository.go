package employee

import (
	"context"
)

// EmployeeRepository is the directory the engine joins device names
// against. NormalizedName is the namekey form of FullName and is the
// only matching key; raw device strings never reach these queries.
type EmployeeRepository interface {
	// GetByID retrieves a single employee.
	GetByID(ctx context.Context, id string) (Employee, error)

	// GetByNormalizedName retrieves the employee whose directory name
	// normalizes to key. Returns ErrEmployeeNotFound when no directory
	// entry matches.
	GetByNormalizedName(ctx context.Context, key string) (Employee, error)

	// ListActiveIDs returns the IDs of all active employees.
	ListActiveIDs(ctx context.Context) ([]string, error)
}
