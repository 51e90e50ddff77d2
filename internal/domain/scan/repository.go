package scan

import (
	"context"
	"time"
)

// ScanRepository defines data access for raw biometric punches. The store
// is append-only: bulk ingestion plus employee resolution are the only
// writes, and neither ever touches a timestamp.
type ScanRepository interface {
	// BulkInsert stores a batch of raw scans, silently skipping rows that
	// duplicate an already-ingested (raw_name, timestamp, site) tuple.
	// Returns the number of rows actually inserted.
	BulkInsert(ctx context.Context, records []Record) (int, error)

	// ListByEmployee returns the employee's resolved scans inside
	// [from, to), ordered by timestamp ascending. The upper bound is
	// widened by the caller when overnight windows spill past the range.
	ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]Record, error)

	// ListUnresolved returns scans in range whose employee has not been
	// resolved yet, ordered by timestamp ascending.
	ListUnresolved(ctx context.Context, from, to time.Time) ([]Record, error)

	// ResolveEmployee binds every unresolved scan carrying rawName to the
	// given employee. Returns the number of scans bound.
	ResolveEmployee(ctx context.Context, rawName string, employeeID string) (int, error)
}
