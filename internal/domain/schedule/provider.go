package schedule

import (
	"context"
	"time"
)

// Provider resolves the applicable shift windows for an employee over a
// date range. One entry is returned per scheduled date; rest days come
// back with RestDay set, and dates with no assignment at all are simply
// absent from the result (the processor routes those to manual review
// when punches exist on them).
type Provider interface {
	ResolveWindows(ctx context.Context, employeeID string, from, to time.Time) ([]ShiftWindow, error)
}
