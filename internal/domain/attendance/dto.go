package attendance

import (
	"fmt"
	"time"
)

// ReprocessRequest describes one reconciliation run. From/To are
// inclusive reference dates (midnight-truncated). An empty EmployeeIDs
// slice means every active employee in the directory.
type ReprocessRequest struct {
	EmployeeIDs []string
	From        time.Time
	To          time.Time
	DryRun      bool
	Force       bool
}

// Validate checks the request shape without touching storage.
func (r ReprocessRequest) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("reprocess range: %w", ErrInvalidDateRange)
	}
	if r.From.After(r.To) {
		return fmt.Errorf("reprocess range %s..%s: %w",
			r.From.Format("2006-01-02"), r.To.Format("2006-01-02"), ErrInvalidDateRange)
	}
	return nil
}

// EmployeeError is one employee's failure inside a batch. The batch
// itself still completes.
type EmployeeError struct {
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
}

func (e EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %s", e.EmployeeID, e.Message)
}

// ReprocessResult is the per-run summary handed to the caller and to the
// notification/reporting side.
type ReprocessResult struct {
	RunID      string          `json:"run_id"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	DryRun     bool            `json:"dry_run"`
	Processed  int             `json:"processed"`
	Upserted   int             `json:"upserted"`
	Skipped    int             `json:"skipped"`
	Unmatched  int             `json:"unmatched"`
	Unresolved []string        `json:"unresolved,omitempty"`
	Errors     []EmployeeError `json:"errors,omitempty"`
	Duration   string          `json:"duration"`
}
