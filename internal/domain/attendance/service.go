package attendance

import (
	"context"
)

// ReconciliationService is the single entry point for recomputing
// attendance from raw scans. Manual admin triggers and the automatic
// post-ingestion pipeline both go through Reprocess, so both observe the
// same idempotency and admin-verification rules.
type ReconciliationService interface {
	// Reprocess recomputes attendance for the requested employees and
	// date range and upserts the results. Re-running with identical
	// inputs converges: the second run rewrites the same values and
	// never duplicates a row.
	Reprocess(ctx context.Context, req ReprocessRequest) (ReprocessResult, error)
}
