package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
)

// ReconcileJobs wires the automatic reconciliation passes. They enter
// the engine through the same ReconciliationService boundary as manual
// triggers, so the idempotency and admin-verification rules are shared.
type ReconcileJobs struct {
	reconciler attendance.ReconciliationService
	loc        *time.Location
}

func NewReconcileJobs(reconciler attendance.ReconciliationService, loc *time.Location) *ReconcileJobs {
	if loc == nil {
		loc = time.UTC
	}
	return &ReconcileJobs{reconciler: reconciler, loc: loc}
}

func (j *ReconcileJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("reconcile_yesterday", 1*time.Hour, j.ReconcileYesterday)
}

// ReconcileYesterday recomputes the previous site-local day for every
// active employee, picking up punches that arrived after midnight and
// closing out overnight shifts that started two nights ago.
func (j *ReconcileJobs) ReconcileYesterday(ctx context.Context) error {
	// Only run in the first hour after site-local midnight.
	if time.Now().In(j.loc).Hour() != 1 {
		return nil
	}

	yesterday := time.Now().In(j.loc).AddDate(0, 0, -1)
	dayBefore := yesterday.AddDate(0, 0, -1)

	slog.Info("Cron: Starting nightly reconciliation",
		"from", dayBefore.Format("2006-01-02"),
		"to", yesterday.Format("2006-01-02"))

	result, err := j.reconciler.Reprocess(ctx, attendance.ReprocessRequest{
		From: dayBefore,
		To:   yesterday,
	})
	if err != nil {
		return fmt.Errorf("nightly reconciliation failed: %w", err)
	}

	slog.Info("Cron: Nightly reconciliation finished",
		"run_id", result.RunID,
		"processed", result.Processed,
		"upserted", result.Upserted,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	return nil
}
