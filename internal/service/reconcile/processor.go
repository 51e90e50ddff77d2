// Package reconcile drives the full attendance pipeline — name matching,
// shift grouping, evaluation and idempotent persistence — over a set of
// employees and a date range.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/domain/employee"
	"github.com/shiftsync/attendance-engine/internal/domain/scan"
	"github.com/shiftsync/attendance-engine/internal/domain/schedule"
	"github.com/shiftsync/attendance-engine/internal/pkg/metrics"
	"github.com/shiftsync/attendance-engine/internal/pkg/namekey"
	"github.com/shiftsync/attendance-engine/internal/service/evaluator"
	"github.com/shiftsync/attendance-engine/internal/service/grouper"
)

// AdvisoryProvider supplies externally recorded absence advisories and
// present-without-bio markers per employee and date. A nil provider
// means no advisories exist.
type AdvisoryProvider interface {
	Advisories(ctx context.Context, employeeID string, from, to time.Time) (map[time.Time]evaluator.Flags, error)
}

type Processor struct {
	scanRepo       scan.ScanRepository
	employeeRepo   employee.EmployeeRepository
	schedules      schedule.Provider
	attendanceRepo attendance.AttendanceRepository
	advisories     AdvisoryProvider
	grouper        *grouper.Grouper
	evaluator      *evaluator.Evaluator
	metrics        *metrics.Metrics
	workers        int
	tail           time.Duration
}

func NewProcessor(
	scanRepo scan.ScanRepository,
	employeeRepo employee.EmployeeRepository,
	schedules schedule.Provider,
	attendanceRepo attendance.AttendanceRepository,
	advisories AdvisoryProvider,
	grp *grouper.Grouper,
	eval *evaluator.Evaluator,
	m *metrics.Metrics,
	workers int,
	tail time.Duration,
) attendance.ReconciliationService {
	if workers < 1 {
		workers = 1
	}
	if tail <= 0 {
		tail = grouper.DefaultTailWindow
	}
	return &Processor{
		scanRepo:       scanRepo,
		employeeRepo:   employeeRepo,
		schedules:      schedules,
		attendanceRepo: attendanceRepo,
		advisories:     advisories,
		grouper:        grp,
		evaluator:      eval,
		metrics:        m,
		workers:        workers,
		tail:           tail,
	}
}

type employeeStats struct {
	processed int
	upserted  int
	skipped   int
	unmatched int
}

// Reprocess implements attendance.ReconciliationService.
func (p *Processor) Reprocess(ctx context.Context, req attendance.ReprocessRequest) (attendance.ReprocessResult, error) {
	if err := req.Validate(); err != nil {
		return attendance.ReprocessResult{}, err
	}
	req.From = dayStart(req.From)
	req.To = dayStart(req.To)

	runID := uuid.NewString()
	start := time.Now()
	log := slog.With("run_id", runID, "from", req.From.Format("2006-01-02"),
		"to", req.To.Format("2006-01-02"), "dry_run", req.DryRun, "force", req.Force)
	log.Info("Reconciliation run started")

	result := attendance.ReprocessResult{
		RunID:  runID,
		From:   req.From.Format("2006-01-02"),
		To:     req.To.Format("2006-01-02"),
		DryRun: req.DryRun,
	}

	// Bind device names to employees first so the per-employee scan
	// queries below see everything the range contains. Unresolvable
	// names are anomalies, never fatal.
	unresolved, err := p.matchScanNames(ctx, req.From, req.To)
	if err != nil {
		return attendance.ReprocessResult{}, fmt.Errorf("failed to match scan names: %w", err)
	}
	result.Unresolved = unresolved

	employeeIDs := req.EmployeeIDs
	if len(employeeIDs) == 0 {
		employeeIDs, err = p.employeeRepo.ListActiveIDs(ctx)
		if err != nil {
			return attendance.ReprocessResult{}, fmt.Errorf("failed to list active employees: %w", err)
		}
	}

	var (
		mu       sync.Mutex
		empErrs  []attendance.EmployeeError
		canceled int
	)

	// Employees are independent units of work; fan them out. Per-employee
	// failures are collected, not propagated, so the group never cancels
	// and the batch always completes.
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, id := range employeeIDs {
		employeeID := id
		if ctx.Err() != nil {
			// Cooperative stop between employees only.
			mu.Lock()
			canceled++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			// An in-flight employee always finishes and persists
			// consistently, even when the run is being stopped.
			empCtx := context.WithoutCancel(ctx)
			stats, err := p.processEmployee(empCtx, req, employeeID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				empErrs = append(empErrs, attendance.EmployeeError{
					EmployeeID: employeeID,
					Message:    err.Error(),
				})
				return nil
			}
			result.Processed += stats.processed
			result.Upserted += stats.upserted
			result.Skipped += stats.skipped
			result.Unmatched += stats.unmatched
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(empErrs, func(i, j int) bool { return empErrs[i].EmployeeID < empErrs[j].EmployeeID })
	result.Errors = empErrs
	elapsed := time.Since(start)
	result.Duration = elapsed.Round(time.Millisecond).String()

	mode := "live"
	if req.DryRun {
		mode = "dry_run"
	}
	p.metrics.ObserveRun(mode, len(employeeIDs)-canceled, result.Upserted, result.Skipped, len(empErrs), elapsed)

	log.Info("Reconciliation run finished",
		"processed", result.Processed,
		"upserted", result.Upserted,
		"skipped", result.Skipped,
		"unmatched", result.Unmatched,
		"errors", len(result.Errors),
		"canceled_employees", canceled,
		"duration", result.Duration)

	if canceled > 0 {
		return result, ctx.Err()
	}
	return result, nil
}

// matchScanNames resolves every unresolved scan in range against the
// employee directory via the normalized name key. Returns the distinct
// raw names that matched nobody.
func (p *Processor) matchScanNames(ctx context.Context, from, to time.Time) ([]string, error) {
	lo, hi := p.scanBounds(from, to)
	unresolvedScans, err := p.scanRepo.ListUnresolved(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved scans: %w", err)
	}

	byName := make(map[string]string) // raw name -> normalized key
	for _, s := range unresolvedScans {
		if _, seen := byName[s.RawName]; !seen {
			byName[s.RawName] = namekey.Normalize(s.RawName)
		}
	}

	var unresolved []string
	for rawName, key := range byName {
		if key == "" {
			unresolved = append(unresolved, rawName)
			continue
		}
		emp, err := p.employeeRepo.GetByNormalizedName(ctx, key)
		if err != nil {
			if errors.Is(err, employee.ErrEmployeeNotFound) {
				unresolved = append(unresolved, rawName)
				continue
			}
			return nil, fmt.Errorf("failed to look up employee for %q: %w", rawName, err)
		}
		if _, err := p.scanRepo.ResolveEmployee(ctx, rawName, emp.ID); err != nil {
			return nil, fmt.Errorf("failed to resolve scans for %q: %w", rawName, err)
		}
	}
	sort.Strings(unresolved)
	return unresolved, nil
}

func (p *Processor) processEmployee(ctx context.Context, req attendance.ReprocessRequest, employeeID string) (employeeStats, error) {
	var stats employeeStats

	// Explicitly requested IDs may be typos; fail the employee, not the run.
	if _, err := p.employeeRepo.GetByID(ctx, employeeID); err != nil {
		return stats, fmt.Errorf("look up employee: %w", err)
	}

	windows, err := p.schedules.ResolveWindows(ctx, employeeID, req.From, req.To)
	if err != nil {
		return stats, fmt.Errorf("resolve schedule windows: %w", err)
	}

	// One batched read covers the whole range, widened so overnight
	// shifts starting on the last day still see their morning punch-out.
	lo, hi := p.scanBounds(req.From, req.To)
	scans, err := p.scanRepo.ListByEmployee(ctx, employeeID, lo, hi)
	if err != nil {
		return stats, fmt.Errorf("load scans: %w", err)
	}

	var flags map[time.Time]evaluator.Flags
	if p.advisories != nil {
		flags, err = p.advisories.Advisories(ctx, employeeID, req.From, req.To)
		if err != nil {
			return stats, fmt.Errorf("load advisories: %w", err)
		}
	}

	grouped := p.grouper.Group(employeeID, windows, scans)
	stats.unmatched = len(grouped.Unmatched)

	// Instances arrive date-ordered from the grouper; evaluation and
	// persistence keep that order so reruns are deterministic.
	for _, inst := range grouped.Instances {
		if inst.Date.Before(req.From) || inst.Date.After(req.To) {
			continue
		}
		det := p.evaluator.Evaluate(inst, flags[dayStart(inst.Date)])
		stats.processed++
		if req.DryRun {
			continue
		}
		outcome, err := p.attendanceRepo.Upsert(ctx, det.Row(), req.Force)
		if err != nil {
			return stats, fmt.Errorf("upsert %s: %w", inst.Date.Format("2006-01-02"), err)
		}
		if outcome == attendance.UpsertProtected {
			stats.skipped++
		} else {
			stats.upserted++
		}
	}
	return stats, nil
}

// scanBounds widens the requested date range to the scans a shift inside
// it can legitimately claim: grace reach before the first day, plus up
// to a full overnight shift and the tail window after the last.
func (p *Processor) scanBounds(from, to time.Time) (time.Time, time.Time) {
	return dayStart(from).Add(-p.tail), dayStart(to).AddDate(0, 0, 2).Add(p.tail)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
