// Command reconcile runs the attendance reconciliation pipeline once and
// exits. It is the operator-facing entry point for backfills and manual
// correction passes; the api binary serves the same pipeline over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shiftsync/attendance-engine/internal/config"
	"github.com/shiftsync/attendance-engine/internal/domain/attendance"
	"github.com/shiftsync/attendance-engine/internal/pkg/database"
	"github.com/shiftsync/attendance-engine/internal/pkg/jwt"
	"github.com/shiftsync/attendance-engine/internal/pkg/metrics"
	"github.com/shiftsync/attendance-engine/internal/repository/postgresql"
	"github.com/shiftsync/attendance-engine/internal/service/evaluator"
	"github.com/shiftsync/attendance-engine/internal/service/grouper"
	"github.com/shiftsync/attendance-engine/internal/service/ingest"
	"github.com/shiftsync/attendance-engine/internal/service/reconcile"
)

func main() {
	var (
		fromFlag      = flag.String("from", "", "start date (YYYY-MM-DD, inclusive)")
		toFlag        = flag.String("to", "", "end date (YYYY-MM-DD, inclusive)")
		employeesFlag = flag.String("employees", "", "comma-separated employee IDs (default: all active)")
		dryRun        = flag.Bool("dry-run", false, "evaluate without writing attendance rows")
		force         = flag.Bool("force", false, "overwrite admin-verified rows")
		ingestFlag    = flag.String("ingest", "", "device export CSV to ingest before reconciling")
		issueToken    = flag.String("issue-token", "", "print a service token for the given subject and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		fatalf("resolve timezone: %v", err)
	}

	if *issueToken != "" {
		token, expiresAt, err := jwt.NewJWTService(cfg.Auth.Secret, cfg.Auth.TokenTTL).GenerateServiceToken(*issueToken)
		if err != nil {
			fatalf("issue token: %v", err)
		}
		printJSON(map[string]any{"token": token, "expires_at": expiresAt})
		return
	}

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		fatalf("connect to database: %v", err)
	}
	defer db.Close()

	scanRepo := postgresql.NewScanRepository(db)
	reconciler := reconcile.NewProcessor(
		scanRepo,
		postgresql.NewEmployeeRepository(db),
		postgresql.NewScheduleProvider(db, loc),
		postgresql.NewAttendanceRepository(db),
		postgresql.NewAdvisoryRepository(db, loc),
		grouper.New(grouper.Params{TailWindow: cfg.Reconcile.TailWindow}),
		evaluator.New(evaluator.Params{
			SevereUndertimeThreshold: cfg.Reconcile.SevereUndertime,
			HalfDayFraction:          cfg.Reconcile.HalfDayFraction,
		}),
		metrics.New(nil),
		cfg.Reconcile.Workers,
		cfg.Reconcile.TailWindow,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *ingestFlag != "" {
		f, err := os.Open(*ingestFlag)
		if err != nil {
			fatalf("open export file: %v", err)
		}
		svc := ingest.NewService(scanRepo, reconciler, loc)
		ingestResult, runResult, err := svc.IngestAndReprocess(ctx, f)
		f.Close()
		if err != nil {
			fatalf("ingest export: %v", err)
		}
		printJSON(map[string]any{"ingest": ingestResult, "run": runResult})
		return
	}

	if *fromFlag == "" || *toFlag == "" {
		flag.Usage()
		os.Exit(2)
	}
	from, err := time.ParseInLocation("2006-01-02", *fromFlag, loc)
	if err != nil {
		fatalf("invalid -from: %v", err)
	}
	to, err := time.ParseInLocation("2006-01-02", *toFlag, loc)
	if err != nil {
		fatalf("invalid -to: %v", err)
	}

	req := attendance.ReprocessRequest{
		From:   from,
		To:     to,
		DryRun: *dryRun,
		Force:  *force,
	}
	if *employeesFlag != "" {
		for _, id := range strings.Split(*employeesFlag, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.EmployeeIDs = append(req.EmployeeIDs, id)
			}
		}
	}

	result, err := reconciler.Reprocess(ctx, req)
	if err != nil {
		fatalf("reconcile: %v", err)
	}
	printJSON(result)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
