package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shiftsync/attendance-engine/internal/config"
	appHTTP "github.com/shiftsync/attendance-engine/internal/handler/http"
	"github.com/shiftsync/attendance-engine/internal/pkg/cron"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	loc, err := cfg.Location()
	if err != nil {
		fmt.Println("Error resolving timezone:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}
	defer db.Close()

	scanRepo := postgresql.NewScanRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	scheduleProvider := postgresql.NewScheduleProvider(db, loc)
	advisoryRepo := postgresql.NewAdvisoryRepository(db, loc)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	engineMetrics := metrics.New(registry)

	JWTService := jwt.NewJWTService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	shiftGrouper := grouper.New(grouper.Params{TailWindow: cfg.Reconcile.TailWindow})
	shiftEvaluator := evaluator.New(evaluator.Params{
		SevereUndertimeThreshold: cfg.Reconcile.SevereUndertime,
		HalfDayFraction:          cfg.Reconcile.HalfDayFraction,
	})
	reconciler := reconcile.NewProcessor(
		scanRepo,
		employeeRepo,
		scheduleProvider,
		attendanceRepo,
		advisoryRepo,
		shiftGrouper,
		shiftEvaluator,
		engineMetrics,
		cfg.Reconcile.Workers,
		cfg.Reconcile.TailWindow,
	)
	ingestService := ingest.NewService(scanRepo, reconciler, loc)

	reconcileHandler := appHTTP.NewReconcileHandler(reconciler, ingestService, loc)

	if cfg.Reconcile.NightlyJobEnabled {
		scheduler := cron.NewScheduler()
		cron.NewReconcileJobs(reconciler, loc).RegisterJobs(scheduler)
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := appHTTP.NewRouter(JWTService, reconcileHandler, registry, cfg.App.Env)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
