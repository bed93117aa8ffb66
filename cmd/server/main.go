// Command server serves the persisted POS reports over HTTP and, when
// schedule.enabled is set, re-summarizes the trailing days once a day.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/bootstrap"
	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/scheduler"
	"github.com/posreports/backend/internal/interfaces/http/handler"
	"github.com/posreports/backend/internal/interfaces/http/router"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (default: ./config.toml)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := bootstrap.NewLogger(cfg, "server")
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = baseLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, log, err := bootstrap.SetupTelemetry(ctx, cfg, "server", baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			baseLog.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting POS report server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("sink", cfg.Sink.Kind),
		zap.Bool("schedule", cfg.Schedule.Enabled),
	)

	stores, err := bootstrap.OpenReportStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open report stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing report stores", zap.Error(err))
		}
	}()

	trigger, closeLedger := startSchedule(ctx, cfg, stores, tel, log)
	defer closeLedger()

	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}

	checks := make(map[string]handler.HealthChecker, len(stores.Checks))
	for name, check := range stores.Checks {
		checks[name] = handler.HealthCheckFunc(check)
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, checks)

	engine, err := router.New(router.Config{
		Mode:           mode,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Meter:          tel.MeterFor("http.server"),
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log,
		systemHandler.Health,
		systemHandler,
		handler.NewReportHandler(stores.Index, stores.Reader),
	)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Scheduled backfill did not stop in time", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// startSchedule starts the daily catch-up when it is enabled. The returned
// func closes the ledger connection it opened.
func startSchedule(
	ctx context.Context,
	cfg *config.Config,
	stores *bootstrap.ReportStores,
	tel *bootstrap.Telemetry,
	log *zap.Logger,
) (*scheduler.BackfillTrigger, func()) {
	if !cfg.Schedule.Enabled {
		return nil, func() {}
	}

	ledgerDB, connector, err := bootstrap.OpenLedger(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to the ledger", zap.Error(err))
	}
	closeLedger := func() { _ = ledgerDB.Close() }

	svc, err := bootstrap.NewBackfillService(cfg, connector, stores, tel, log)
	if err != nil {
		log.Fatal("Failed to create backfill service", zap.Error(err))
	}

	runAt, err := report.ParseTimeOfDay(cfg.Schedule.RunAt)
	if err != nil {
		log.Fatal("Invalid schedule.run_at", zap.Error(err))
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		log.Fatal("Invalid report.timezone", zap.Error(err))
	}

	triggerCfg := scheduler.DefaultBackfillTriggerConfig()
	triggerCfg.RunAt = runAt
	triggerCfg.LookbackDays = cfg.Schedule.LookbackDays
	triggerCfg.Location = loc

	trigger, err := scheduler.NewBackfillTrigger(triggerCfg, svc, log)
	if err != nil {
		log.Fatal("Failed to create backfill trigger", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start backfill trigger", zap.Error(err))
	}
	return trigger, closeLedger
}
