// Command backfill summarizes every business day of a date range from the
// POS ledger and writes the daily summary, the category report and the
// report index to the configured sink.
//
// Usage:
//
//	backfill [-config path] [-start YYYY-MM-DD] [-end YYYY-MM-DD]
//
// Without -start the range begins on December 1 of the previous year;
// without -end it ends today, both in report.timezone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	reportapp "github.com/posreports/backend/internal/application/report"
	"github.com/posreports/backend/internal/bootstrap"
	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to the configuration file (default: ./config.toml)")
	startFlag := flag.String("start", "", "First date to summarize, YYYY-MM-DD")
	endFlag := flag.String("end", "", "Last date to summarize, YYYY-MM-DD")
	flag.Parse()

	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}

	baseLog, err := bootstrap.NewLogger(cfg, "backfill")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 2
	}
	defer func() { _ = baseLog.Sync() }()

	loc, err := cfg.Report.Location()
	if err != nil {
		baseLog.Error("Invalid report timezone", zap.Error(err))
		return 2
	}
	req, err := parseRange(*startFlag, *endFlag, loc, time.Now())
	if err != nil {
		baseLog.Error("Invalid date range", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, log, err := bootstrap.SetupTelemetry(ctx, cfg, "backfill", baseLog)
	if err != nil {
		baseLog.Error("Failed to initialize telemetry", zap.Error(err))
		return 2
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			baseLog.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	ledgerDB, connector, err := bootstrap.OpenLedger(cfg, log)
	if err != nil {
		log.Error("Failed to connect to the ledger", zap.Error(err))
		return 1
	}
	defer func() { _ = ledgerDB.Close() }()

	stores, err := bootstrap.OpenReportStores(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open report stores", zap.Error(err))
		return 1
	}
	defer func() { _ = stores.Close() }()

	svc, err := bootstrap.NewBackfillService(cfg, connector, stores, tel, log)
	if err != nil {
		log.Error("Failed to create backfill service", zap.Error(err))
		return 2
	}

	result, err := svc.Run(ctx, req)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		log.Error("Backfill failed", zap.Error(err))
		return 1
	}
	return 0
}

// parseRange applies the default range to missing bounds
func parseRange(start, end string, loc *time.Location, now time.Time) (reportapp.BackfillRequest, error) {
	req := reportapp.DefaultBackfillRequest(now.In(loc))
	if start != "" {
		d, err := report.ParseDate(start, loc)
		if err != nil {
			return req, fmt.Errorf("-start: %w", err)
		}
		req.StartDate = d
	}
	if end != "" {
		d, err := report.ParseDate(end, loc)
		if err != nil {
			return req, fmt.Errorf("-end: %w", err)
		}
		req.EndDate = d
	}
	if req.EndDate.Before(req.StartDate) {
		return req, errors.New("-end is before -start")
	}
	return req, nil
}

func printResult(result *reportapp.BackfillResult) {
	latest, ok := result.Latest()
	if !ok {
		latest = "none"
	}
	fmt.Printf("Generated %d day(s), %d failed, latest %s\n", result.Generated, len(result.Failures), latest)
	for _, line := range result.FailureLines(50) {
		fmt.Printf("  %s\n", line)
	}
	if n := len(result.Skipped); n > 0 {
		fmt.Printf("Aborted: %d day(s) not attempted, %s through %s\n", n, result.Skipped[0], result.Skipped[n-1])
	}
}
