package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/infrastructure/telemetry"
)

// BackfillMetrics receives per-day outcomes. telemetry.BackfillMetrics
// implements it.
type BackfillMetrics interface {
	DayGenerated(ctx context.Context, elapsed time.Duration)
	DayFailed(ctx context.Context, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) DayGenerated(context.Context, time.Duration) {}
func (nopMetrics) DayFailed(context.Context, time.Duration)    {}

// BackfillConfig holds the driver settings
type BackfillConfig struct {
	BusinessDayStart    report.TimeOfDay
	Location            *time.Location
	ProgressEvery       int
	MaxReportedFailures int
}

// DefaultBackfillConfig returns the POS terminal defaults: business day
// starting 06:30 UTC.
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		BusinessDayStart:    report.TimeOfDay{Hour: 6, Minute: 30},
		Location:            time.UTC,
		ProgressEvery:       10,
		MaxReportedFailures: 50,
	}
}

// BackfillRequest is an inclusive range of calendar dates
type BackfillRequest struct {
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtefield=StartDate"`
}

// DefaultBackfillRequest covers December 1 of the previous year through
// the date of now.
func DefaultBackfillRequest(now time.Time) BackfillRequest {
	y, m, d := now.Date()
	return BackfillRequest{
		StartDate: time.Date(y-1, time.December, 1, 0, 0, 0, 0, now.Location()),
		EndDate:   time.Date(y, m, d, 0, 0, 0, 0, now.Location()),
	}
}

// BackfillResult is the outcome of one run
type BackfillResult struct {
	RunID     uuid.UUID
	Generated int
	Failures  []DayFailure
	Days      []*DayRun
	Index     report.IndexDocument
	// Aborted is set when the ledger connection was lost mid-run
	Aborted bool
	// Skipped lists the dates after an abort that were never attempted
	Skipped []string
}

// Latest returns the latest indexed date after the run
func (r *BackfillResult) Latest() (string, bool) {
	if r.Index.Latest == nil {
		return "", false
	}
	return *r.Index.Latest, true
}

// FailureLines renders at most limit failures as "date: message", followed
// by a count of the omitted ones.
func (r *BackfillResult) FailureLines(limit int) []string {
	if limit <= 0 || limit > len(r.Failures) {
		limit = len(r.Failures)
	}
	lines := make([]string, 0, limit+1)
	for _, f := range r.Failures[:limit] {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Date, f.Message))
	}
	if rest := len(r.Failures) - limit; rest > 0 {
		lines = append(lines, fmt.Sprintf("... plus %d more", rest))
	}
	return lines
}

// BackfillOption configures a BackfillService
type BackfillOption func(*BackfillService)

// WithMetrics records day outcomes on m
func WithMetrics(m BackfillMetrics) BackfillOption {
	return func(s *BackfillService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) BackfillOption {
	return func(s *BackfillService) {
		if now != nil {
			s.now = now
		}
	}
}

// BackfillService summarizes a range of business days from the ledger,
// persists each day to the sink and maintains the report index.
type BackfillService struct {
	connector report.LedgerConnector
	sink      report.ReportSink
	index     report.IndexStore
	cfg       BackfillConfig
	log       *zap.Logger
	metrics   BackfillMetrics
	now       func() time.Time
	validate  *validator.Validate

	mu      sync.Mutex
	running bool
}

// NewBackfillService creates a new BackfillService
func NewBackfillService(
	connector report.LedgerConnector,
	sink report.ReportSink,
	index report.IndexStore,
	cfg BackfillConfig,
	log *zap.Logger,
	opts ...BackfillOption,
) *BackfillService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	if cfg.MaxReportedFailures <= 0 {
		cfg.MaxReportedFailures = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &BackfillService{
		connector: connector,
		sink:      sink,
		index:     index,
		cfg:       cfg,
		log:       log.Named("backfill"),
		metrics:   nopMetrics{},
		now:       time.Now,
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a backfill is in progress
func (s *BackfillService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *BackfillService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *BackfillService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run processes every date of req in calendar order. A failing day is
// recorded and skipped; a lost ledger connection ends the loop early. The
// index is persisted exactly once after the loop in every case, and a
// persistence failure is returned together with the partial result.
func (s *BackfillService) Run(ctx context.Context, req BackfillRequest) (_ *BackfillResult, err error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !s.acquire() {
		return nil, ErrBackfillInProgress
	}
	defer s.release()

	result := &BackfillResult{RunID: uuid.New()}
	ctx, log := logger.WithRunID(ctx, s.log, result.RunID.String())

	days := report.DaysBetween(s.inLocation(req.StartDate), s.inLocation(req.EndDate))
	ctx, span := telemetry.StartRun(ctx, result.RunID.String(), len(days))
	defer func() {
		telemetry.Finish(span, err,
			telemetry.AttrGenerated.Int(result.Generated),
			telemetry.AttrFailed.Int(len(result.Failures)),
		)
	}()

	idx, err := LoadReportIndex(ctx, s.index, s.now)
	if err != nil {
		return nil, err
	}

	session, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("Failed to close ledger session", zap.Error(cerr))
		}
	}()

	logger.L(ctx).Info("Backfill started",
		zap.String("start", req.StartDate.Format(report.DateLayout)),
		zap.String("end", req.EndDate.Format(report.DateLayout)),
		zap.Int("days", len(days)),
		zap.String("business_day_start", s.cfg.BusinessDayStart.String()),
	)

	var abortErr error
	for i, d := range days {
		if abortErr != nil {
			s.skipRest(result, days[i:], abortErr)
			break
		}
		day := report.Window(d, s.cfg.BusinessDayStart)
		run := NewDayRun(day.Key(), s.now())
		result.Days = append(result.Days, run)

		if err := s.runDay(ctx, session, day); err != nil {
			run.Fail(err, s.now())
			s.metrics.DayFailed(ctx, run.Duration())
			result.Failures = append(result.Failures, DayFailure{Date: run.Date, Message: err.Error()})
			log.Error("Day failed", zap.String("report_date", run.Date), zap.Error(err))

			if isConnectionLost(ctx, err) {
				result.Aborted = true
				abortErr = fmt.Errorf("%w at %s: %w", ErrBackfillAborted, run.Date, err)
			}
			continue
		}

		run.Succeed(s.now())
		s.metrics.DayGenerated(ctx, run.Duration())
		idx.Record(run.Date, true)
		result.Generated++
		if result.Generated%s.cfg.ProgressEvery == 0 {
			log.Info("Backfill progress",
				zap.Int("generated", result.Generated),
				zap.String("report_date", run.Date),
			)
		}
	}

	// The caller's context may already be cancelled; the index is still written.
	doc, finErr := idx.Finalize(context.WithoutCancel(ctx))
	result.Index = doc

	s.logSummary(log, result)
	return result, errors.Join(finErr, abortErr)
}

// skipRest records every remaining date as skipped so the result covers
// the whole requested range
func (s *BackfillService) skipRest(result *BackfillResult, rest []time.Time, cause error) {
	now := s.now()
	for _, d := range rest {
		run := NewDayRun(report.Window(d, s.cfg.BusinessDayStart).Key(), now)
		run.Skip(cause.Error(), now)
		result.Days = append(result.Days, run)
		result.Skipped = append(result.Skipped, run.Date)
	}
}

// RunRange runs the dates [start, end] and discards the detailed result
func (s *BackfillService) RunRange(ctx context.Context, start, end time.Time) error {
	_, err := s.Run(ctx, BackfillRequest{StartDate: start, EndDate: end})
	return err
}

// runDay summarizes and persists one business day
func (s *BackfillService) runDay(ctx context.Context, session report.LedgerSession, day report.BusinessDay) (err error) {
	ctx, _ = logger.WithReportDate(ctx, logger.FromContext(ctx), day.Key())
	ctx, span := telemetry.StartDay(ctx, day.Key())
	defer func() { telemetry.Finish(span, err) }()

	entries, err := session.DailyEntries(ctx, day)
	if err != nil {
		return fmt.Errorf("daily summary query: %w", err)
	}
	daily := report.AggregateDailySummary(day, entries)

	categoryEntries, err := session.CategoryEntries(ctx, day)
	if err != nil {
		return fmt.Errorf("category report query: %w", err)
	}
	category := report.AggregateCategorySummary(day, categoryEntries)

	if err := s.sink.SaveDay(ctx, daily, category); err != nil {
		return fmt.Errorf("save reports: %w", err)
	}

	logger.L(ctx).Debug("Day summarized",
		zap.String("gross_total", report.FormatAmount(daily.GrossTotal)),
		zap.Int64("customers", daily.Customers),
		zap.Int("category_rows", len(category.Rows)),
	)
	return nil
}

func (s *BackfillService) logSummary(log *zap.Logger, result *BackfillResult) {
	latest, _ := result.Latest()
	fields := []zap.Field{
		zap.Int("generated", result.Generated),
		zap.Int("failed", len(result.Failures)),
		zap.String("latest", latest),
		zap.Int("indexed", len(result.Index.Dates)),
		zap.Bool("aborted", result.Aborted),
	}
	if len(result.Skipped) > 0 {
		fields = append(fields,
			zap.Int("skipped", len(result.Skipped)),
			zap.String("first_skipped", result.Skipped[0]),
		)
	}
	if len(result.Failures) > 0 {
		fields = append(fields, zap.Strings("failures", result.FailureLines(s.cfg.MaxReportedFailures)))
		log.Warn("Backfill finished with failures", fields...)
		return
	}
	log.Info("Backfill finished", fields...)
}

// inLocation keeps the calendar date of t and moves it to the configured location
func (s *BackfillService) inLocation(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}
