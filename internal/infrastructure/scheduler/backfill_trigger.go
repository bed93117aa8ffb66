package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/posreports/backend/internal/domain/report"
)

var (
	// ErrInvalidConfig wraps every BackfillTriggerConfig validation failure
	ErrInvalidConfig = errors.New("invalid backfill schedule")
	// ErrRunInProgress is returned by TriggerNow while a catch-up is running
	ErrRunInProgress = errors.New("scheduled backfill already in progress")
)

// BackfillRunner summarizes the inclusive range of calendar dates [start, end]
type BackfillRunner interface {
	RunRange(ctx context.Context, start, end time.Time) error
}

// BackfillTriggerConfig holds configuration for the daily catch-up
type BackfillTriggerConfig struct {
	// RunAt is the local time after which the day's catch-up starts
	RunAt report.TimeOfDay

	// LookbackDays is the number of days ending yesterday to re-summarize
	LookbackDays int

	// Location is the time zone of RunAt and of the calendar dates
	Location *time.Location

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultBackfillTriggerConfig runs at 07:00 UTC over the last three days
func DefaultBackfillTriggerConfig() BackfillTriggerConfig {
	return BackfillTriggerConfig{
		RunAt:         report.TimeOfDay{Hour: 7},
		LookbackDays:  3,
		Location:      time.UTC,
		CheckInterval: time.Minute,
	}
}

func (c BackfillTriggerConfig) validate() error {
	if c.RunAt.Hour < 0 || c.RunAt.Hour > 23 || c.RunAt.Minute < 0 || c.RunAt.Minute > 59 {
		return fmt.Errorf("%w: run_at %s", ErrInvalidConfig, c.RunAt)
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("%w: lookback_days must be positive, got %d", ErrInvalidConfig, c.LookbackDays)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// BackfillTrigger starts the catch-up backfill once per calendar day, at
// or after RunAt. A tick arriving while the previous run is still in
// progress is skipped.
type BackfillTrigger struct {
	config BackfillTriggerConfig
	runner BackfillRunner
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	inFlight    bool
	lastRunDate string
}

// NewBackfillTrigger creates a new trigger
func NewBackfillTrigger(config BackfillTriggerConfig, runner BackfillRunner, logger *zap.Logger) (*BackfillTrigger, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillTrigger{
		config: config,
		runner: runner,
		logger: logger.Named("scheduler"),
		now:    time.Now,
	}, nil
}

// Start starts the check loop
func (t *BackfillTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Backfill trigger started",
		zap.String("run_at", t.config.RunAt.String()),
		zap.Int("lookback_days", t.config.LookbackDays),
		zap.String("location", t.config.Location.String()),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop cancels the loop and any in-flight backfill, then waits for both
func (t *BackfillTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Backfill trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *BackfillTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger starts the day's run once the local clock passes RunAt
func (t *BackfillTrigger) checkAndTrigger(ctx context.Context) bool {
	now := t.now().In(t.config.Location)
	today := now.Format(report.DateLayout)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRunDate == today {
		return false
	}
	runAt := time.Date(now.Year(), now.Month(), now.Day(), t.config.RunAt.Hour, t.config.RunAt.Minute, 0, 0, t.config.Location)
	if now.Before(runAt) {
		return false
	}
	if t.inFlight {
		t.logger.Warn("Skipping scheduled backfill, previous run still in progress", zap.String("date", today))
		return false
	}

	t.lastRunDate = today
	start, end := t.window(now)
	t.launch(ctx, start, end)
	return true
}

// TriggerNow starts the catch-up immediately, independent of RunAt
func (t *BackfillTrigger) TriggerNow(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight {
		return ErrRunInProgress
	}
	start, end := t.window(t.now().In(t.config.Location))
	t.launch(ctx, start, end)
	return nil
}

// window returns the LookbackDays calendar dates ending yesterday
func (t *BackfillTrigger) window(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	end := time.Date(y, m, d-1, 0, 0, 0, 0, t.config.Location)
	start := time.Date(y, m, d-t.config.LookbackDays, 0, 0, 0, 0, t.config.Location)
	return start, end
}

// launch runs the backfill in the background; callers hold t.mu
func (t *BackfillTrigger) launch(ctx context.Context, start, end time.Time) {
	t.inFlight = true
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			t.inFlight = false
			t.mu.Unlock()
		}()

		startKey, endKey := start.Format(report.DateLayout), end.Format(report.DateLayout)
		t.logger.Info("Scheduled backfill started", zap.String("start", startKey), zap.String("end", endKey))
		if err := t.runner.RunRange(ctx, start, end); err != nil {
			t.logger.Error("Scheduled backfill failed",
				zap.String("start", startKey),
				zap.String("end", endKey),
				zap.Error(err),
			)
			return
		}
		t.logger.Info("Scheduled backfill finished", zap.String("start", startKey), zap.String("end", endKey))
	}()
}

// InFlight reports whether a backfill started by the trigger is running
func (t *BackfillTrigger) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}
