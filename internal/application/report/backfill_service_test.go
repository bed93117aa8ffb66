package report

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posreports/backend/internal/domain/report"
)

// fakeSession serves rows keyed by ISO date and fails on configured dates
type fakeSession struct {
	mu          sync.Mutex
	daily       map[string][]report.LedgerEntry
	category    map[string][]report.CategoryLedgerEntry
	dailyErr    map[string]error
	categoryErr map[string]error
	queried     []string
	closed      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		daily:       map[string][]report.LedgerEntry{},
		category:    map[string][]report.CategoryLedgerEntry{},
		dailyErr:    map[string]error{},
		categoryErr: map[string]error{},
	}
}

func (s *fakeSession) DailyEntries(ctx context.Context, day report.BusinessDay) ([]report.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queried = append(s.queried, day.Key())
	if err := s.dailyErr[day.Key()]; err != nil {
		return nil, err
	}
	return s.daily[day.Key()], nil
}

func (s *fakeSession) CategoryEntries(ctx context.Context, day report.BusinessDay) ([]report.CategoryLedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.categoryErr[day.Key()]; err != nil {
		return nil, err
	}
	return s.category[day.Key()], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeConnector struct {
	session *fakeSession
	err     error
	calls   int
}

func (c *fakeConnector) Connect(context.Context) (report.LedgerSession, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

// memorySink keeps the JSON of every saved day
type memorySink struct {
	saved map[string][]byte
	fail  map[string]error
	calls int
}

func newMemorySink() *memorySink {
	return &memorySink{saved: map[string][]byte{}, fail: map[string]error{}}
}

func (m *memorySink) SaveDay(_ context.Context, daily *report.DailySummary, category *report.CategorySummary) error {
	m.calls++
	if err := m.fail[daily.Date]; err != nil {
		return err
	}
	data, err := json.Marshal(struct {
		Daily    *report.DailySummary    `json:"daily"`
		Category *report.CategorySummary `json:"category"`
	}{daily, category})
	if err != nil {
		return err
	}
	m.saved[daily.Date] = data
	return nil
}

type memoryIndexStore struct {
	initial  []string
	loadErr  error
	saveErr  error
	saves    []report.IndexDocument
	savedCtx []error
}

func (m *memoryIndexStore) Load(context.Context) (*report.Index, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if len(m.saves) > 0 {
		return report.NewIndex(m.saves[len(m.saves)-1].Dates...), nil
	}
	return report.NewIndex(m.initial...), nil
}

func (m *memoryIndexStore) Save(ctx context.Context, doc report.IndexDocument) error {
	m.savedCtx = append(m.savedCtx, ctx.Err())
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, doc)
	return nil
}

type countingMetrics struct {
	generated, failed int
}

func (c *countingMetrics) DayGenerated(context.Context, time.Duration) { c.generated++ }
func (c *countingMetrics) DayFailed(context.Context, time.Duration)    { c.failed++ }

func ptr[T any](v T) *T { return &v }

func amount(s string) decimal.NullDecimal {
	return report.NullAmount(decimal.RequireFromString(s))
}

func sale(amt string, rcpt int64, sub string) report.LedgerEntry {
	return report.LedgerEntry{
		TransType:      report.TransTypeSale,
		GroupTransType: report.GroupTransTypeSale,
		ReceiptNumber:  ptr(rcpt),
		SubCategoryID:  ptr(sub),
		Amount:         amount(amt),
		TaxInclude:     amount("0"),
		Tax1Amount:     amount("0.50"),
		Quantity:       amount("1"),
	}
}

func categorySale(amt string, rcpt int64, group string) report.CategoryLedgerEntry {
	return report.CategoryLedgerEntry{
		LedgerEntry: sale(amt, rcpt, group),
		GroupName:   ptr(group),
		SalesFlag:   amount("0"),
	}
}

var fixedNow = time.Date(2025, 1, 20, 9, 7, 3, 0, time.UTC)

type harness struct {
	session   *fakeSession
	connector *fakeConnector
	sink      *memorySink
	store     *memoryIndexStore
	metrics   *countingMetrics
	svc       *BackfillService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		session: newFakeSession(),
		sink:    newMemorySink(),
		store:   &memoryIndexStore{},
		metrics: &countingMetrics{},
	}
	h.connector = &fakeConnector{session: h.session}
	h.svc = NewBackfillService(h.connector, h.sink, h.store, DefaultBackfillConfig(), nil,
		WithMetrics(h.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
	return h
}

func dateRange(start, end string) BackfillRequest {
	s, _ := time.Parse(report.DateLayout, start)
	e, _ := time.Parse(report.DateLayout, end)
	return BackfillRequest{StartDate: s, EndDate: e}
}

func TestBackfillService_Run_AllDays(t *testing.T) {
	h := newHarness(t)
	h.store.initial = []string{"2024-12-31"}
	h.session.daily["2025-01-02"] = []report.LedgerEntry{sale("10.00", 1, "FOOD")}
	h.session.category["2025-01-02"] = []report.CategoryLedgerEntry{categorySale("10.00", 1, "FOOD")}

	result, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-03"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Generated)
	assert.Empty(t, result.Failures)
	assert.False(t, result.Aborted)
	require.Len(t, result.Days, 3)
	for _, d := range result.Days {
		assert.Equal(t, DayStateSucceeded, d.State)
	}
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, h.session.queried)
	assert.True(t, h.session.closed)
	assert.Equal(t, 3, h.metrics.generated)

	require.Len(t, h.store.saves, 1)
	doc := h.store.saves[0]
	assert.Equal(t, []string{"2025-01-03", "2025-01-02", "2025-01-01", "2024-12-31"}, doc.Dates)
	assert.Equal(t, "2025-01-20 09:07:03", doc.UpdatedAt)
	latest, ok := result.Latest()
	assert.True(t, ok)
	assert.Equal(t, "2025-01-03", latest)
}

func TestBackfillService_Run_FailingDayIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.session.dailyErr["2025-01-02"] = errors.New("invalid column name 'Tax4Amount'")
	h.sink.fail["2025-01-03"] = errors.New("disk full")

	result, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-04"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Generated)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "2025-01-02", result.Failures[0].Date)
	assert.Contains(t, result.Failures[0].Message, "Tax4Amount")
	assert.Equal(t, "2025-01-03", result.Failures[1].Date)
	assert.Contains(t, result.Failures[1].Message, "disk full")
	assert.Equal(t, DayStateFailed, result.Days[1].State)
	assert.Equal(t, 2, h.metrics.failed)

	require.Len(t, h.store.saves, 1)
	assert.Equal(t, []string{"2025-01-04", "2025-01-01"}, h.store.saves[0].Dates)
	assert.NotContains(t, h.sink.saved, "2025-01-02")
}

func TestBackfillService_Run_ConnectionLostAborts(t *testing.T) {
	h := newHarness(t)
	h.session.categoryErr["2025-01-02"] = fmt.Errorf("read: %w", driver.ErrBadConn)

	result, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-05"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackfillAborted)
	assert.ErrorIs(t, err, driver.ErrBadConn)

	require.NotNil(t, result)
	assert.True(t, result.Aborted)
	assert.Equal(t, 1, result.Generated)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02"}, h.session.queried)

	// every requested day is accounted for
	require.Len(t, result.Days, 5)
	assert.Equal(t, []string{"2025-01-03", "2025-01-04", "2025-01-05"}, result.Skipped)
	for _, run := range result.Days[2:] {
		assert.Equal(t, DayStateSkipped, run.State)
		assert.Contains(t, run.Error, "2025-01-02")
	}
	assert.True(t, h.session.closed)

	require.Len(t, h.store.saves, 1)
	assert.Equal(t, []string{"2025-01-01"}, h.store.saves[0].Dates)
}

func TestBackfillService_Run_CancelledContextStillFinalizes(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.svc.Run(ctx, dateRange("2025-01-01", "2025-01-02"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, result.Aborted)

	require.Len(t, h.store.savedCtx, 1)
	assert.NoError(t, h.store.savedCtx[0])
	assert.True(t, h.session.closed)
}

func TestBackfillService_Run_FinalizeError(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errors.New("permission denied")

	result, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-02"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexPersistence)
	assert.NotErrorIs(t, err, ErrBackfillAborted)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Generated)
	assert.Len(t, h.sink.saved, 2)
}

func TestBackfillService_Run_IndexLoadError(t *testing.T) {
	h := newHarness(t)
	h.store.loadErr = errors.New("connection refused")

	_, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-02"))
	assert.ErrorIs(t, err, ErrIndexPersistence)
	assert.Equal(t, 0, h.connector.calls)
}

func TestBackfillService_Run_LedgerUnavailable(t *testing.T) {
	h := newHarness(t)
	h.connector.err = errors.New("login failed")

	_, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-02"))
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.Empty(t, h.store.saves)
	assert.Equal(t, 0, h.sink.calls)
}

func TestBackfillService_Run_InvalidRequest(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  BackfillRequest
	}{
		{"zero", BackfillRequest{}},
		{"missing end", BackfillRequest{StartDate: fixedNow}},
		{"end before start", dateRange("2025-01-05", "2025-01-04")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Equal(t, 0, h.connector.calls)
}

func TestBackfillService_Run_SingleDay(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Run(context.Background(), dateRange("2025-01-05", "2025-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
}

func TestBackfillService_Run_InProgress(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.svc.acquire())
	assert.True(t, h.svc.Running())

	_, err := h.svc.Run(context.Background(), dateRange("2025-01-01", "2025-01-01"))
	assert.ErrorIs(t, err, ErrBackfillInProgress)

	h.svc.release()
	assert.False(t, h.svc.Running())
}

func TestBackfillService_Run_RerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.session.daily["2025-01-02"] = []report.LedgerEntry{sale("10.00", 1, "FOOD"), sale("5.25", 2, "DRINK")}
	h.session.category["2025-01-02"] = []report.CategoryLedgerEntry{categorySale("10.00", 1, "FOOD")}
	req := dateRange("2025-01-02", "2025-01-02")

	_, err := h.svc.Run(context.Background(), req)
	require.NoError(t, err)
	first := h.sink.saved["2025-01-02"]

	_, err = h.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(h.sink.saved["2025-01-02"]))
	require.Len(t, h.store.saves, 2)
	assert.Equal(t, []string{"2025-01-02"}, h.store.saves[1].Dates)
}

func TestBackfillService_Run_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	h := newHarness(t)
	cfg := DefaultBackfillConfig()
	cfg.Location = loc
	var windows []report.BusinessDay
	spy := &windowSpy{fakeSession: h.session, windows: &windows}
	svc := NewBackfillService(&spyConnector{spy}, h.sink, h.store, cfg, nil)

	// 2025-01-02 UTC noon stays 2025-01-02 in the ledger's location
	req := BackfillRequest{
		StartDate: time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2025, 1, 2, 6, 30, 0, 0, loc), windows[0].Start)
	assert.Equal(t, "2025-01-02", windows[0].Key())
}

type windowSpy struct {
	*fakeSession
	windows *[]report.BusinessDay
}

func (w *windowSpy) DailyEntries(ctx context.Context, day report.BusinessDay) ([]report.LedgerEntry, error) {
	*w.windows = append(*w.windows, day)
	return w.fakeSession.DailyEntries(ctx, day)
}

type spyConnector struct{ session *windowSpy }

func (c *spyConnector) Connect(context.Context) (report.LedgerSession, error) {
	return c.session, nil
}

func TestBackfillResult_FailureLines(t *testing.T) {
	result := &BackfillResult{}
	for i := 1; i <= 53; i++ {
		result.Failures = append(result.Failures, DayFailure{
			Date:    fmt.Sprintf("2025-02-%02d", i%28+1),
			Message: "timeout",
		})
	}

	lines := result.FailureLines(50)
	require.Len(t, lines, 51)
	assert.Equal(t, "2025-02-02: timeout", lines[0])
	assert.Equal(t, "... plus 3 more", lines[50])

	assert.Len(t, result.FailureLines(0), 53)
	assert.Empty(t, (&BackfillResult{}).FailureLines(50))
}

func TestDefaultBackfillRequest(t *testing.T) {
	req := DefaultBackfillRequest(time.Date(2025, 3, 14, 17, 45, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), req.StartDate)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), req.EndDate)
}
