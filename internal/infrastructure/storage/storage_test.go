package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/posreports/backend/internal/domain/report"
)

func str(s string) *string { return &s }

func amt(s string) decimal.NullDecimal {
	return report.NullAmount(decimal.RequireFromString(s))
}

func businessDay(date string) report.BusinessDay {
	d, err := time.Parse(report.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return report.Window(d, report.TimeOfDay{Hour: 6, Minute: 30})
}

// summariesFor builds the two-sale example day: DRINK 100.00 and FOOD 50.00
// before 5% GST and 7% PST.
func summariesFor(date string) (*report.DailySummary, *report.CategorySummary) {
	day := businessDay(date)
	rcpt := func(n int64) *int64 { return &n }
	sale := func(a, sub string, r int64, gst, pst string) report.LedgerEntry {
		return report.LedgerEntry{
			TransType:      report.TransTypeSale,
			GroupTransType: report.GroupTransTypeSale,
			ReceiptNumber:  rcpt(r),
			SubCategoryID:  str(sub),
			Amount:         amt(a),
			TaxInclude:     amt("0"),
			Tax1Amount:     amt(gst),
			Tax2Amount:     amt(pst),
			Quantity:       amt("1"),
		}
	}
	drink := sale("100.00", "DRINK", 1, "5.00", "7.00")
	food := sale("50.00", "FOOD", 2, "2.50", "3.50")
	daily := report.AggregateDailySummary(day, []report.LedgerEntry{drink, food})
	category := report.AggregateCategorySummary(day, []report.CategoryLedgerEntry{
		{LedgerEntry: drink, GroupName: str("BEER"), SalesFlag: amt("0")},
		{LedgerEntry: food, GroupName: nil, SalesFlag: amt("0")},
	})
	return daily, category
}

// memoryStore is an in-process ObjectStore with injectable failures
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut map[string]error
	getErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, failPut: map[string]error{}}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failPut[key]; err != nil {
		return err
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

var errStoreDown = errors.New("store unreachable")
