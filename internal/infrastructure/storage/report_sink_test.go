package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posreports/backend/internal/domain/report"
)

func TestObjectReportSink_WritesDateFolder(t *testing.T) {
	root := t.TempDir()
	sink := NewObjectReportSink(NewFileObjectStore(root), nil)
	daily, category := summariesFor("2024-12-01")

	require.NoError(t, sink.SaveDay(context.Background(), daily, category))

	raw, err := os.ReadFile(filepath.Join(root, "2024-12-01", "summary_daily.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2024-12-01", doc["date"])
	assert.Equal(t, "168", doc["gross_total"])
	assert.Equal(t, "150", doc["net_total"])
	assert.Equal(t, "75", doc["average_sale"])

	lines := doc["lines"].([]any)
	first := lines[0].(map[string]any)
	assert.Equal(t, "Total Sales:", first["label"])
	assert.Equal(t, "168.00", first["value"])

	raw, err = os.ReadFile(filepath.Join(root, "2024-12-01", "category_report.json"))
	require.NoError(t, err)
	var cat CategoryReportDocument
	require.NoError(t, json.Unmarshal(raw, &cat))
	assert.Equal(t, report.CategoryReportHeaders, cat.Headers)
	require.Len(t, cat.Table, 3)
	assert.Equal(t, []string{"BEER", "100.00", "112.00", "1", "1"}, cat.Table[0])
	assert.Equal(t, []string{"UNSPECIFIED", "50.00", "56.00", "1", "1"}, cat.Table[1])
	assert.Equal(t, []string{"TOTAL", "150.00", "168.00", "2", "2"}, cat.Table[2])
}

func TestObjectReportSink_RerunIsByteIdentical(t *testing.T) {
	root := t.TempDir()
	sink := NewObjectReportSink(NewFileObjectStore(root), nil)
	ctx := context.Background()

	daily, category := summariesFor("2024-12-01")
	require.NoError(t, sink.SaveDay(ctx, daily, category))
	first, err := os.ReadFile(filepath.Join(root, "2024-12-01", "summary_daily.json"))
	require.NoError(t, err)
	firstCat, err := os.ReadFile(filepath.Join(root, "2024-12-01", "category_report.json"))
	require.NoError(t, err)

	daily, category = summariesFor("2024-12-01")
	require.NoError(t, sink.SaveDay(ctx, daily, category))
	second, err := os.ReadFile(filepath.Join(root, "2024-12-01", "summary_daily.json"))
	require.NoError(t, err)
	secondCat, err := os.ReadFile(filepath.Join(root, "2024-12-01", "category_report.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstCat, secondCat)
}

func TestObjectReportSink_FindDay(t *testing.T) {
	sink := NewObjectReportSink(newMemoryStore(), nil)
	ctx := context.Background()
	daily, category := summariesFor("2024-12-02")
	require.NoError(t, sink.SaveDay(ctx, daily, category))

	gotDaily, gotCategory, err := sink.FindDay(ctx, "2024-12-02")
	require.NoError(t, err)

	assert.True(t, gotDaily.NetTotal.Equal(daily.NetTotal))
	assert.True(t, gotDaily.WindowStart.Equal(daily.WindowStart))
	assert.Equal(t, int64(2), gotDaily.Customers)
	require.Len(t, gotDaily.SubCategories, 2)
	assert.Equal(t, "DRINK", gotDaily.SubCategories[0].SubCategory)

	require.Len(t, gotCategory.Rows, 2)
	assert.True(t, gotCategory.Total.AmountTaxIncl.Equal(category.Total.AmountTaxIncl))

	// Decoded summaries encode back to the stored bytes
	again, err := EncodeDailySummary(gotDaily)
	require.NoError(t, err)
	stored, err := EncodeDailySummary(daily)
	require.NoError(t, err)
	assert.JSONEq(t, string(stored), string(again))
}

func TestObjectReportSink_FindDayMissing(t *testing.T) {
	sink := NewObjectReportSink(newMemoryStore(), nil)

	_, _, err := sink.FindDay(context.Background(), "2024-12-03")
	assert.ErrorIs(t, err, report.ErrReportNotFound)
}

func TestObjectReportSink_RejectsMismatchedDates(t *testing.T) {
	sink := NewObjectReportSink(newMemoryStore(), nil)
	daily, _ := summariesFor("2024-12-01")
	_, category := summariesFor("2024-12-02")

	assert.Error(t, sink.SaveDay(context.Background(), daily, category))
	assert.Error(t, sink.SaveDay(context.Background(), daily, nil))
}

func TestObjectReportSink_RollsBackFirstDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("new day leaves nothing", func(t *testing.T) {
		store := newMemoryStore()
		store.failPut[CategoryReportKey("2024-12-01")] = errStoreDown
		sink := NewObjectReportSink(store, nil)

		daily, category := summariesFor("2024-12-01")
		assert.ErrorIs(t, sink.SaveDay(ctx, daily, category), errStoreDown)
		assert.Empty(t, store.objects)
	})

	t.Run("rerun keeps previous documents", func(t *testing.T) {
		store := newMemoryStore()
		sink := NewObjectReportSink(store, nil)
		daily, category := summariesFor("2024-12-01")
		require.NoError(t, sink.SaveDay(ctx, daily, category))
		previous := store.objects[DailySummaryKey("2024-12-01")]

		store.failPut[CategoryReportKey("2024-12-01")] = errStoreDown
		daily.Customers = 99
		assert.Error(t, sink.SaveDay(ctx, daily, category))
		assert.Equal(t, previous, store.objects[DailySummaryKey("2024-12-01")])
	})

	t.Run("unreachable store writes nothing", func(t *testing.T) {
		store := newMemoryStore()
		store.getErr = errStoreDown
		sink := NewObjectReportSink(store, nil)

		daily, category := summariesFor("2024-12-01")
		assert.ErrorIs(t, sink.SaveDay(ctx, daily, category), errStoreDown)
		assert.Empty(t, store.objects)
	})
}
