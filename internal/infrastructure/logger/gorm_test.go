package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestSQLLogger_TraceCarriesRunContext(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Info)

	ctx, _ := WithRunID(context.Background(), base, "run-7")
	ctx, _ = WithReportDate(ctx, base, "2025-01-15")

	sl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "sql", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "run-7", fields["run_id"])
	assert.Equal(t, "2025-01-15", fields["report_date"])
	assert.Equal(t, "SELECT 1", fields["sql"])
	assert.Equal(t, int64(1), fields["rows"])
}

func TestSQLLogger_TraceLevels(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Warn, SlowAfter(100*time.Millisecond))
	sql := func() (string, int64) { return "SELECT * FROM Journal", 0 }

	sl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	sl.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	sl.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	sl.Trace(context.Background(), time.Now(), sql, nil)

	require.Equal(t, 2, logs.Len())

	slow := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, slow.Level)
	assert.Equal(t, "Slow query", slow.Message)
	assert.Equal(t, 100*time.Millisecond, slow.ContextMap()["threshold"])

	failed := logs.All()[1]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	assert.Equal(t, "connection reset", failed.ContextMap()["error"])
}

func TestSQLLogger_SlowDisabled(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Warn, SlowAfter(0))

	sl.Trace(context.Background(), time.Now().Add(-time.Hour), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 0, logs.Len())
}

func TestSQLLogger_TruncateSQL(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Info, TruncateSQL(10))
	long := "SELECT " + strings.Repeat("x", 100)

	sl.Trace(context.Background(), time.Now(), func() (string, int64) { return long, 0 }, nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SELECT xxx...", logs.All()[0].ContextMap()["sql"])
}

func TestSQLLogger_Silent(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Info).LogMode(gormlogger.Silent)

	sl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("x"))
	sl.Error(context.Background(), "boom %d", 1)
	assert.Equal(t, 0, logs.Len())
}

func TestSQLLogger_Printf(t *testing.T) {
	base, logs := observed()
	sl := NewSQLLogger(base, gormlogger.Warn)

	sl.Info(context.Background(), "ignored")
	sl.Warn(context.Background(), "retrying %s", "ledger")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "retrying ledger", logs.All()[0].Message)
}

func TestParseSQLLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseSQLLevel("silent"))
	assert.Equal(t, gormlogger.Error, ParseSQLLevel("error"))
	assert.Equal(t, gormlogger.Info, ParseSQLLevel("debug"))
	assert.Equal(t, gormlogger.Warn, ParseSQLLevel("unknown"))
}
