package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger writes GORM statements to zap. Each statement carries the
// backfill run, report date or HTTP request that issued it.
type SQLLogger struct {
	log    *zap.Logger
	level  gormlogger.LogLevel
	slow   time.Duration
	maxSQL int
}

var _ gormlogger.Interface = (*SQLLogger)(nil)

// SQLLoggerOption configures a SQLLogger
type SQLLoggerOption func(*SQLLogger)

// SlowAfter marks statements taking at least d as slow; zero disables it
func SlowAfter(d time.Duration) SQLLoggerOption {
	return func(l *SQLLogger) { l.slow = d }
}

// TruncateSQL clips logged statements to n bytes; zero logs them whole
func TruncateSQL(n int) SQLLoggerOption {
	return func(l *SQLLogger) { l.maxSQL = n }
}

// NewSQLLogger creates a SQLLogger named "sql" under log
func NewSQLLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...SQLLoggerOption) *SQLLogger {
	l := &SQLLogger{
		log:   log.Named("sql"),
		level: level,
		slow:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	if ce := l.log.Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// Trace implements gormlogger.Interface. Failures log at error, slow
// statements at warn and everything else at debug. A missing record is
// not a failure: the report reader turns it into ErrReportNotFound.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		if l.level < gormlogger.Error {
			return
		}
		lvl, msg = zapcore.ErrorLevel, "Query failed"
	case l.slow > 0 && elapsed >= l.slow:
		if l.level < gormlogger.Warn {
			return
		}
		lvl, msg = zapcore.WarnLevel, "Slow query"
	default:
		if l.level < gormlogger.Info {
			return
		}
		lvl, msg = zapcore.DebugLevel, "Query"
	}

	ce := l.log.Check(lvl, msg)
	if ce == nil {
		return
	}

	sql, rows := fc()
	fields := correlationFields(ctx)
	fields = append(fields,
		zap.String("sql", l.clip(sql)),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	switch lvl {
	case zapcore.ErrorLevel:
		fields = append(fields, zap.Error(err))
	case zapcore.WarnLevel:
		fields = append(fields, zap.Duration("threshold", l.slow))
	}
	ce.Write(fields...)
}

func (l *SQLLogger) clip(sql string) string {
	if l.maxSQL <= 0 || len(sql) <= l.maxSQL {
		return sql
	}
	return sql[:l.maxSQL] + "..."
}

// correlationFields ties a statement to the backfill day or HTTP request that issued it
func correlationFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if date := GetReportDate(ctx); date != "" {
		fields = append(fields, zap.String("report_date", date))
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return fields
}

// ParseSQLLevel maps the log.sql_level setting to a GORM level. Unknown
// values fall back to warn.
func ParseSQLLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
