package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bridge returns log teed into the OTLP log provider for records at or
// above level. Without log export it returns log itself.
func (e *Exporters) Bridge(log *zap.Logger, level zapcore.Level) *zap.Logger {
	if !e.LogsEnabled() {
		return log
	}
	otelCore := &minLevelCore{
		Core: otelzap.NewCore(e.service, otelzap.WithLoggerProvider(e.logs)),
		min:  level,
	}
	return log.WithOptions(zap.WrapCore(func(base zapcore.Core) zapcore.Core {
		return zapcore.NewTee(base, otelCore)
	}))
}

// minLevelCore drops entries below min. The otelzap core accepts every
// level, so debug SQL would otherwise reach the collector.
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{Core: c.Core.With(fields), min: c.min}
}
