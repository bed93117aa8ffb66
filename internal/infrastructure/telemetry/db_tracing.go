package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowStatement is the DBTracingConfig.SlowAfter used when none is set
const DefaultSlowStatement = 500 * time.Millisecond

// DBTracingConfig configures DBTracingPlugin
type DBTracingConfig struct {
	Enabled bool
	DBName  string // "ledger" or "reports"
	// QueryVariables puts bound values into db.statement. Ledger queries
	// only carry the business day window, so this is safe to turn on.
	QueryVariables bool
	SlowAfter      time.Duration
}

// Statement span attributes added on top of otelgorm's
var (
	AttrDBRows = attribute.Key("db.rows_affected")
	AttrDBSlow = attribute.Key("db.slow_statement")
	AttrDBMs   = attribute.Key("db.duration_ms")
)

const statementStartKey = "posreports:statement_start"

// DBTracingPlugin puts every GORM statement on its own span and flags slow
// or failed ones on it.
type DBTracingPlugin struct {
	cfg DBTracingConfig
	log *zap.Logger
}

// NewDBTracingPlugin creates a DBTracingPlugin
func NewDBTracingPlugin(cfg DBTracingConfig, log *zap.Logger) *DBTracingPlugin {
	if cfg.SlowAfter <= 0 {
		cfg.SlowAfter = DefaultSlowStatement
	}
	return &DBTracingPlugin{cfg: cfg, log: log}
}

// Register installs otelgorm and the statement callbacks on db. It does
// nothing when the plugin is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.cfg.DBName)}
	if !p.cfg.QueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// The ledger only issues Raw and Row; the sink also queries, creates and
	// deletes. finish runs before otelgorm ends the statement span.
	cb := db.Callback()
	hooks := []struct {
		op            string
		before, after registrar
	}{
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw").Before("otel:after:raw")},
		{"row", cb.Row().Before("gorm:row"), cb.Row().After("gorm:row").Before("otel:after:row")},
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:query")},
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete")},
	}
	for _, h := range hooks {
		if err := h.before.Register("posreports:start_"+h.op, p.start); err != nil {
			return err
		}
		if err := h.after.Register("posreports:finish_"+h.op, p.finish); err != nil {
			return err
		}
	}

	p.log.Info("Database tracing enabled",
		zap.String("db_name", p.cfg.DBName),
		zap.Duration("slow_after", p.cfg.SlowAfter),
		zap.Bool("query_variables", p.cfg.QueryVariables),
	)
	return nil
}

// registrar is satisfied by the callbacks gorm's processors hand out
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (p *DBTracingPlugin) start(db *gorm.DB) {
	db.InstanceSet(statementStartKey, time.Now())
}

func (p *DBTracingPlugin) finish(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(AttrDBRows.Int64(db.Statement.RowsAffected))
	}
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	v, ok := db.InstanceGet(statementStartKey)
	if !ok {
		return
	}
	if elapsed := time.Since(v.(time.Time)); elapsed >= p.cfg.SlowAfter {
		span.SetAttributes(AttrDBSlow.Bool(true), AttrDBMs.Int64(elapsed.Milliseconds()))
	}
}
