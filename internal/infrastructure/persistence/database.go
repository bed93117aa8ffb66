package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/infrastructure/telemetry"
)

// maxLoggedSQL keeps the category query with its interpolated window readable in logs
const maxLoggedSQL = 4096

// ErrUnsupportedDriver is returned for a database.driver other than postgres or sqlite
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Conn is an open ledger or sink connection
type Conn struct {
	DB     *gorm.DB
	driver string
}

// ConnOption configures Open
type ConnOption func(*connOptions)

type connOptions struct {
	log     *zap.Logger
	sqlOpts []logger.SQLLoggerOption
	level   gormlogger.LogLevel
	tracing *telemetry.DBTracingPlugin
}

// WithLogger routes the statement log through zap at the given sql level.
// A positive slowThreshold logs slower statements at warn.
func WithLogger(log *zap.Logger, level string, slowThreshold time.Duration) ConnOption {
	return func(o *connOptions) {
		o.log = log
		o.level = logger.ParseSQLLevel(level)
		if slowThreshold > 0 {
			o.sqlOpts = append(o.sqlOpts, logger.SlowAfter(slowThreshold))
		}
	}
}

// WithTracing registers the tracing plugin on the connection
func WithTracing(plugin *telemetry.DBTracingPlugin) ConnOption {
	return func(o *connOptions) {
		o.tracing = plugin
	}
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN()), config.DriverSQLite, nil
	case config.DriverPostgres, "":
		return postgres.Open(cfg.DSN()), config.DriverPostgres, nil
	}
	return nil, "", fmt.Errorf("%w %q", ErrUnsupportedDriver, cfg.Driver)
}

// Open connects to a postgres or sqlite database, sizes its pool from cfg
// and pings it. Nothing is left open when it fails.
func Open(cfg *config.DatabaseConfig, opts ...ConnOption) (*Conn, error) {
	o := connOptions{level: gormlogger.Silent}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, driver, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	if o.log != nil {
		sqlOpts := append([]logger.SQLLoggerOption{logger.TruncateSQL(maxLoggedSQL)}, o.sqlOpts...)
		gormCfg.Logger = logger.NewSQLLogger(o.log, o.level, sqlOpts...)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	conn := &Conn{DB: db, driver: driver}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if o.tracing != nil {
		if err := o.tracing.Register(db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("register database tracing: %w", err)
		}
	}
	return conn, nil
}

// Driver is config.DriverPostgres or config.DriverSQLite
func (c *Conn) Driver() string { return c.driver }

// Ping checks the connection is still usable
func (c *Conn) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func (c *Conn) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
