package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	reportapp "github.com/posreports/backend/internal/application/report"
	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/cache"
	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/event"
	"github.com/posreports/backend/internal/infrastructure/persistence"
	"github.com/posreports/backend/internal/infrastructure/persistence/models"
	"github.com/posreports/backend/internal/infrastructure/storage"
)

// HealthCheck probes one backing store
type HealthCheck func(ctx context.Context) error

// ReportStores is the configured destination of summaries and the index.
// Reader reads back what Sink writes.
type ReportStores struct {
	Sink   report.ReportSink
	Reader report.ReportReader
	Index  report.IndexStore
	Checks map[string]HealthCheck

	closers []func() error
}

// Close releases every connection the stores opened, last opened first
func (s *ReportStores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *ReportStores) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// OpenReportStores opens the sink selected by sink.kind and the index
// store selected by index.kind. When sink.notify is set the sink also
// announces each saved day on the AMQP exchange.
func OpenReportStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *ReportStores, err error) {
	s := &ReportStores{Checks: make(map[string]HealthCheck)}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	// one S3 client serves both the sink and the index
	var s3Store *storage.S3ObjectStore
	objectStoreS3 := func() (*storage.S3ObjectStore, error) {
		if s3Store != nil {
			return s3Store, nil
		}
		st, err := storage.NewS3ObjectStore(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		s3Store = st
		s.Checks["object_storage"] = st.Ping
		return st, nil
	}

	switch cfg.Sink.Kind {
	case config.SinkFile:
		sink := storage.NewObjectReportSink(storage.NewFileObjectStore(cfg.Sink.Directory), log)
		s.Sink, s.Reader = sink, sink
	case config.SinkS3:
		st, err := objectStoreS3()
		if err != nil {
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		sink := storage.NewObjectReportSink(st, log)
		s.Sink, s.Reader = sink, sink
	case config.SinkDatabase:
		db, err := openSinkDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		s.onClose(db.Close)
		s.Checks["sink_database"] = db.Ping
		sink := persistence.NewGormReportSink(db.DB)
		s.Sink, s.Reader = sink, sink
	default:
		return nil, fmt.Errorf("unsupported sink kind %q", cfg.Sink.Kind)
	}

	switch cfg.Index.Kind {
	case config.IndexFile:
		dir, name := filepath.Split(cfg.Index.Path)
		if dir == "" {
			dir = "."
		}
		s.Index = storage.NewObjectIndexStore(storage.NewFileObjectStore(dir), name)
	case config.IndexS3:
		st, err := objectStoreS3()
		if err != nil {
			return nil, fmt.Errorf("s3 index: %w", err)
		}
		s.Index = storage.NewObjectIndexStore(st, cfg.Index.Path)
	case config.IndexRedis:
		rs, err := cache.NewRedisIndexStore(ctx, cfg.Redis, cfg.Index.RedisKey)
		if err != nil {
			return nil, err
		}
		s.onClose(rs.Close)
		s.Checks["redis"] = rs.Ping
		s.Index = rs
	default:
		return nil, fmt.Errorf("unsupported index kind %q", cfg.Index.Kind)
	}

	if cfg.Sink.Notify {
		pub, err := event.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey, log)
		if err != nil {
			return nil, err
		}
		s.onClose(pub.Close)
		s.Sink = event.NewNotifyingSink(s.Sink, pub, log)
	}

	log.Info("Report stores ready",
		zap.String("sink", cfg.Sink.Kind),
		zap.String("index", cfg.Index.Kind),
		zap.Bool("notify", cfg.Sink.Notify),
	)
	return s, nil
}

// openSinkDatabase connects to the sink database. A sqlite sink gets its
// tables created in place; postgres sinks are migrated with cmd/migrate.
func openSinkDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Conn, error) {
	opts := []persistence.ConnOption{
		persistence.WithLogger(log.Named("sink_db"), cfg.Log.SQLLevel, cfg.Telemetry.DBSlowQueryThresh),
	}
	if plugin := DBTracing(cfg, "reports", log); plugin != nil {
		opts = append(opts, persistence.WithTracing(plugin))
	}

	db, err := persistence.Open(&cfg.SinkDatabase, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink database: %w", err)
	}
	if cfg.SinkDatabase.Driver == config.DriverSQLite {
		if err := db.DB.AutoMigrate(models.ReportModels()...); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sink database schema: %w", err)
		}
	}
	return db, nil
}

// OpenLedger connects to the POS ledger database
func OpenLedger(cfg *config.Config, log *zap.Logger) (*persistence.Conn, report.LedgerConnector, error) {
	opts := []persistence.ConnOption{
		persistence.WithLogger(log.Named("ledger_db"), cfg.Log.SQLLevel, cfg.Telemetry.DBSlowQueryThresh),
	}
	if plugin := DBTracing(cfg, "ledger", log); plugin != nil {
		opts = append(opts, persistence.WithTracing(plugin))
	}

	db, err := persistence.Open(&cfg.Ledger, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", reportapp.ErrLedgerUnavailable, err)
	}
	return db, persistence.NewGormLedgerConnector(db.DB), nil
}
