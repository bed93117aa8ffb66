package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/posreports/backend/internal/domain/report"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	Ledger       DatabaseConfig
	SinkDatabase DatabaseConfig
	Report       ReportConfig
	Sink         SinkConfig
	Index        IndexConfig
	Storage      StorageConfig
	Redis        RedisConfig
	AMQP         AMQPConfig
	HTTP         HTTPConfig
	Telemetry    TelemetryConfig
	Schedule     ScheduleConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, console
	Output   string // stdout, stderr, or file path
	SQLLevel string // silent, error, warn, info
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database connection settings. The ledger and the
// report sink database each have one.
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" for tests
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// ReportConfig holds the business-day settings of the POS terminal
type ReportConfig struct {
	BusinessDayStart string // HH:MM
	Timezone         string // IANA name of the ledger's local time
}

// Sink kinds
const (
	SinkFile     = "file"
	SinkDatabase = "database"
	SinkS3       = "s3"
)

// SinkConfig selects where daily summaries are written
type SinkConfig struct {
	Kind      string // file, database, s3
	Directory string // root of the file sink
	Notify    bool   // publish a message per persisted day
}

// Index store kinds
const (
	IndexFile  = "file"
	IndexS3    = "s3"
	IndexRedis = "redis"
)

// IndexConfig selects where the report index document lives
type IndexConfig struct {
	Kind     string // file, s3, redis
	Path     string // file path, or object key for s3
	RedisKey string
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for MinIO and friends
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	Prefix          string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AMQPConfig holds the report notification broker settings
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool    // traces
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool

	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool

	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration

	ProfilingEnabled       bool
	ProfilingServerAddress string
	ProfilingAuthUser      string
	ProfilingAuthPassword  string
	ProfilingTypes         []string // empty selects cpu, alloc_space, inuse_space and goroutines
	SpanProfilesEnabled    bool
}

// ScheduleConfig holds the server's daily catch-up settings
type ScheduleConfig struct {
	Enabled      bool
	RunAt        string // HH:MM local time
	LookbackDays int
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_LEDGER_PASSWORD)
// 2. config.toml, or the file at path when it is not empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pos-reports")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Format:   v.GetString("log.format"),
			Output:   v.GetString("log.output"),
			SQLLevel: v.GetString("log.sql_level"),
		},
		Ledger:       databaseConfig(v, "ledger"),
		SinkDatabase: databaseConfig(v, "sink_database"),
		Report: ReportConfig{
			BusinessDayStart: v.GetString("report.business_day_start"),
			Timezone:         v.GetString("report.timezone"),
		},
		Sink: SinkConfig{
			Kind:      v.GetString("sink.kind"),
			Directory: v.GetString("sink.directory"),
			Notify:    v.GetBool("sink.notify"),
		},
		Index: IndexConfig{
			Kind:     v.GetString("index.kind"),
			Path:     v.GetString("index.path"),
			RedisKey: v.GetString("index.redis_key"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			Prefix:          v.GetString("storage.prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		AMQP: AMQPConfig{
			URL:        v.GetString("amqp.url"),
			Exchange:   v.GetString("amqp.exchange"),
			RoutingKey: v.GetString("amqp.routing_key"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:                v.GetBool("telemetry.enabled"),
			CollectorEndpoint:      v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:          v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:            v.GetString("telemetry.service_name"),
			Insecure:               v.GetBool("telemetry.insecure"),
			MetricsEnabled:         v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:        v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:            v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:         v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:           v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:      v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:       v.GetBool("telemetry.profiling_enabled"),
			ProfilingServerAddress: v.GetString("telemetry.profiling_server_address"),
			ProfilingAuthUser:      v.GetString("telemetry.profiling_auth_user"),
			ProfilingAuthPassword:  v.GetString("telemetry.profiling_auth_password"),
			ProfilingTypes:         v.GetStringSlice("telemetry.profiling_types"),
			SpanProfilesEnabled:    v.GetBool("telemetry.span_profiles_enabled"),
		},
		Schedule: ScheduleConfig{
			Enabled:      v.GetBool("schedule.enabled"),
			RunAt:        v.GetString("schedule.run_at"),
			LookbackDays: v.GetInt("schedule.lookback_days"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func databaseConfig(v *viper.Viper, section string) DatabaseConfig {
	return DatabaseConfig{
		Driver:          v.GetString(section + ".driver"),
		Host:            v.GetString(section + ".host"),
		Port:            v.GetInt(section + ".port"),
		User:            v.GetString(section + ".user"),
		Password:        v.GetString(section + ".password"),
		DBName:          v.GetString(section + ".dbname"),
		SSLMode:         v.GetString(section + ".sslmode"),
		Path:            v.GetString(section + ".path"),
		MaxOpenConns:    v.GetInt(section + ".max_open_conns"),
		MaxIdleConns:    v.GetInt(section + ".max_idle_conns"),
		ConnMaxLifetime: v.GetInt(section + ".conn_max_lifetime"),
		ConnMaxIdleTime: v.GetInt(section + ".conn_max_idle_time"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-reports"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.SQLLevel == "" {
		cfg.Log.SQLLevel = "warn"
	}

	applyDatabaseDefaults(&cfg.Ledger, "pos")
	applyDatabaseDefaults(&cfg.SinkDatabase, "pos_reports")

	if cfg.Report.BusinessDayStart == "" {
		cfg.Report.BusinessDayStart = "06:30"
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "UTC"
	}
	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = SinkFile
	}
	if cfg.Sink.Directory == "" {
		cfg.Sink.Directory = "reports"
	}
	if cfg.Index.Kind == "" {
		cfg.Index.Kind = IndexFile
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "report_index.json"
	}
	if cfg.Index.RedisKey == "" {
		cfg.Index.RedisKey = "pos-reports:index"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "pos.reports"
	}
	if cfg.AMQP.RoutingKey == "" {
		cfg.AMQP.RoutingKey = "report.generated"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 500 * time.Millisecond
	}

	if cfg.Schedule.RunAt == "" {
		cfg.Schedule.RunAt = "07:00"
	}
	if cfg.Schedule.LookbackDays == 0 {
		cfg.Schedule.LookbackDays = 3
	}
}

func applyDatabaseDefaults(d *DatabaseConfig, dbName string) {
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}
	if d.Host == "" {
		d.Host = "localhost"
	}
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.User == "" {
		d.User = "postgres"
	}
	if d.DBName == "" {
		d.DBName = dbName
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.Path == "" {
		d.Path = dbName + ".db"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 5
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 2
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = 60
	}
	if d.ConnMaxIdleTime == 0 {
		d.ConnMaxIdleTime = 30
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := c.Ledger.validate("ledger"); err != nil {
		return err
	}
	if err := c.SinkDatabase.validate("sink_database"); err != nil {
		return err
	}
	if _, err := c.Report.DayStart(); err != nil {
		return fmt.Errorf("report.business_day_start: %w", err)
	}
	if _, err := c.Report.Location(); err != nil {
		return fmt.Errorf("report.timezone: %w", err)
	}

	switch c.Sink.Kind {
	case SinkFile, SinkDatabase:
	case SinkS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("sink.kind must be one of file, database, s3, got %q", c.Sink.Kind)
	}
	switch c.Index.Kind {
	case IndexFile, IndexRedis:
	case IndexS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 index")
		}
	default:
		return fmt.Errorf("index.kind must be one of file, s3, redis, got %q", c.Index.Kind)
	}
	if c.Sink.Notify && c.AMQP.URL == "" {
		return fmt.Errorf("amqp.url is required when sink.notify is enabled")
	}

	if _, err := report.ParseTimeOfDay(c.Schedule.RunAt); err != nil {
		return fmt.Errorf("schedule.run_at: %w", err)
	}
	if c.Schedule.LookbackDays < 1 {
		return fmt.Errorf("schedule.lookback_days must be positive, got %d", c.Schedule.LookbackDays)
	}

	if c.App.Env == "production" {
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServerAddress == "" {
		return fmt.Errorf("telemetry.profiling_server_address is required when profiling is enabled")
	}

	return nil
}

func (d *DatabaseConfig) validate(section string) error {
	if d.Driver != DriverPostgres && d.Driver != DriverSQLite {
		return fmt.Errorf("%s.driver must be postgres or sqlite, got %q", section, d.Driver)
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("%s.max_open_conns must be positive", section)
	}
	if d.MaxIdleConns < 0 {
		return fmt.Errorf("%s.max_idle_conns cannot be negative", section)
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("%s.max_idle_conns (%d) cannot exceed %s.max_open_conns (%d)",
			section, d.MaxIdleConns, section, d.MaxOpenConns)
	}
	return nil
}

// DSN returns the connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// DayStart parses the business-day start time
func (r ReportConfig) DayStart() (report.TimeOfDay, error) {
	return report.ParseTimeOfDay(r.BusinessDayStart)
}

// Location loads the ledger's time zone
func (r ReportConfig) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
