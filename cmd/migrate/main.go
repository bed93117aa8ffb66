// Command migrate manages the schema of the report sink database. The
// ledger is never touched. Schema commands use the migrations built into
// the binary unless -path is given.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/logger"
	"github.com/posreports/backend/internal/infrastructure/migration"
	"github.com/posreports/backend/migrations"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against the sink database
type schemaCommand struct {
	args  string
	help  string
	nargs int
	run   func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var schemaCommands = map[string]schemaCommand{
	"up": {help: "Apply all pending migrations", run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	}},
	"down": {help: "Roll back all migrations", run: func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	}},
	"steps": {args: "<n>", help: "Apply n migrations (negative rolls back)", nargs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}},
	"goto": {args: "<version>", help: "Migrate up or down to a version", nargs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(v))
	}},
	"status": {help: "Show the applied and newest versions", run: func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		st, err := m.Status()
		if err != nil {
			return err
		}
		log.Info("Schema status",
			zap.Uint("current", st.Current),
			zap.Uint("latest", st.Latest),
			zap.Bool("pending", st.Pending()),
			zap.Bool("dirty", st.Dirty),
		)
		return nil
	}},
	"force": {args: "<version>", help: "Mark a version applied and clean", nargs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(v)
	}},
	"drop": {args: "-confirm", help: "Drop every object in the sink database", nargs: 1, run: func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		if args[0] != "-confirm" && args[0] != "--confirm" {
			return fmt.Errorf("%w: drop needs -confirm", errUsage)
		}
		return m.Drop()
	}},
}

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (default: ./config.toml)")
	dir := flag.String("path", "", "Migrations directory (default: the built-in set; ./migrations for create)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{
		Level:  *logLevel,
		Format: "console",
		Fields: map[string]string{"process": "migrate"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	command, rest := args[0], args[1:]
	switch command {
	case "create", "list":
		err = runFileCommand(command, rest, *dir, log)
	default:
		err = runSchemaCommand(command, rest, *configPath, *dir, log)
	}
	if errors.Is(err, errUsage) {
		log.Error(err.Error())
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

// runFileCommand handles the commands that only touch migration files
func runFileCommand(command string, args []string, dir string, log *zap.Logger) error {
	if command == "list" {
		var (
			names []string
			err   error
		)
		source := dir
		if dir == "" {
			source = "built-in"
			names, err = migration.List(migrations.FS)
		} else {
			names, err = migration.ListMigrations(dir)
		}
		if err != nil {
			return err
		}
		log.Info("Migrations", zap.String("source", source), zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}

	if dir == "" {
		dir = defaultMigrationsDir
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: create <name> [description]", errUsage)
	}
	description := strings.Join(args[1:], " ")
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

// runSchemaCommand opens the sink database named by the configuration and
// runs command against it.
func runSchemaCommand(command string, args []string, configPath, dir string, log *zap.Logger) error {
	cmd, ok := schemaCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	if len(args) < cmd.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, command, cmd.args)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	dbCfg := cfg.SinkDatabase
	driver := "postgres"
	if dbCfg.Driver == config.DriverSQLite {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("open sink database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sink database: %w", err)
	}

	var opts []migration.Option
	if dir != "" {
		opts = append(opts, migration.FromDir(dir))
	}
	m, err := migration.New(db, dbCfg.Driver, log, opts...)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	log.Info("Running migration command",
		zap.String("command", command),
		zap.String("driver", dbCfg.Driver),
		zap.String("database", dbCfg.DBName),
	)
	return cmd.run(m, args, log)
}

func usage() {
	names := make([]string, 0, len(schemaCommands))
	for name := range schemaCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Manage the POS report sink schema.\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		c := schemaCommands[name]
		fmt.Fprintf(&b, "  %-22s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
	fmt.Fprintf(&b, "  %-22s %s\n", "create <name> [desc]", "Create an up/down migration pair")
	fmt.Fprintf(&b, "  %-22s %s\n", "list", "List the built-in migrations, or those under -path")
	b.WriteString("\nFlags:\n")
	fmt.Fprint(os.Stderr, b.String())
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr, "\nThe sink database is read from the sink_database section; POS_SINK_DATABASE_* variables override it.\n")
}
