package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/Skryldev/messenger-directory/config"
	"github.com/Skryldev/messenger-directory/migrations"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	args := cfg.Args
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	dialect, err := migrations.Dialect(cfg.DriverName)
	if err != nil {
		fatalf("%v", err)
	}

	var m *migrate.Migrate
	if cfg.MigrationsPath != "" {
		m, err = migrations.NewFromPath(cfg.MigrationsPath, dialect, cfg.DatabaseURL)
	} else {
		m, err = migrations.New(dialect, cfg.DatabaseURL)
	}
	if err != nil {
		fatalf("migration init failed: %v", err)
	}
	defer m.Close()

	m.Log = migrations.NewLogger(logger, cfg.LogLevel == "debug")

	command := args[0]
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("up failed: %v", err)
		}
		slog.Info("migrations: up completed", "dialect", dialect)

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatalf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("down failed: %v", err)
		}
		slog.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatalf("version failed: %v", err)
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			fatalf("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			fatalf("force failed: %v", err)
		}
		slog.Info("migrations: forced", "version", v)

	case "drop":
		fmt.Fprintln(os.Stderr, "WARNING: drop will destroy the accounts and messages tables. Type 'yes' to confirm:")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" {
			fmt.Println("aborted")
			os.Exit(0)
		}
		if err := m.Drop(); err != nil {
			fatalf("drop failed: %v", err)
		}
		slog.Info("migrations: all tables dropped")

	default:
		usage()
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [flags] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)
  drop         Drop all tables (dev only)

Flags:
  -d URL         Database URL (overrides DATABASE_URL)
  -driver NAME   pgx, postgres, mysql or sqlite3 (overrides DB_DRIVER)

Environment:
  DATABASE_URL      Database URL. MySQL and SQLite DSNs are accepted as-is.
  DB_DRIVER         Selects the schema dialect (default: pgx).
  MIGRATIONS_PATH   Read migrations from this directory instead of the
                    set compiled into the binary.`)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
