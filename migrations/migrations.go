// Package migrations carries the schema for every supported dialect and
// drives it with golang-migrate. The SQL files are embedded, so binaries need
// no migrations directory at runtime.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql mysql/*.sql sqlite3/*.sql
var files embed.FS

// Supported dialects. Each names both a directory of this package and the
// golang-migrate database driver that runs it.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite3"
)

// Dialect maps a database/sql driver name onto the schema dialect.
func Dialect(driverName string) (string, error) {
	switch driverName {
	case "pgx", "postgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("migrations: no schema for driver %q", driverName)
}

// URL turns a database/sql DSN into the URL golang-migrate expects. MySQL
// and SQLite DSNs carry no scheme, so one is added; PostgreSQL must already
// be given as a postgres:// URL.
func URL(dialect, dsn string) string {
	if strings.Contains(dsn, "://") {
		return dsn
	}
	switch dialect {
	case MySQL, SQLite:
		return dialect + "://" + dsn
	}
	return dsn
}

// New returns a migrator over the embedded files for dialect.
// The caller must Close it.
func New(dialect, databaseURL string) (*migrate.Migrate, error) {
	switch dialect {
	case Postgres, MySQL, SQLite:
	default:
		return nil, fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
	src, err := iofs.New(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, URL(dialect, databaseURL))
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return m, nil
}

// NewFromPath returns a migrator reading SQL files from dir instead of the
// embedded set.
func NewFromPath(dir, dialect, databaseURL string) (*migrate.Migrate, error) {
	m, err := migrate.New("file://"+dir, URL(dialect, databaseURL))
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	return m, nil
}

// Up applies every pending embedded migration. Running it against an
// up-to-date schema is not an error.
func Up(dialect, databaseURL string, logger *slog.Logger) (err error) {
	m, err := New(dialect, databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()
	if logger != nil {
		m.Log = NewLogger(logger, false)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Logger — golang-migrate output through slog
// ─────────────────────────────────────────────────────────────────────────────

// Logger adapts *slog.Logger to migrate.Logger.
type Logger struct {
	l       *slog.Logger
	verbose bool
}

// NewLogger returns a migrate.Logger writing to l.
func NewLogger(l *slog.Logger, verbose bool) *Logger {
	return &Logger{l: l, verbose: verbose}
}

func (l *Logger) Printf(format string, v ...any) {
	l.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *Logger) Verbose() bool { return l.verbose }

var _ migrate.Logger = (*Logger)(nil)
