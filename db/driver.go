package db

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - the placeholder style the driver expects
//   - providing a driver-specific ErrorMapper
//
// The database/sql driver itself is registered by blank-importing its
// package in the binary (lib/pq, pgx/v5/stdlib, go-sql-driver/mysql,
// mattn/go-sqlite3).
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper

	// BindStyle reports the placeholder syntax the driver understands.
	BindStyle() BindStyle
}

// DriverOptions carries the most common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered (use
// ReplaceDriver to override).
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// ReplaceDriver upserts a driver in the registry (no panic on collision).
func ReplaceDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options,
// removing the need for manual DSN construction.
//
//	store, err := db.OpenWithDriver("pgx", db.DriverOptions{
//	    Host: "localhost", Port: 5432,
//	    User: "app", Password: "secret", Database: "messenger",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	return Open(cfg)
}

// sortedExtra renders Extra in key order so DSNs are stable.
func sortedExtra(extra map[string]string, sep string) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+extra[k])
	}
	return strings.Join(parts, sep)
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapters (lib/pq, pgx)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
// Import _ "github.com/lib/pq" alongside this to activate.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
	if extra := sortedExtra(o.Extra, " "); extra != "" {
		dsn += " " + extra
	}
	return dsn, nil
}

func (PostgresDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (PostgresDriver) BindStyle() BindStyle     { return BindDollar }

// PgxDriver is the jackc/pgx stdlib adapter.
// Import _ "github.com/jackc/pgx/v5/stdlib" alongside this to activate.
type PgxDriver struct{}

func (PgxDriver) Name() string { return "pgx" }

// DSN builds a postgres:// URL, which pgx and golang-migrate both accept.
func (PgxDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("pgx driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     fmt.Sprintf("%s:%d", o.Host, port),
		Path:     "/" + o.Database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (PgxDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (PgxDriver) BindStyle() BindStyle     { return BindDollar }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
//
// clientFoundRows makes an UPDATE that leaves a row unchanged still count as
// affected; repositories rely on RowsAffected to detect missing rows.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&clientFoundRows=true",
		o.User, o.Password, o.Host, port, o.Database)
	if extra := sortedExtra(o.Extra, "&"); extra != "" {
		dsn += "&" + extra
	}
	return dsn, nil
}

func (MySQLDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (MySQLDriver) BindStyle() BindStyle     { return BindQuestion }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	extra := map[string]string{"_foreign_keys": "on"}
	for k, v := range o.Extra {
		extra[k] = v
	}
	return o.Database + "?" + sortedExtra(extra, "&"), nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }
func (SQLiteDriver) BindStyle() BindStyle     { return BindOrdinal }

// ─────────────────────────────────────────────────────────────────────────────
// Auto-register built-in drivers at init time
// ─────────────────────────────────────────────────────────────────────────────

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
}
