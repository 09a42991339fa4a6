// Package db is the relational store behind the account directory: a thin,
// SQL-first wrapper over database/sql. All SQL is explicit and written with
// PostgreSQL-style $N placeholders; the wrapper rebinds them for drivers
// that expect '?' and maps driver errors onto a small set of sentinels.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "pgx", "postgres", "mysql", or "sqlite3".
	DriverName string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default query timeout applied when no deadline is set on the context.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks executed around every statement (logging, metrics).
	// nil entries are silently skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB — the central type
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB. It adds hook dispatch,
// unified error mapping, placeholder rebinding and transaction management.
//
// All methods accept a context.Context so callers control timeouts and
// cancellation. The underlying *sql.DB is always accessible via Raw().
type DB struct {
	sqldb  *sql.DB
	cfg    Config
	hooks  hookChain
	errMap ErrorMapper
	bind   BindStyle
}

// Open opens the database described by cfg and verifies connectivity with Ping.
// Callers are responsible for calling Close() when the application shuts down.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	d := New(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db: ping: %w", d.mapErr(err))
	}

	return d, nil
}

// New wraps an already opened *sql.DB. Pool settings from cfg are applied;
// DSN is ignored. The bind style and error mapper come from the registered
// driver named by cfg.DriverName, falling back to $N and the default mapper
// for unknown names (sqlmock in tests, for instance).
func New(sqldb *sql.DB, cfg Config) *DB {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	d := &DB{
		sqldb:  sqldb,
		cfg:    cfg,
		hooks:  newHookChain(cfg.Hooks),
		errMap: DefaultErrorMapper(),
		bind:   BindDollar,
	}
	if drv, err := LookupDriver(cfg.DriverName); err == nil {
		d.bind = drv.BindStyle()
		d.errMap = ChainMapper(drv.ErrorMapper(), DefaultErrorMapper())
	}
	return d
}

// Raw returns the underlying *sql.DB for advanced use cases such as
// handing the connection to a migration tool.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// DriverName reports the database/sql driver this DB was opened with.
func (d *DB) DriverName() string { return d.cfg.DriverName }

// SetErrorMapper replaces the error mapper.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Close closes all pooled connections and frees resources.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics for monitoring.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Query execution helpers
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	q, a := Rebind(d.bind, query, args)
	res, err := d.sqldb.ExecContext(ctx, q, a...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows.
// The caller MUST close the returned *Rows; Close also releases the default
// deadline, which has to outlive this call because rows are read afterwards.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	q, a := Rebind(d.bind, query, args)
	rows, err := d.sqldb.QueryContext(ctx, q, a...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

// QueryRow executes a query expected to return at most one row.
// ErrNotFound is returned from Scan when no row matches. The default
// deadline is released by Scan.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := d.withDefaultTimeout(ctx)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	q, a := Rebind(d.bind, query, args)
	raw := d.sqldb.QueryRowContext(ctx, q, a...)
	d.hooks.After(ctx, query, args, time.Since(start), raw.Err())
	return &Row{raw: raw, errMap: d.errMap, cancel: cancel}
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row — wraps *sql.Row to translate errors uniformly
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
	cancel context.CancelFunc
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	if r.cancel != nil {
		defer r.cancel()
	}
	err := r.raw.Scan(dest...)
	if err == nil {
		return nil
	}
	return r.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rows — *sql.Rows that owns its statement deadline
// ─────────────────────────────────────────────────────────────────────────────

// Rows is *sql.Rows plus the cancel func of the deadline it was read under.
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

// Close closes the rows and releases the deadline.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
