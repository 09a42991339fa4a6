package db

import (
	"context"
	"database/sql/driver"
	"log/slog"
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Hook interface
// ─────────────────────────────────────────────────────────────────────────────

// Hook is called before and after every statement execution.
//
// Implementations MUST be goroutine-safe and SHOULD be non-blocking.
// Panics inside a hook are recovered by the hook chain and logged.
type Hook interface {
	// BeforeQuery is invoked immediately before the statement is sent to the
	// database driver.
	BeforeQuery(ctx context.Context, query string, args []any)

	// AfterQuery is invoked after the driver returns. err is the (already
	// mapped) error returned to the caller, nil on success.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// hookChain — internal dispatcher
// ─────────────────────────────────────────────────────────────────────────────

type hookChain struct {
	hooks []Hook
}

func newHookChain(hooks []Hook) hookChain {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return hookChain{hooks: filtered}
}

func (c hookChain) Before(ctx context.Context, query string, args []any) {
	for _, h := range c.hooks {
		safeBeforeQuery(h, ctx, query, args)
	}
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c.hooks {
		safeAfterQuery(h, ctx, query, args, d, err)
	}
}

func safeBeforeQuery(h Hook, ctx context.Context, query string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("db: hook panic in BeforeQuery", "panic", r)
		}
	}()
	h.BeforeQuery(ctx, query, args)
}

func safeAfterQuery(h Hook, ctx context.Context, query string, args []any, d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("db: hook panic in AfterQuery", "panic", r)
		}
	}()
	h.AfterQuery(ctx, query, args, d, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Sensitive arguments
// ─────────────────────────────────────────────────────────────────────────────

// Sensitive marks a bound argument that must never reach a log line, such as
// a password hash. The driver receives the plain string; hooks see
// "[REDACTED]".
type Sensitive string

// Value implements driver.Valuer.
func (s Sensitive) Value() (driver.Value, error) { return string(s), nil }

// LogValue implements slog.LogValuer.
func (Sensitive) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// String keeps fmt verbs from printing the secret.
func (Sensitive) String() string { return "[REDACTED]" }

// RedactArgs returns a copy of args with every slog.LogValuer resolved, so
// Sensitive values come out as "[REDACTED]".
func RedactArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if v, ok := a.(slog.LogValuer); ok {
			out[i] = v.LogValue().Resolve().Any()
			continue
		}
		out[i] = a
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging hook
// ─────────────────────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs includes bound parameters in log entries. Sensitive values are
	// always redacted.
	LogArgs bool
}

// NewLogHook returns a Hook that emits structured log entries via slog.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &logHook{cfg: cfg, logger: logger}
}

type logHook struct {
	cfg    LogHookConfig
	logger *slog.Logger
}

func (h *logHook) BeforeQuery(_ context.Context, _ string, _ []any) {}

func (h *logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	attrs := []any{
		slog.String("query", trimQuery(query)),
		slog.Duration("duration", d),
	}
	if h.cfg.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", RedactArgs(args)))
	}

	// A missing row is an answer, not a failure.
	if err != nil && !IsNotFound(err) {
		h.logger.ErrorContext(ctx, "db: query error", append(attrs, slog.Any("error", err))...)
		return
	}

	if h.cfg.SlowQueryThreshold > 0 && d > h.cfg.SlowQueryThreshold {
		h.logger.WarnContext(ctx, "db: slow query", attrs...)
		return
	}

	h.logger.DebugContext(ctx, "db: query", attrs...)
}

func trimQuery(q string) string {
	if len(q) > 500 {
		return q[:500] + "…"
	}
	return q
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics hook
// ─────────────────────────────────────────────────────────────────────────────

// MetricsCollector receives one observation per statement.
type MetricsCollector interface {
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook returns a Hook that delegates to a MetricsCollector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return &metricsHook{c: collector}
}

type metricsHook struct{ c MetricsCollector }

func (h *metricsHook) BeforeQuery(_ context.Context, _ string, _ []any) {}
func (h *metricsHook) AfterQuery(_ context.Context, query string, _ []any, d time.Duration, err error) {
	h.c.RecordQuery(query, d, err == nil || IsNotFound(err))
}

// QueryStats is an in-process MetricsCollector that keeps totals.
type QueryStats struct {
	mu       sync.Mutex
	queries  int64
	failures int64
	total    time.Duration
	slowest  time.Duration
}

// RecordQuery implements MetricsCollector.
func (s *QueryStats) RecordQuery(_ string, d time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if !success {
		s.failures++
	}
	s.total += d
	if d > s.slowest {
		s.slowest = d
	}
}

// Snapshot returns the counters collected so far.
func (s *QueryStats) Snapshot() (queries, failures int64, total, slowest time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries, s.failures, s.total, s.slowest
}

// LogValue implements slog.LogValuer.
func (s *QueryStats) LogValue() slog.Value {
	q, f, total, slowest := s.Snapshot()
	return slog.GroupValue(
		slog.Int64("queries", q),
		slog.Int64("failures", f),
		slog.Duration("total", total),
		slog.Duration("slowest", slowest),
	)
}
