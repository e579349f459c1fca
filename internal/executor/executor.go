// Package executor owns one connection to one ClickHouse instance and
// executes queries with bounded retries. Failure never escapes the
// Execute contract: it is carried in the returned Outcome.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Config holds connection and retry settings for one Executor.
type Config struct {
	DSN        string
	Instance   string
	MaxRetries int           // retries after the initial attempt
	RetryDelay time.Duration // fixed inter-attempt delay
}

// Outcome is the result of one Execute call. Callers must check Err:
// on failure Rows is empty and Err describes the final error.
type Outcome struct {
	Rows       [][]any
	Columns    []string
	DurationMs float64
	Err        error
}

// Executor is a resilient single-connection query client. It is not
// safe for concurrent use; each concurrent consumer needs its own
// instance bound to its own connection.
type Executor struct {
	cfg  Config
	log  *zap.Logger
	conn *sql.DB

	// injected for tests
	open  func() (*sql.DB, error)
	sleep func(context.Context, time.Duration) error
}

// New creates an Executor. The connection is established lazily on the
// first Execute or Connect call.
func New(cfg Config, log *zap.Logger) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &Executor{cfg: cfg, log: log}
	e.open = e.openClickHouse
	e.sleep = sleepWithContext
	return e
}

func (e *Executor) openClickHouse() (*sql.DB, error) {
	opts, err := clickhouse.ParseDSN(e.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ClickHouse DSN: %w", err)
	}

	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.ConnMaxLifetime = time.Hour
	opts.ReadTimeout = 10 * time.Minute
	opts.DialTimeout = 30 * time.Second
	// Readonly users reject session settings such as max_execution_time.
	opts.Settings = nil

	conn := clickhouse.OpenDB(opts)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return conn, nil
}

// Connect establishes the connection. It is idempotent: a no-op when
// the Executor is already connected.
func (e *Executor) Connect() error {
	if e.conn != nil {
		return nil
	}

	conn, err := e.open()
	if err != nil {
		return err
	}
	e.conn = conn
	e.log.Info("connected to ClickHouse", zap.String("instance", e.cfg.Instance))
	return nil
}

// Close releases the connection. A dirty close is logged, not raised,
// so it is safe on every exit path.
func (e *Executor) Close() {
	if e.conn == nil {
		return
	}
	if err := e.conn.Close(); err != nil {
		e.log.Warn("error disconnecting from ClickHouse",
			zap.String("instance", e.cfg.Instance), zap.Error(err))
	}
	e.conn = nil
}

// drop discards a connection presumed broken so the next attempt
// re-establishes it.
func (e *Executor) drop() {
	if e.conn == nil {
		return
	}
	_ = e.conn.Close()
	e.conn = nil
}

// Execute runs a query with bounded retries on transport errors.
// Query-level errors (malformed SQL, auth) fail immediately. The
// wall-clock duration is recorded on every outcome.
func (e *Executor) Execute(ctx context.Context, query string, args ...any) Outcome {
	start := time.Now()
	attempts := e.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := contextError(ctx); err != nil {
			lastErr = err
			break
		}

		rows, cols, err := e.tryQuery(ctx, query, args...)
		if err == nil {
			return Outcome{
				Rows:       rows,
				Columns:    cols,
				DurationMs: float64(time.Since(start)) / float64(time.Millisecond),
			}
		}
		lastErr = err

		if !isTransportError(err) || attempt == attempts {
			break
		}

		e.log.Warn("query attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", e.cfg.RetryDelay),
			zap.Error(err))
		e.drop()

		if serr := e.sleep(ctx, e.cfg.RetryDelay); serr != nil {
			lastErr = serr
			break
		}
	}

	return Outcome{
		Rows:       nil,
		Columns:    nil,
		DurationMs: float64(time.Since(start)) / float64(time.Millisecond),
		Err:        lastErr,
	}
}

func (e *Executor) tryQuery(ctx context.Context, query string, args ...any) ([][]any, []string, error) {
	if err := e.Connect(); err != nil {
		return nil, nil, err
	}

	rows, err := e.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return out, cols, nil
}

// TestConnection probes the instance with a trivial query.
func (e *Executor) TestConnection(ctx context.Context) bool {
	outcome := e.Execute(ctx, "SELECT 1")
	return outcome.Err == nil && len(outcome.Rows) > 0
}

// ServerInfo describes the connected ClickHouse server.
type ServerInfo struct {
	Version       string
	UptimeSeconds int64
	Instance      string
}

// ServerInfo fetches version and uptime. Fields default to zero values
// when the probe fails.
func (e *Executor) ServerInfo(ctx context.Context) ServerInfo {
	info := ServerInfo{Version: "unknown", Instance: e.cfg.Instance}

	outcome := e.Execute(ctx, "SELECT version(), uptime()")
	if outcome.Err != nil || len(outcome.Rows) == 0 {
		return info
	}

	if v, ok := outcome.Rows[0][0].(string); ok {
		info.Version = v
	}
	info.UptimeSeconds = toInt64(outcome.Rows[0][1])
	return info
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
