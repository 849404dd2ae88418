package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/molajo/dialect"
)

// QueryStats holds statement counters.
type QueryStats struct {
	Queries  atomic.Int64
	Execs    atomic.Int64
	Duration atomic.Int64 // nanoseconds
	Slow     atomic.Int64
	Errors   atomic.Int64
}

// Snapshot returns a point-in-time copy of the counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.Queries.Load(),
		Execs:    s.Execs.Load(),
		Duration: time.Duration(s.Duration.Load()),
		Slow:     s.Slow.Load(),
		Errors:   s.Errors.Load(),
	}
}

// StatsSnapshot is a point-in-time snapshot of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

// String returns a human-readable summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Slow, s.Errors)
}

// DebugDriver wraps a dialect.Driver and logs every statement it runs.
// Statements slower than the slow threshold are logged at Warn.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
	slow   time.Duration
	stats  *QueryStats
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger. The default is slog.Default().
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.logger = l
	}
}

// DebugWithSlowThreshold sets the duration above which a statement counts as slow.
// Default is 100ms.
func DebugWithSlowThreshold(t time.Duration) DebugOption {
	return func(d *DebugDriver) {
		d.slow = t
	}
}

// NewDebugDriver wraps drv with statement logging.
//
//	drv, _ := sql.Open("sqlite", "file:molajo.db")
//	dbg := sql.NewDebugDriver(drv, sql.DebugWithLogger(logger))
//	err := sql.QueryBuilder(ctx, dbg, b, &rows)
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		Driver: drv,
		logger: slog.Default(),
		slow:   100 * time.Millisecond,
		stats:  &QueryStats{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns the statement counters.
func (d *DebugDriver) Stats() *QueryStats { return d.stats }

// Query runs a query and logs it.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, "query", query, args, start, err)
	return err
}

// Exec runs a statement and logs it.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, "exec", query, args, start, err)
	return err
}

// Tx starts a transaction whose statements are logged.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.DebugContext(ctx, "begin transaction", "dialect", d.Dialect())
	return &DebugTx{Tx: tx, driver: d}, nil
}

func (d *DebugDriver) record(ctx context.Context, kind, query string, args any, start time.Time, err error) {
	elapsed := time.Since(start)
	if kind == "query" {
		d.stats.Queries.Add(1)
	} else {
		d.stats.Execs.Add(1)
	}
	d.stats.Duration.Add(int64(elapsed))
	attrs := []any{"dialect", d.Dialect(), "statement", query, "args", args, "duration", elapsed}
	switch {
	case err != nil:
		d.stats.Errors.Add(1)
		d.logger.ErrorContext(ctx, kind+" failed", append(attrs, "error", err)...)
	case elapsed > d.slow:
		d.stats.Slow.Add(1)
		d.logger.WarnContext(ctx, "slow "+kind, attrs...)
	default:
		d.logger.InfoContext(ctx, kind, attrs...)
	}
}

// DebugTx wraps a transaction with statement logging.
type DebugTx struct {
	dialect.Tx
	driver *DebugDriver
}

// Query runs a query within the transaction and logs it.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.driver.record(ctx, "query", query, args, start, err)
	return err
}

// Exec runs a statement within the transaction and logs it.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.driver.record(ctx, "exec", query, args, start, err)
	return err
}

// Commit commits the transaction and logs it.
func (tx *DebugTx) Commit() error {
	tx.driver.logger.Debug("commit transaction")
	return tx.Tx.Commit()
}

// Rollback rolls back the transaction and logs it.
func (tx *DebugTx) Rollback() error {
	tx.driver.logger.Debug("rollback transaction")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
