package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/strata/dialect"
)

// Statement kinds passed to tracers.
const (
	opQuery = "query"
	opExec  = "exec"
)

// tracer runs one statement for a wrapping driver. run executes it on the
// wrapped connection.
type tracer func(ctx context.Context, op, query string, args any, run func() error) error

// tracedTx runs the statements of a transaction through the tracer of the
// driver that started it.
type tracedTx struct {
	dialect.Tx
	trace tracer
	end   func(outcome string) // nil when the driver ignores tx ends
}

func (tx *tracedTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.trace(ctx, opQuery, query, args, func() error { return tx.Tx.Query(ctx, query, args, v) })
}

func (tx *tracedTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.trace(ctx, opExec, query, args, func() error { return tx.Tx.Exec(ctx, query, args, v) })
}

func (tx *tracedTx) Commit() error {
	if tx.end != nil {
		tx.end("commit")
	}
	return tx.Tx.Commit()
}

func (tx *tracedTx) Rollback() error {
	if tx.end != nil {
		tx.end("rollback")
	}
	return tx.Tx.Rollback()
}

// QueryStats counts the statements run through a StatsDriver. It is safe
// for concurrent use.
type QueryStats struct {
	queries atomic.Int64
	execs   atomic.Int64
	slow    atomic.Int64
	failed  atomic.Int64
	busy    atomic.Int64 // nanoseconds
}

// StatsSnapshot is a copy of the counters of QueryStats.
type StatsSnapshot struct {
	Queries int64
	Execs   int64
	Slow    int64 // statements above the slow threshold
	Failed  int64
	Busy    time.Duration // total time spent in statements
}

// Stats copies the current counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		Queries: s.queries.Load(),
		Execs:   s.execs.Load(),
		Slow:    s.slow.Load(),
		Failed:  s.failed.Load(),
		Busy:    time.Duration(s.busy.Load()),
	}
}

// Reset zeroes the counters.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.slow, &s.failed, &s.busy} {
		c.Store(0)
	}
}

func (s *QueryStats) count(op string, took time.Duration, slow bool, err error) {
	if op == opQuery {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	s.busy.Add(int64(took))
	if slow {
		s.slow.Add(1)
	}
	if err != nil {
		s.failed.Add(1)
	}
}

// Avg returns the mean duration of a statement.
func (s StatsSnapshot) Avg() time.Duration {
	n := s.Queries + s.Execs
	if n == 0 {
		return 0
	}
	return s.Busy / time.Duration(n)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d slow=%d failed=%d busy=%s avg=%s",
		s.Queries, s.Execs, s.Slow, s.Failed, s.Busy, s.Avg())
}

// SlowQueryHook is called with every statement slower than the threshold
// of a StatsDriver.
type SlowQueryHook func(ctx context.Context, query string, took time.Duration)

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// It defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.threshold.Store(int64(d)) }
}

// WithSlowQueryHook adds a hook called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.hooks = append(s.hooks, hook) }
}

// WithSlowQueryLog warns about slow statements on logger. A nil logger
// means slog.Default.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, took time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", took, "query", query)
	})
}

// StatsDriver counts the statements of a driver and reports the slow ones.
//
//	drv := sql.NewStatsDriver(base,
//		sql.WithSlowThreshold(200*time.Millisecond),
//		sql.WithSlowQueryLog(logger),
//	)
//	defer fmt.Println(drv.QueryStats().Stats())
type StatsDriver struct {
	dialect.Driver
	stats     QueryStats
	threshold atomic.Int64
	hooks     []SlowQueryHook
}

// NewStatsDriver wraps drv.
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	d := &StatsDriver{Driver: drv}
	d.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// QueryStats returns the live counters of the driver.
func (d *StatsDriver) QueryStats() *QueryStats { return &d.stats }

// SlowThreshold returns the duration above which a statement is slow.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold changes the slow threshold of a running driver.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) {
	d.threshold.Store(int64(t))
}

func (d *StatsDriver) trace(ctx context.Context, op, query string, _ any, run func() error) error {
	start := time.Now()
	err := run()
	took := time.Since(start)
	slow := took > d.SlowThreshold()
	d.stats.count(op, took, slow, err)
	if slow {
		for _, h := range d.hooks {
			h(ctx, query, took)
		}
	}
	return err
}

func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.trace(ctx, opQuery, query, args, func() error { return d.Driver.Query(ctx, query, args, v) })
}

func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.trace(ctx, opExec, query, args, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &tracedTx{Tx: tx, trace: d.trace}, nil
}

// DebugDriver logs every statement of a driver at debug level.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv. A nil logger means slog.Default.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

func (d *DebugDriver) tracer(tx bool) tracer {
	return func(ctx context.Context, op, query string, args any, run func() error) error {
		attrs := []any{"sql", query, "args", args}
		if tx {
			attrs = append(attrs, "tx", true)
		}
		d.logger.DebugContext(ctx, op, attrs...)
		return run()
	}
}

func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.tracer(false)(ctx, opQuery, query, args, func() error { return d.Driver.Query(ctx, query, args, v) })
}

func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.tracer(false)(ctx, opExec, query, args, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

// Tx starts a transaction and logs its statements and its end.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "begin transaction")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &tracedTx{
		Tx:    tx,
		trace: d.tracer(true),
		end:   func(outcome string) { d.logger.Debug(outcome + " transaction") },
	}, nil
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*tracedTx)(nil)
)
