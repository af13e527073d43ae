package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/syssam/strata/dialect"
)

// Result is the outcome of an Exec.
type Result = sql.Result

// Rows receives the rows of a Query. It holds the scanner by value so the
// locks of sql.Rows are never copied.
type Rows struct{ ColumnScanner }

// ColumnScanner is the subset of *sql.Rows the mapper reads rows with.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// stdConn is implemented by *sql.DB and *sql.Tx.
type stdConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn adapts a stdConn to dialect.ExecQuerier.
type conn struct{ std stdConn }

func (c conn) Exec(ctx context.Context, query string, args, v any) error {
	var res *Result
	switch v := v.(type) {
	case nil:
	case *Result:
		res = v
	default:
		return fmt.Errorf("dialect/sql: exec into %T, want *sql.Result", v)
	}
	list, err := arguments(args)
	if err != nil {
		return err
	}
	r, err := c.std.ExecContext(ctx, query, list...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

func (c conn) Query(ctx context.Context, query string, args, v any) error {
	rows, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query into %T, want *sql.Rows", v)
	}
	list, err := arguments(args)
	if err != nil {
		return err
	}
	rs, err := c.std.QueryContext(ctx, query, list...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows.ColumnScanner = rs
	return nil
}

// arguments unpacks the args of a dialect call. Nil means none.
func arguments(args any) ([]any, error) {
	if args == nil {
		return nil, nil
	}
	list, ok := args.([]any)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: args of type %T, want []any", args)
	}
	return list, nil
}

// Driver runs the statements of a dialect on a *sql.DB.
type Driver struct {
	conn
	db      *sql.DB
	dialect string
}

// Open opens a database with the database/sql driver registered under the
// dialect name.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialect, db), nil
}

// OpenDB wraps an opened database.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return &Driver{conn: conn{db}, db: db, dialect: dialect}
}

// DB returns the wrapped database.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect returns the dialect name the driver was opened with.
func (d *Driver) Dialect() string { return d.dialect }

// Close closes the database.
func (d *Driver) Close() error { return d.db.Close() }

// Tx begins a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{conn: conn{tx}, tx: tx}, nil
}

// Tx is a transaction of a Driver.
type Tx struct {
	conn
	tx *sql.Tx
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

// ScanMaps reads the remaining rows of rs, keyed by column label, then
// closes rs. Byte slices are copied since drivers reuse their buffers.
func ScanMaps(rs ColumnScanner) (maps []map[string]any, err error) {
	defer func() { err = errors.Join(err, rs.Close()) }()
	labels, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	values := make([]any, len(labels))
	ptrs := make([]any, len(labels))
	for rs.Next() {
		for i := range values {
			values[i] = nil
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(map[string]any, len(labels))
		for i, label := range labels {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = append([]byte(nil), b...)
			}
			row[label] = v
		}
		maps = append(maps, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return maps, nil
}
