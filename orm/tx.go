package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/strata/dialect"
)

// Tx is a client running its statements in a transaction. Lists bound by
// the objects of a transaction load through it, so they must be loaded
// before Commit or Rollback.
type Tx struct {
	*Client
	tx dialect.Tx
}

// Tx starts a transaction.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if _, ok := c.drv.(*txDriver); ok {
		return nil, errors.New("orm: cannot start a transaction within a transaction")
	}
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("orm: starting a transaction: %w", err)
	}
	cc := *c
	cc.setDriver(&txDriver{drv: c.drv, tx: tx})
	return &Tx{Client: &cc, tx: tx}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// WithTx runs fn in a transaction, committed if fn returns nil and rolled
// back otherwise. A panic in fn rolls back and is re-raised.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("orm: committing transaction: %w", err)
	}
	return nil
}

// txDriver runs the statements of a client in one transaction. Its Tx
// method returns the driver itself, with no-op Commit and Rollback, so
// that schema creation joins the running transaction.
type txDriver struct {
	drv dialect.Driver
	tx  dialect.Tx
}

var _ dialect.Driver = (*txDriver)(nil)

func (d *txDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.tx.Exec(ctx, query, args, v)
}

func (d *txDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.tx.Query(ctx, query, args, v)
}

func (d *txDriver) Tx(context.Context) (dialect.Tx, error) { return d, nil }

func (d *txDriver) Dialect() string { return d.drv.Dialect() }

// Close is a no-op; the connection belongs to the client that started the
// transaction.
func (*txDriver) Close() error { return nil }

func (*txDriver) Commit() error { return nil }

func (*txDriver) Rollback() error { return nil }
