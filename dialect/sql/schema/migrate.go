package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/syssam/strata/dialect"
)

// Migrate creates the tables of a schema on a database.
type Migrate struct {
	drv         dialect.Driver
	ifNotExists bool
	diff        bool
	validate    []ValidateOption
	hooks       []ApplyHook
	logger      *slog.Logger
}

// MigrateOption allows configuring Migrate using functional arguments.
type MigrateOption func(*Migrate)

// WithIfNotExists emits CREATE TABLE IF NOT EXISTS statements.
func WithIfNotExists(b bool) MigrateOption {
	return func(m *Migrate) {
		m.ifNotExists = b
	}
}

// WithDiff inspects the database before creating the tables and validates
// the difference between the current and the desired tables. Tables that
// already exist are left untouched. The options relax the validation.
func WithDiff(opts ...ValidateOption) MigrateOption {
	return func(m *Migrate) {
		m.diff = true
		m.validate = opts
	}
}

// WithLogger sets the logger reporting statements and validation warnings.
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithApplyHook adds a list of ApplyHook to the schema migration.
func WithApplyHook(hooks ...ApplyHook) MigrateOption {
	return func(m *Migrate) {
		m.hooks = append(m.hooks, hooks...)
	}
}

type (
	// Applier is the interface that wraps the Apply method.
	Applier interface {
		// Apply executes the statements on the given connection.
		Apply(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error
	}

	// ApplyFunc type is an adapter to allow the use of ordinary functions
	// as Applier.
	ApplyFunc func(context.Context, dialect.ExecQuerier, []string) error

	// ApplyHook defines the "migration applying middleware". A function
	// that gets an Applier and returns an Applier.
	ApplyHook func(Applier) Applier
)

// Apply calls f(ctx, conn, stmts).
func (f ApplyFunc) Apply(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error {
	return f(ctx, conn, stmts)
}

// NewMigrate creates a migration structure for the given SQL driver.
func NewMigrate(drv dialect.Driver, opts ...MigrateOption) (*Migrate, error) {
	if drv == nil {
		return nil, errors.New("schema: nil driver")
	}
	if d := drv.Dialect(); d != dialect.SQLite {
		return nil, fmt.Errorf("schema: unsupported dialect %q", d)
	}
	m := &Migrate{drv: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create validates the given tables and creates them in one transaction.
func (m *Migrate) Create(ctx context.Context, tables ...*Table) error {
	if res := ValidateSchema(tables); res.HasErrors() {
		return fmt.Errorf("schema: invalid tables:\n%s", res)
	}
	if m.diff {
		var err error
		if tables, err = m.pending(ctx, tables); err != nil {
			return err
		}
	}
	stmts, err := Statements(tables, m.ifNotExists)
	if err != nil {
		return err
	}
	var applier Applier = ApplyFunc(m.apply)
	for i := len(m.hooks) - 1; i >= 0; i-- {
		applier = m.hooks[i](applier)
	}
	tx, err := m.drv.Tx(ctx)
	if err != nil {
		return err
	}
	if err := applier.Apply(ctx, tx, stmts); err != nil {
		return rollback(tx, err)
	}
	return tx.Commit()
}

// pending returns the tables missing from the database.
func (m *Migrate) pending(ctx context.Context, tables []*Table) ([]*Table, error) {
	current, err := Inspect(ctx, m.drv)
	if err != nil {
		return nil, err
	}
	res := ValidateDiff(current, tables, m.validate...)
	for _, w := range res.Warnings {
		m.logger.WarnContext(ctx, "schema difference", "table", w.Table, "column", w.Column, "reason", w.Reason, "breaking", w.Breaking)
	}
	if res.HasErrors() {
		return nil, fmt.Errorf("schema: incompatible changes:\n%s", res)
	}
	exists := make(map[string]bool, len(current))
	for _, t := range current {
		exists[t.Name] = true
	}
	var missing []*Table
	for _, t := range tables {
		if !exists[t.Name] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

func (m *Migrate) apply(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error {
	for _, stmt := range stmts {
		m.logger.DebugContext(ctx, "exec", "statement", stmt)
		if err := conn.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// Statements returns the CREATE TABLE statements of the tables.
func Statements(tables []*Table, ifNotExists bool) ([]string, error) {
	stmts := make([]string, 0, len(tables))
	for _, t := range tables {
		stmt, err := t.CreateSQL(ifNotExists)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// WriteTo writes the DDL of the tables to w, one statement per line.
func WriteTo(w io.Writer, tables []*Table, ifNotExists bool) error {
	stmts, err := Statements(tables, ifNotExists)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := io.WriteString(w, stmt+";\n"); err != nil {
			return err
		}
	}
	return nil
}

// rollback calls to tx.Rollback and wraps the given error with the rollback
// error if occurred.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}
