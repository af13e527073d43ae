package sqlgraph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect/sql/sqlgraph"
)

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e codedError) Code() int     { return e.code }

func TestConstraintErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		err   error
		kind  sqlgraph.ConstraintKind
		match func(error) bool
	}{
		{"unique code", codedError{2067}, sqlgraph.UniqueConstraint, sqlgraph.IsUniqueConstraintError},
		{"primary key code", fmt.Errorf("exec: %w", codedError{1555}), sqlgraph.PrimaryKeyConstraint, sqlgraph.IsUniqueConstraintError},
		{"foreign key code", codedError{787}, sqlgraph.ForeignKeyConstraint, sqlgraph.IsForeignKeyConstraintError},
		{"not null code", codedError{1299}, sqlgraph.NotNullConstraint, sqlgraph.IsNotNullConstraintError},
		{"check code", codedError{275}, sqlgraph.CheckConstraint, sqlgraph.IsCheckConstraintError},
		{"unique message", errors.New("UNIQUE constraint failed: countries.name"), sqlgraph.UniqueConstraint, sqlgraph.IsUniqueConstraintError},
		{"foreign key message", errors.New("FOREIGN KEY constraint failed"), sqlgraph.ForeignKeyConstraint, sqlgraph.IsForeignKeyConstraintError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.match(tt.err))
			assert.True(t, sqlgraph.IsConstraintError(tt.err))
			wrapped := sqlgraph.WrapConstraint(tt.err)
			var ce *sqlgraph.ConstraintError
			require.ErrorAs(t, wrapped, &ce)
			assert.Equal(t, tt.kind, ce.Kind)
			assert.ErrorIs(t, wrapped, tt.err)
			assert.Same(t, wrapped, sqlgraph.WrapConstraint(wrapped))
		})
	}

	other := errors.New("database is locked")
	assert.False(t, sqlgraph.IsConstraintError(other))
	assert.False(t, sqlgraph.IsConstraintError(nil))
	assert.False(t, sqlgraph.IsUniqueConstraintError(codedError{787}))
	assert.Equal(t, other, sqlgraph.WrapConstraint(other))
	assert.NoError(t, sqlgraph.WrapConstraint(nil))
}

func TestConstraintErrors_SQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, drv := openLibrary(t)

	err := drv.Exec(ctx, `INSERT INTO countries (name) VALUES ('Italy')`, []any{}, nil)
	require.Error(t, err)
	assert.True(t, sqlgraph.IsUniqueConstraintError(err), "%v", err)

	err = drv.Exec(ctx, `INSERT INTO people (first_name, last_name, country_name) VALUES ('Rosalind', 'Franklin', 'Atlantis')`, []any{}, nil)
	require.Error(t, err)
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(err), "%v", err)

	err = drv.Exec(ctx, `INSERT INTO countries (name) VALUES (NULL)`, []any{}, nil)
	require.Error(t, err)
	assert.True(t, sqlgraph.IsNotNullConstraintError(err), "%v", err)
	assert.ErrorContains(t, sqlgraph.WrapConstraint(err), "strata: NOT NULL constraint failed")
}
