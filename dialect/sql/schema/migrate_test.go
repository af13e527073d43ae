package schema_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/schema"
)

func openSQLite(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, "file:"+t.Name()+"?mode=memory&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func TestNewMigrate(t *testing.T) {
	t.Parallel()
	_, err := schema.NewMigrate(nil)
	assert.Error(t, err)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	_, err = schema.NewMigrate(sql.OpenDB("postgres", db))
	assert.EqualError(t, err, `schema: unsupported dialect "postgres"`)
}

func TestMigrate_Mock(t *testing.T) {
	t.Parallel()
	tables := libraryTables(t)
	stmts, err := schema.Statements(tables, false)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectBegin()
	for _, stmt := range stmts {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	m, err := schema.NewMigrate(sql.OpenDB(dialect.SQLite, db), schema.WithLogger(discard))
	require.NoError(t, err)
	require.NoError(t, m.Create(context.Background(), tables...))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Rollback(t *testing.T) {
	t.Parallel()
	tables := libraryTables(t)[:2]
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE countries").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE people").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	m, err := schema.NewMigrate(sql.OpenDB(dialect.SQLite, db), schema.WithLogger(discard))
	require.NoError(t, err)
	err = m.Create(context.Background(), tables...)
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_InvalidTables(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	m, err := schema.NewMigrate(sql.OpenDB(dialect.SQLite, db))
	require.NoError(t, err)
	c := &schema.Column{Name: "id", Type: schema.TypeInteger}
	err = m.Create(context.Background(), &schema.Table{Name: "t", Columns: []*schema.Column{c, c}, PrimaryKey: []*schema.Column{c}})
	assert.ErrorContains(t, err, "t.id: duplicate column")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ApplyHook(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectCommit()
	var applied []string
	m, err := schema.NewMigrate(sql.OpenDB(dialect.SQLite, db), schema.WithApplyHook(func(schema.Applier) schema.Applier {
		return schema.ApplyFunc(func(_ context.Context, _ dialect.ExecQuerier, stmts []string) error {
			applied = stmts
			return nil
		})
	}))
	require.NoError(t, err)
	require.NoError(t, m.Create(context.Background(), libraryTables(t)...))
	assert.Len(t, applied, 10)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := openSQLite(t)
	tables := libraryTables(t)
	m, err := schema.NewMigrate(drv, schema.WithLogger(discard))
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, tables...))

	current, err := schema.Inspect(ctx, drv)
	require.NoError(t, err)
	require.Len(t, current, len(tables))
	people := table(t, current, "people")
	assert.Equal(t, []string{"first_name", "last_name", "age", "country_name"}, columnNames(people.Columns))
	assert.Equal(t, []string{"first_name", "last_name"}, columnNames(people.PrimaryKey))
	age, _ := people.Column("age")
	assert.True(t, age.Nullable)
	assert.Equal(t, schema.TypeInteger, age.Type)
	require.Len(t, people.ForeignKeys, 1)
	assert.Equal(t, "countries", people.ForeignKeys[0].RefTable.Name)
	assert.Equal(t, []string{"name"}, columnNames(people.ForeignKeys[0].RefColumns))

	books := table(t, current, "books")
	require.Len(t, books.ForeignKeys, 1)
	assert.Equal(t, "SET NULL", string(books.ForeignKeys[0].OnDelete))
	assert.Len(t, books.ForeignKeys[0].Columns, 2)

	// The tables exist: diffing finds nothing to create.
	m, err = schema.NewMigrate(drv, schema.WithDiff(), schema.WithLogger(discard), schema.WithApplyHook(func(next schema.Applier) schema.Applier {
		return schema.ApplyFunc(func(ctx context.Context, conn dialect.ExecQuerier, stmts []string) error {
			assert.Empty(t, stmts)
			return next.Apply(ctx, conn, stmts)
		})
	}))
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, tables...))

	// Tables the schema does not describe are refused unless allowed.
	m, err = schema.NewMigrate(drv, schema.WithDiff(), schema.WithLogger(discard))
	require.NoError(t, err)
	err = m.Create(ctx, tables[:1]...)
	assert.ErrorContains(t, err, "table is not described by the schema")
	m, err = schema.NewMigrate(drv, schema.WithDiff(schema.AllowExtraTables()), schema.WithLogger(discard))
	require.NoError(t, err)
	assert.NoError(t, m.Create(ctx, tables[:1]...))
}

func TestMigrate_IfNotExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	drv := openSQLite(t)
	tables := libraryTables(t)
	m, err := schema.NewMigrate(drv, schema.WithIfNotExists(true), schema.WithLogger(discard))
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, tables...))
	require.NoError(t, m.Create(ctx, tables...))
}

func TestWriteTo(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, schema.WriteTo(&buf, libraryTables(t), false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)
	assert.True(t, strings.HasPrefix(lines[0], "CREATE TABLE countries (name TEXT NOT NULL, continent TEXT, PRIMARY KEY(name))"))
	for _, l := range lines {
		assert.True(t, strings.HasSuffix(l, ");"), l)
	}
}
