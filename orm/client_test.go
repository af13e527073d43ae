package orm_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/examples/library"
	"github.com/syssam/strata/orm"
	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/query"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixtures = []string{
	`INSERT INTO countries (name, continent) VALUES ('Italy', 'Europe'), ('Peru', 'America')`,
	`INSERT INTO people (first_name, last_name, age, country_name) VALUES ('Ada', 'Lovelace', 36, 'Italy'), ('Alan', 'Turing', 41, 'Italy'), ('Grace', 'Hopper', NULL, NULL)`,
	`INSERT INTO books (id, title, created_at, updated_at, author_first_name, author_last_name, kind) VALUES (1, 'Notes', 0, 0, 'Ada', 'Lovelace', NULL)`,
}

func openClient(t *testing.T, opts ...orm.Option) *orm.Client {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "library.db") + "?_pragma=foreign_keys(1)"
	opts = append([]orm.Option{orm.WithConfig(strata.WithLogger(discard))}, opts...)
	client, err := orm.Open(ctx, dialect.SQLite, dsn, library.Definitions(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.CreateSchema(ctx))
	for _, stmt := range fixtures {
		_, err := client.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return client
}

func people() *query.Query {
	return query.Select("p").From(query.From("Person", "p"))
}

func countries() *query.Query {
	return query.Select("c").From(query.From("Country", "c")).OrderBy(query.Asc("c.name"))
}

func TestClient_Query(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := openClient(t)
	q := people().
		Where(query.EQ(query.P("p.country.name"), query.Value("Italy"))).
		OrderBy(query.Asc("p.firstName"))
	ps, err := orm.All[*library.Person](ctx, client, q)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "Ada", ps[0].FirstName)
	assert.Equal(t, 36, ps[0].Age)
	assert.Equal(t, "Alan", ps[1].FirstName)
	require.NotNil(t, ps[0].Country)
	assert.Equal(t, "Europe", ps[0].Country.Continent)
	assert.Same(t, ps[0].Country, ps[1].Country)

	books, err := ps[0].Books.All(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Notes", books[0].Title)

	_, err = client.Query(ctx, query.Select("x").From(query.From("Person", "p")))
	assert.True(t, strata.IsQueryError(err), "%v", err)
}

func TestFirstOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := openClient(t)

	p, err := orm.First[*library.Person](ctx, client, people().OrderBy(query.Desc("p.age")))
	require.NoError(t, err)
	assert.Equal(t, "Alan", p.FirstName)

	p, err = orm.Only[*library.Person](ctx, client, people().Where(query.EQ(query.P("p.lastName"), query.Value("Hopper"))))
	require.NoError(t, err)
	assert.Equal(t, "Grace", p.FirstName)
	assert.Nil(t, p.Country)

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{
			name: "first not found",
			run: func() error {
				_, err := orm.First[*library.Person](ctx, client, people().Where(query.GT(query.P("p.age"), query.Value(100))))
				return err
			},
			check: strata.IsNotFound,
		},
		{
			name: "only not found",
			run: func() error {
				_, err := orm.Only[*library.Person](ctx, client, people().Where(query.EQ(query.P("p.country.name"), query.Value("Peru"))))
				return err
			},
			check: strata.IsNotFound,
		},
		{
			name: "only not singular",
			run: func() error {
				_, err := orm.Only[*library.Person](ctx, client, people().Where(query.EQ(query.P("p.country.name"), query.Value("Italy"))))
				return err
			},
			check: strata.IsNotSingular,
		},
		{
			name: "wrong type",
			run: func() error {
				_, err := orm.All[*library.Country](ctx, client, people())
				return err
			},
			check: strata.IsMaterializeError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.run()
			require.Error(t, err)
			assert.True(t, tt.check(err), "%v", err)
		})
	}
}

func TestClient_Polymorphic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := openClient(t)
	_, err := client.Exec(ctx, `INSERT INTO books (id, title, created_at, updated_at, kind) VALUES (2, 'Emma', 0, 0, 'novel')`)
	require.NoError(t, err)
	_, err = client.Exec(ctx, `INSERT INTO novels (id, pages) VALUES (?, ?)`, 2, 300)
	require.NoError(t, err)

	objs, err := orm.All[any](ctx, client, query.Select("b").From(query.From("Book", "b")).OrderBy(query.Asc("b.id")))
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.IsType(t, &library.Book{}, objs[0])
	require.IsType(t, &library.Novel{}, objs[1])
	assert.Equal(t, 300, objs[1].(*library.Novel).Pages)
}

func TestClient_Policy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	adults := privacy.QueryRuleFunc(func(_ context.Context, q *privacy.Query) error {
		q.Where(query.GT(q.P("age"), query.Value(40)))
		return privacy.Skip
	})
	client := openClient(t, orm.WithPolicy(privacy.QueryPolicy{
		privacy.DenyEntityRule("Book"),
		privacy.OnEntity(adults, "Person"),
	}))

	_, err := client.Query(ctx, query.Select("b").From(query.From("Book", "b")))
	assert.ErrorIs(t, err, privacy.Deny)

	ps, err := orm.All[*library.Person](ctx, client, people())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "Alan", ps[0].FirstName)

	stmt, err := client.Compile(ctx, people())
	require.NoError(t, err)
	assert.Contains(t, stmt, "WHERE p.age > 40")

	ps, err = orm.All[*library.Person](privacy.DecisionContext(ctx, privacy.Allow), client, people())
	require.NoError(t, err)
	assert.Len(t, ps, 3)

	cs, err := orm.All[*library.Country](ctx, client, countries())
	require.NoError(t, err)
	assert.Len(t, cs, 2)
}

func TestClient_Exec(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := openClient(t)

	res, err := client.Exec(ctx, `INSERT INTO countries (name) VALUES (?)`, "Chile")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = client.Exec(ctx, `INSERT INTO countries (name) VALUES ('Italy')`)
	require.Error(t, err)
	assert.True(t, sqlgraph.IsUniqueConstraintError(err), "%v", err)
	var ce *sqlgraph.ConstraintError
	assert.ErrorAs(t, err, &ce)

	_, err = client.Exec(ctx, `INSERT INTO people (first_name, last_name, country_name) VALUES ('Rosalind', 'Franklin', 'Atlantis')`)
	require.Error(t, err)
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(err), "%v", err)
}

func TestClient_Tx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := openClient(t)
	errAbort := errors.New("abort")

	err := client.WithTx(ctx, func(tx *orm.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO countries (name) VALUES ('Chile')`); err != nil {
			return err
		}
		cs, err := orm.All[*library.Country](ctx, tx.Client, countries())
		if err != nil {
			return err
		}
		if len(cs) != 3 {
			return errors.New("insert not visible in transaction")
		}
		_, err = tx.Tx(ctx)
		if err == nil {
			return errors.New("nested transaction started")
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	cs, err := orm.All[*library.Country](ctx, client, countries())
	require.NoError(t, err)
	assert.Len(t, cs, 2)

	err = client.WithTx(ctx, func(tx *orm.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO countries (name) VALUES ('Chile')`)
		return err
	})
	require.NoError(t, err)
	cs, err = orm.All[*library.Country](ctx, client, countries())
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, "Chile", cs[0].Name)
}

func TestClient_Cache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cache := orm.NewLRU(8)
	client := openClient(t, orm.WithCache(cache))

	first, err := client.Compile(ctx, countries())
	require.NoError(t, err)
	second, err := client.Compile(ctx, countries())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.Len())

	_, err = client.Query(ctx, countries().Limit(1))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	_, err = client.Compile(ctx, query.Select("c").From(query.From("Country", "c")).Where(query.EQ(query.P("c.nope"), query.Value(1))))
	require.Error(t, err)
	assert.Equal(t, 2, cache.Len())

	missing := people().Where(query.And(query.EQ(query.P("p.age"), nil), query.Not(nil)))
	require.NotPanics(t, func() { _, err = client.Query(ctx, missing) })
	require.Error(t, err)
	assert.True(t, strata.IsQueryError(err), "%v", err)
	assert.Equal(t, 2, cache.Len())
}

func TestClient_SlowQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client := openClient(t, orm.WithConfig(strata.WithLogger(logger), strata.WithSlowThreshold(time.Nanosecond)))
	_, err := client.Query(ctx, countries())
	require.NoError(t, err)
	stats := client.QueryStats()
	require.NotNil(t, stats)
	snap := stats.Stats()
	assert.Positive(t, snap.Slow)
	assert.Positive(t, snap.Queries)
	assert.Contains(t, buf.String(), "slow query detected")

	assert.Nil(t, openClient(t).QueryStats())
}

func TestClient_Debug(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := openClient(t)
	debug := client.Debug()
	assert.Same(t, debug, debug.Debug())

	client = openClient(t, orm.WithDebug(), orm.WithConfig(strata.WithLogger(logger)))
	_, err := client.Query(ctx, countries())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "msg=query")
	assert.Contains(t, buf.String(), "FROM countries AS c")
}

func TestClient_Schema(t *testing.T) {
	t.Parallel()
	client := openClient(t)
	var b strings.Builder
	require.NoError(t, client.WriteSchema(&b, true))
	assert.Contains(t, b.String(), "CREATE TABLE IF NOT EXISTS countries (")
	assert.Contains(t, b.String(), "CREATE TABLE IF NOT EXISTS people_friends (")
	assert.NotNil(t, client.Graph())
	assert.Equal(t, dialect.SQLite, client.Driver().Dialect())
}

func TestOpen(t *testing.T) {
	t.Parallel()
	_, err := orm.Open(context.Background(), "postgres", "", library.Definitions())
	assert.ErrorContains(t, err, `unsupported driver: "postgres"`)
}
