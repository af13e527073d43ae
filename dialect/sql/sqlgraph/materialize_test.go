package sqlgraph_test

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/schema"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/examples/library"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/query"
	sch "github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

var libraryRows = []string{
	`INSERT INTO countries (name, continent) VALUES ('Italy', 'Europe'), ('Peru', NULL)`,
	`INSERT INTO people (first_name, last_name, age, country_name) VALUES ('Ada', 'Lovelace', 36, 'Italy'), ('Alan', 'Turing', 41, 'Italy'), ('Grace', 'Hopper', NULL, NULL)`,
	`INSERT INTO people_friends (person_first_name, person_last_name, friends_first_name, friends_last_name) VALUES ('Ada', 'Lovelace', 'Alan', 'Turing'), ('Ada', 'Lovelace', 'Grace', 'Hopper')`,
	`INSERT INTO books (id, title, created_at, updated_at, author_first_name, author_last_name, kind) VALUES (1, 'Notes', 0, 0, 'Ada', 'Lovelace', NULL), (2, 'Emma', 0, 0, NULL, NULL, 'novel'), (3, 'Poirot', 0, 0, 'Alan', 'Turing', 'novel')`,
	`INSERT INTO novels (id, pages, genre) VALUES (2, 300, NULL), (3, 250, 'mystery')`,
	`INSERT INTO mysteries (id, culprit) VALUES (3, 'butler')`,
	`INSERT INTO films (id, title, kind, dragons, victims, style, detective) VALUES (1, 'Alien', NULL, NULL, NULL, NULL, NULL), (2, 'Psycho', 'Thriller', NULL, 2, NULL, NULL), (3, 'Chinatown', 'Thriller', NULL, 1, 'Noir', 'Gittes'), (4, 'Dragonheart', 'Fantasy', 1, NULL, NULL, NULL)`,
	`INSERT INTO shapes (id, label, sides) VALUES (1, 'blob', NULL)`,
	`INSERT INTO circles (id, label, sides, radius) VALUES (2, 'wheel', 0, 1.5)`,
	`INSERT INTO squares (id, label, sides, side) VALUES (3, 'tile', 4, 2.0)`,
}

// counter counts the queries run on a driver.
type counter struct {
	dialect.ExecQuerier
	n atomic.Int64
}

func (c *counter) Query(ctx context.Context, q string, args, v any) error {
	c.n.Add(1)
	return c.ExecQuerier.Query(ctx, q, args, v)
}

func openLibrary(t *testing.T) (*graph.Graph, *counter) {
	t.Helper()
	ctx := context.Background()
	g := libraryGraph(t)
	drv, err := sql.Open(dialect.SQLite, "file:"+t.Name()+"?mode=memory&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	tables, err := schema.Tables(g)
	require.NoError(t, err)
	m, err := schema.NewMigrate(drv, schema.WithLogger(discard))
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, tables...))
	for _, stmt := range libraryRows {
		require.NoError(t, drv.Exec(ctx, stmt, []any{}, nil), stmt)
	}
	return g, &counter{ExecQuerier: drv}
}

func fetch(t *testing.T, m *sqlgraph.Materializer, q *query.Query, entity string) []any {
	t.Helper()
	ctx := context.Background()
	stmt, err := m.Compiler().Compile(q)
	require.NoError(t, err)
	rows, err := m.Query(ctx, stmt)
	require.NoError(t, err)
	objs, err := m.MaterializeAll(ctx, rows, entity, q.Alias())
	require.NoError(t, err)
	return objs
}

func TestMaterialize_Joined(t *testing.T) {
	t.Parallel()
	g, drv := openLibrary(t)
	m := sqlgraph.NewMaterializer(g, drv)
	objs := fetch(t, m, query.Select("b").From(query.From("Book", "b")).OrderBy(query.Asc("b.id")), "Book")
	require.Len(t, objs, 3)

	book, ok := objs[0].(*library.Book)
	require.True(t, ok, "%T", objs[0])
	assert.Equal(t, "Notes", book.Title)
	require.NotNil(t, book.Author)
	assert.Equal(t, "Lovelace", book.Author.LastName)
	require.NotNil(t, book.Author.Country)
	assert.Equal(t, "Europe", book.Author.Country.Continent)

	novel, ok := objs[1].(*library.Novel)
	require.True(t, ok, "%T", objs[1])
	assert.Equal(t, "Emma", novel.Title)
	assert.Equal(t, 300, novel.Pages)
	assert.Nil(t, novel.Author)

	mystery, ok := objs[2].(*library.Mystery)
	require.True(t, ok, "%T", objs[2])
	assert.Equal(t, int64(3), mystery.ID)
	assert.Equal(t, "Poirot", mystery.Title)
	assert.Equal(t, 250, mystery.Pages)
	assert.Equal(t, "butler", mystery.Culprit)
	require.NotNil(t, mystery.Author)
	assert.Equal(t, "Alan", mystery.Author.FirstName)

	// Ada and Alan share one Country object.
	assert.Same(t, book.Author.Country, mystery.Author.Country)

	// Selecting a subclass materializes its rows only.
	objs = fetch(t, m, query.Select("n").From(query.From("Novel", "n")).OrderBy(query.Desc("n.pages")), "Novel")
	require.Len(t, objs, 2)
	assert.IsType(t, &library.Novel{}, objs[0])
	assert.IsType(t, &library.Mystery{}, objs[1])
}

func TestMaterialize_FriendsOf(t *testing.T) {
	t.Parallel()
	g, drv := openLibrary(t)
	m := sqlgraph.NewMaterializer(g, drv)
	q := query.Select("p").
		From(query.From("Person", "p").LeftJoin("Person", "f", query.Via("f", "friends"))).
		Where(query.EQ(query.P("f.firstName"), query.Value("Ada"))).
		OrderBy(query.Asc("p.firstName"))
	objs := fetch(t, m, q, "Person")
	require.Len(t, objs, 2)
	assert.Equal(t, "Alan", objs[0].(*library.Person).FirstName)
	assert.Equal(t, "Grace", objs[1].(*library.Person).FirstName)
}

func TestMaterialize_SingleTable(t *testing.T) {
	t.Parallel()
	g, drv := openLibrary(t)
	m := sqlgraph.NewMaterializer(g, drv)
	objs := fetch(t, m, query.Select("f").From(query.From("Film", "f")).OrderBy(query.Asc("f.id")), "Film")
	require.Len(t, objs, 4)
	assert.Equal(t, &library.Film{ID: 1, Title: "Alien"}, objs[0])
	assert.Equal(t, &library.ThrillerFilm{Film: library.Film{ID: 2, Title: "Psycho"}, Victims: 2}, objs[1])
	assert.Equal(t, &library.NoirFilm{
		ThrillerFilm: library.ThrillerFilm{Film: library.Film{ID: 3, Title: "Chinatown"}, Victims: 1},
		Detective:    "Gittes",
	}, objs[2])
	assert.Equal(t, &library.FantasyFilm{Film: library.Film{ID: 4, Title: "Dragonheart"}, Dragons: 1}, objs[3])

	objs = fetch(t, m, query.Select("t").From(query.From("ThrillerFilm", "t")).OrderBy(query.Asc("t.id")), "ThrillerFilm")
	require.Len(t, objs, 2)
	assert.IsType(t, &library.ThrillerFilm{}, objs[0])
	assert.IsType(t, &library.NoirFilm{}, objs[1])
}

func TestMaterialize_TablePerClass(t *testing.T) {
	t.Parallel()
	g, drv := openLibrary(t)
	m := sqlgraph.NewMaterializer(g, drv)
	objs := fetch(t, m, query.Select("s").From(query.From("Shape", "s")).OrderBy(query.Asc("s.id")), "Shape")
	require.Len(t, objs, 3)
	assert.Equal(t, &library.Shape{ID: 1, Label: "blob"}, objs[0])
	assert.Equal(t, &library.Circle{Shape: library.Shape{ID: 2, Label: "wheel"}, Radius: 1.5}, objs[1])
	assert.Equal(t, &library.Square{Shape: library.Shape{ID: 3, Label: "tile"}, Side: 2}, objs[2])

	objs = fetch(t, m, query.Select("s").From(query.From("Shape", "s")).Where(query.GT(query.P("s.radius"), query.Value(1.0))), "Shape")
	require.Len(t, objs, 1)
	assert.IsType(t, &library.Circle{}, objs[0])
}

func TestMaterialize_TablePerClassSharedID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, drv := openLibrary(t)
	require.NoError(t, drv.Exec(ctx, `INSERT INTO circles (id, label, sides, radius) VALUES (1, 'coin', 0, 0.5)`, []any{}, nil))
	m := sqlgraph.NewMaterializer(g, drv)
	objs := fetch(t, m, query.Select("s").From(query.From("Shape", "s")).
		Where(query.EQ(query.P("s.id"), query.Value(1))).
		OrderBy(query.Asc("s.label")), "Shape")
	require.Len(t, objs, 2)
	assert.Equal(t, &library.Shape{ID: 1, Label: "blob"}, objs[0])
	assert.Equal(t, &library.Circle{Shape: library.Shape{ID: 1, Label: "coin"}, Radius: 0.5}, objs[1])
}

func TestMaterialize_Lazy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, drv := openLibrary(t)
	m := sqlgraph.NewMaterializer(g, drv)
	objs := fetch(t, m, query.Select("p").From(query.From("Person", "p")).
		Where(query.EQ(query.P("p.firstName"), query.Value("Ada"))), "Person")
	require.Len(t, objs, 1)
	ada := objs[0].(*library.Person)
	assert.False(t, ada.Friends.Loaded())
	assert.False(t, ada.Books.Loaded())

	before := drv.n.Load()
	friends, err := ada.Friends.All(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	names := []string{friends[0].FirstName, friends[1].FirstName}
	assert.ElementsMatch(t, []string{"Alan", "Grace"}, names)
	loaded := drv.n.Load()
	assert.Greater(t, loaded, before)

	again, err := ada.Friends.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, friends, again)
	assert.Equal(t, loaded, drv.n.Load(), "a loaded list is not queried again")

	books, err := ada.Books.All(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Notes", books[0].Title)

	citizens, err := ada.Country.Citizens.All(ctx)
	require.NoError(t, err)
	assert.Len(t, citizens, 2)
}

func TestMaterialize_Cycle(t *testing.T) {
	t.Parallel()
	type Employee struct {
		ID      int64
		Manager *Employee
	}
	defs := []sch.Definition{
		sch.Entity[Employee]("Employee").
			Table("employees").
			Fields(field.Int64("id", func(e *Employee) *int64 { return &e.ID }).PrimaryKey()).
			Edges(edge.ManyToOne("manager", "Employee", func(e *Employee) **Employee { return &e.Manager })),
	}
	g, err := graph.Build(context.Background(), defs, strata.WithLogger(discard))
	require.NoError(t, err)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees AS t WHERE t.id = 2")).
		WillReturnRows(sqlmock.NewRows([]string{"t.id", "t.manager_id"}).AddRow(int64(2), int64(1)))
	// The manager's manager is the object already being built.
	mock.ExpectQuery(regexp.QuoteMeta("FROM employees AS t WHERE t.id = 1")).
		WillReturnRows(sqlmock.NewRows([]string{"t.id", "t.manager_id"}).AddRow(int64(1), int64(2)))

	m := sqlgraph.NewMaterializer(g, sql.OpenDB(dialect.SQLite, db))
	obj, err := m.Materialize(context.Background(), sqlgraph.Row{"e.id": int64(1), "e.manager_id": int64(2)}, "Employee", "e")
	require.NoError(t, err)
	e := obj.(*Employee)
	require.NotNil(t, e.Manager)
	assert.Equal(t, int64(2), e.Manager.ID)
	assert.Same(t, e, e.Manager.Manager)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialize_EagerFailure(t *testing.T) {
	t.Parallel()
	g := libraryGraph(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectQuery(regexp.QuoteMeta("FROM people AS t WHERE")).WillReturnError(errors.New("disk I/O error"))

	m := sqlgraph.NewMaterializer(g, sql.OpenDB(dialect.SQLite, db))
	_, err = m.Materialize(context.Background(), sqlgraph.Row{
		"b.created_at": int64(0), "b.updated_at": int64(0), "b.id": int64(1), "b.title": "Notes",
		"b.author_first_name": "Ada", "b.author_last_name": "Lovelace", "b.kind": nil,
	}, "Book", "b")
	require.Error(t, err)
	assert.True(t, strata.IsMaterializeError(err), "%T", err)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestMaterialize_Errors(t *testing.T) {
	t.Parallel()
	m := sqlgraph.NewMaterializer(libraryGraph(t), nil)
	tests := []struct {
		name   string
		entity string
		row    sqlgraph.Row
		err    string
	}{
		{
			name:   "unknown entity",
			entity: "Unicorn",
			row:    sqlgraph.Row{},
			err:    "unknown entity",
		},
		{
			name:   "unknown discriminator",
			entity: "Film",
			row:    sqlgraph.Row{"f.id": int64(9), "f.kind": "Western"},
			err:    `discriminator value Western`,
		},
		{
			name:   "missing column",
			entity: "Country",
			row:    sqlgraph.Row{"f.name": "Italy"},
			err:    `column "f.continent" not selected`,
		},
		{
			name:   "null key",
			entity: "Country",
			row:    sqlgraph.Row{"f.name": nil, "f.continent": nil},
			err:    "NULL primary key",
		},
		{
			name:   "bad value",
			entity: "Film",
			row:    sqlgraph.Row{"f.id": "nine", "f.kind": nil},
			err:    "invalid syntax",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := m.Materialize(context.Background(), tt.row, tt.entity, "f")
			require.Error(t, err)
			assert.True(t, strata.IsMaterializeError(err), "%T", err)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}
