// Package orm ties a schema graph, the query compiler and the result
// materializer to a database.
//
//	client, err := orm.Open(ctx, dialect.SQLite, "file:app.db?_pragma=foreign_keys(1)", defs)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	if err := client.CreateSchema(ctx); err != nil {
//	    return err
//	}
//	q := query.Select("p").From(query.From("Person", "p")).
//	    Where(query.EQ(query.P("p.country.name"), query.Value("Italy")))
//	people, err := orm.All[*Person](ctx, client, q)
package orm

import (
	"context"
	"fmt"
	"io"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/schema"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/query"
	sch "github.com/syssam/strata/schema"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	config []strata.Option
	policy privacy.QueryRule
	cache  Cache
	debug  bool
}

// WithConfig applies the configuration options to the client, and to the
// graph built by Open.
func WithConfig(opts ...strata.Option) Option {
	return func(o *options) {
		o.config = append(o.config, opts...)
	}
}

// WithPolicy sets the rule evaluated before every query of the client.
func WithPolicy(rule privacy.QueryRule) Option {
	return func(o *options) {
		o.policy = rule
	}
}

// WithCache sets the cache of compiled statements.
func WithCache(c Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithDebug logs every statement at debug level.
func WithDebug() Option {
	return func(o *options) {
		o.debug = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = NewLRU(DefaultCacheSize)
	}
	return o
}

// Client runs queries over the entities of a graph.
type Client struct {
	g      *graph.Graph
	drv    dialect.Driver
	stats  *sql.StatsDriver
	m      *sqlgraph.Materializer
	cfg    strata.Config
	policy privacy.QueryRule
	cache  Cache
	debug  bool
}

// Open builds the graph of defs and opens a database connection.
func Open(ctx context.Context, driverName, dataSourceName string, defs []sch.Definition, opts ...Option) (*Client, error) {
	if driverName != dialect.SQLite {
		return nil, fmt.Errorf("orm: unsupported driver: %q", driverName)
	}
	g, err := graph.Build(ctx, defs, newOptions(opts).config...)
	if err != nil {
		return nil, err
	}
	drv, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("orm: open: %w", err)
	}
	return NewClient(drv, g, opts...), nil
}

// NewClient returns a client running the queries over g on drv. A slow
// query threshold in the configuration wraps drv with a stats driver.
func NewClient(drv dialect.Driver, g *graph.Graph, opts ...Option) *Client {
	o := newOptions(opts)
	c := &Client{
		g:      g,
		cfg:    strata.NewConfig(o.config...),
		policy: o.policy,
		cache:  o.cache,
	}
	if c.cfg.SlowQuery > 0 {
		c.stats = sql.NewStatsDriver(drv,
			sql.WithSlowThreshold(c.cfg.SlowQuery),
			sql.WithSlowQueryLog(c.cfg.Logger),
		)
		drv = c.stats
	}
	c.setDriver(drv)
	if o.debug {
		return c.Debug()
	}
	return c
}

func (c *Client) setDriver(drv dialect.Driver) {
	c.drv = drv
	c.m = sqlgraph.NewMaterializer(c.g, drv)
}

// Debug returns a client logging every statement at debug level.
func (c *Client) Debug() *Client {
	if c.debug {
		return c
	}
	cc := *c
	cc.debug = true
	cc.setDriver(sql.NewDebugDriver(c.drv, c.cfg.Logger))
	return &cc
}

// Graph returns the schema graph of the client.
func (c *Client) Graph() *graph.Graph { return c.g }

// Driver returns the driver running the statements.
func (c *Client) Driver() dialect.Driver { return c.drv }

// QueryStats returns the statement statistics, nil unless a slow query
// threshold is configured.
func (c *Client) QueryStats() *sql.QueryStats {
	if c.stats == nil {
		return nil
	}
	return c.stats.QueryStats()
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.drv.Close()
}

// CreateSchema creates the tables of the graph.
func (c *Client) CreateSchema(ctx context.Context, opts ...schema.MigrateOption) error {
	tables, err := schema.Tables(c.g)
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(c.drv, append([]schema.MigrateOption{schema.WithLogger(c.cfg.Logger)}, opts...)...)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}

// WriteSchema writes the CREATE TABLE statements of the graph to w.
func (c *Client) WriteSchema(w io.Writer, ifNotExists bool) error {
	tables, err := schema.Tables(c.g)
	if err != nil {
		return err
	}
	return schema.WriteTo(w, tables, ifNotExists)
}

// Compile evaluates the policy of the client on q and returns the
// statement of the query the policy leaves behind.
func (c *Client) Compile(ctx context.Context, q *query.Query) (string, error) {
	_, stmt, err := c.prepare(ctx, q)
	return stmt, err
}

func (c *Client) prepare(ctx context.Context, q *query.Query) (*privacy.Query, string, error) {
	pq := privacy.NewQuery(q)
	if c.policy != nil {
		if err := c.policy.EvalQuery(ctx, pq); err != nil {
			c.cfg.Logger.DebugContext(ctx, "query denied", "entity", pq.Entity(), "error", err)
			return nil, "", err
		}
	}
	key := pq.Query().String()
	if stmt, ok := c.cache.Get(key); ok {
		return pq, stmt, nil
	}
	stmt, err := c.m.Compiler().Compile(pq.Query())
	if err != nil {
		return nil, "", err
	}
	c.cache.Set(key, stmt)
	return pq, stmt, nil
}

// Query runs q and returns its objects, each of the most derived type its
// row designates.
func (c *Client) Query(ctx context.Context, q *query.Query) ([]any, error) {
	pq, stmt, err := c.prepare(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := c.m.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("orm: query %s: %w", pq.Entity(), err)
	}
	return c.m.MaterializeAll(ctx, rows, pq.Entity(), pq.Query().Alias())
}

// Exec executes a statement. Constraint violations are reported as
// *sqlgraph.ConstraintError.
func (c *Client) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	var res sql.Result
	if err := c.drv.Exec(ctx, stmt, args, &res); err != nil {
		return nil, sqlgraph.WrapConstraint(err)
	}
	return res, nil
}
