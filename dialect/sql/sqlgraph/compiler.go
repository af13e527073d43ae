// Package sqlgraph lowers queries over an entity graph to SQL and builds
// objects from the resulting rows.
package sqlgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/query"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Compiler lowers queries over a schema graph to SQLite SQL. It is safe for
// concurrent use.
type Compiler struct {
	g      *graph.Graph
	logger *slog.Logger
}

// NewCompiler returns a compiler for the entities of g.
func NewCompiler(g *graph.Graph) *Compiler {
	logger := g.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{g: g, logger: logger}
}

// Compile returns the SELECT statement of q. The projection holds every
// column of the hierarchy of the selected table, labelled
// "hierarchyAlias.column". Property paths of the filter and the ordering
// that cross relationships add inner joins aliased alias_relation.
func (c *Compiler) Compile(q *query.Query) (string, error) {
	st, err := c.prepare(q)
	if err != nil {
		return "", err
	}
	stmt, err := st.render(q)
	if err != nil {
		return "", err
	}
	c.logger.Debug("compiled query", "query", q.String(), "sql", stmt)
	return stmt, nil
}

// A compilation holds the scopes of one query.
type compilation struct {
	c        *Compiler
	entity   string // selected entity, for errors
	scopes   map[string]*scope
	implicit map[string]bool
	// generated maps the aliases derived from a scope alias, hierarchy
	// tables and association tables, to that alias.
	generated map[string]string
	root      query.Node
}

func (c *Compiler) prepare(q *query.Query) (*compilation, error) {
	root := q.Root()
	if root == nil {
		return nil, strata.NewQueryError("", "compile", errors.New("unset FROM clause"))
	}
	st := &compilation{
		c:         c,
		scopes:    make(map[string]*scope),
		implicit:  make(map[string]bool),
		generated: make(map[string]string),
		root:      root,
	}
	for _, t := range query.Tables(root) {
		if err := st.declare(t); err != nil {
			return nil, err
		}
	}
	s, ok := st.scopes[q.Alias()]
	if !ok {
		return nil, strata.NewQueryError("", "select", fmt.Errorf("unknown alias %q", q.Alias()))
	}
	st.entity = s.e.Name
	var props []*query.Property
	if f := q.Filter(); f != nil {
		for p := range query.Properties(f) {
			props = append(props, p)
		}
	}
	for _, o := range q.Ordering() {
		props = append(props, o.Property)
	}
	for _, p := range props {
		if err := st.joinPath(p); err != nil {
			return nil, err
		}
	}
	if err := st.reserveHierarchies(); err != nil {
		return nil, err
	}
	return st, nil
}

// reserveHierarchies reserves the aliases of the parent and child tables
// of the scopes over joined hierarchies.
func (st *compilation) reserveHierarchies() error {
	for _, a := range slices.Sorted(maps.Keys(st.scopes)) {
		s := st.scopes[a]
		if !s.multi() {
			continue
		}
		for _, x := range append(s.e.Ancestors(), s.e.Descendants()...) {
			if err := st.reserve(s.tableAlias(x), a); err != nil {
				return err
			}
		}
	}
	return nil
}

// reserve claims a generated alias for the scope alias from. Generated
// aliases must not name a scope or another generated table.
func (st *compilation) reserve(alias, from string) error {
	if _, ok := st.scopes[alias]; ok {
		return st.errorf("from", "alias %q collides with a table generated for %q", alias, from)
	}
	if other, ok := st.generated[alias]; ok && other != from {
		return st.errorf("from", "alias %q is generated for both %q and %q", alias, other, from)
	}
	st.generated[alias] = from
	return nil
}

func (st *compilation) declare(t *query.Table) error {
	e, ok := st.c.g.Entity(t.Entity)
	if !ok {
		return strata.NewQueryError(t.Entity, "from", errors.New("unknown entity"))
	}
	if t.Alias == "" {
		return strata.NewQueryError(t.Entity, "from", errors.New("empty alias"))
	}
	if _, ok := st.scopes[t.Alias]; ok {
		return strata.NewQueryError(t.Entity, "from", fmt.Errorf("duplicate alias %q", t.Alias))
	}
	st.scopes[t.Alias] = &scope{alias: t.Alias, e: e}
	return nil
}

// joinPath adds the implicit joins the relationships of a property path
// traverse. The last element is left for the comparison.
func (st *compilation) joinPath(p *query.Property) error {
	s, ok := st.scopes[p.Alias]
	if !ok {
		return st.errorf("where", "unknown alias %q in %s", p.Alias, p)
	}
	if len(p.Path) == 0 {
		return st.errorf("where", "property path %s names no property", p)
	}
	for _, name := range p.Path[:len(p.Path)-1] {
		_, r, ok := s.e.Property(name)
		switch {
		case !ok:
			return st.errorf("where", "unknown property %s of %s", name, s.e.Name)
		case r == nil:
			return st.errorf("where", "property %s of %s is not a relationship", name, s.e.Name)
		}
		alias := s.alias + "_" + name
		if _, ok := st.scopes[alias]; !ok {
			st.scopes[alias] = &scope{alias: alias, e: r.Target}
			st.implicit[alias] = true
			st.root = st.root.Join(r.Target.Name, alias, query.Via(s.alias, name))
		} else if !st.implicit[alias] {
			return st.errorf("where", "alias %q of the join of %s is already declared", alias, p)
		}
		s = st.scopes[alias]
	}
	return nil
}

// resolve returns the scope and column a property path ends on. A path
// ending on an owning relationship with a single foreign-key column
// resolves to that column.
func (st *compilation) resolve(p *query.Property) (*scope, *graph.Column, error) {
	s, ok := st.scopes[p.Alias]
	if !ok {
		return nil, nil, st.errorf("where", "unknown alias %q in %s", p.Alias, p)
	}
	if len(p.Path) == 0 {
		return nil, nil, st.errorf("where", "property path %s names no property", p)
	}
	alias := p.Alias
	for _, name := range p.Path[:len(p.Path)-1] {
		alias += "_" + name
	}
	if s, ok = st.scopes[alias]; !ok {
		return nil, nil, st.errorf("where", "property path %s is not joined", p)
	}
	name := p.Path[len(p.Path)-1]
	col, r, ok := s.e.Property(name)
	switch {
	case !ok:
		return nil, nil, st.errorf("where", "unknown property %s of %s", name, s.e.Name)
	case col != nil:
		return s, col, nil
	}
	if fk, ok := r.Join.(*graph.ForeignKey); ok && r.Owning() {
		return s, fk.Column, nil
	}
	return nil, nil, st.errorf("where", "relationship %s of %s cannot be compared; compare one of its properties", name, s.e.Name)
}

func (st *compilation) errorf(op, format string, args ...any) error {
	return strata.NewQueryError(st.entity, op, fmt.Errorf(format, args...))
}

func (st *compilation) render(q *query.Query) (string, error) {
	sel := st.scopes[q.Alias()]
	cols := sel.columns()
	items := make([]string, len(cols))
	for i, col := range cols {
		items[i] = sel.ref(col) + ` AS "` + sel.label(col) + `"`
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(items, ", "))
	from, err := st.node(st.root)
	if err != nil {
		return "", err
	}
	b.WriteString(" FROM ")
	b.WriteString(from)
	var where []string
	first := query.Tables(st.root)[0]
	if r := restriction(st.scopes[first.Alias]); r != "" {
		where = append(where, r)
	}
	if f := q.Filter(); f != nil {
		w, err := st.expr(f)
		if err != nil {
			return "", err
		}
		where = append(where, w)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if order := q.Ordering(); len(order) > 0 {
		terms := make([]string, len(order))
		for i, o := range order {
			s, col, err := st.resolve(o.Property)
			if err != nil {
				return "", err
			}
			terms[i] = s.ref(col) + " ASC"
			if o.Desc {
				terms[i] = s.ref(col) + " DESC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}
	switch limit, offset := q.Window(); {
	case limit >= 0 && offset > 0:
		b.WriteString(" LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset))
	case limit >= 0:
		b.WriteString(" LIMIT " + strconv.Itoa(limit))
	case offset > 0:
		b.WriteString(" LIMIT -1 OFFSET " + strconv.Itoa(offset))
	}
	return b.String(), nil
}

// node renders a FROM tree: "(" + left + ") <TYPE> JOIN " + right + " ON " + cond.
func (st *compilation) node(n query.Node) (string, error) {
	switch n := n.(type) {
	case *query.Table:
		return st.scopes[n.Alias].from()
	case *query.Join:
		left, err := st.node(n.Left)
		if err != nil {
			return "", err
		}
		right := st.scopes[n.Right.Alias]
		rfrom, err := right.from()
		if err != nil {
			return "", err
		}
		if right.multi() {
			rfrom = "(" + rfrom + ")"
		}
		kw := n.Type.String() + " JOIN "
		var cond string
		switch c := n.Cond.(type) {
		case *query.Explicit:
			if cond, err = st.expr(c.Expr); err != nil {
				return "", err
			}
		case *query.Relationship:
			var through string
			if through, cond, err = st.via(n, c); err != nil {
				return "", err
			}
			if through != "" {
				left = "(" + left + ") " + kw + through
			}
		default:
			return "", st.errorf("join", "unsupported join condition %T", n.Cond)
		}
		if r := restriction(right); r != "" {
			cond += " AND " + r
		}
		return "(" + left + ") " + kw + rfrom + " ON " + cond, nil
	default:
		return "", st.errorf("join", "unsupported node %T", n)
	}
}

// via derives the condition of a join from a relationship. A many-to-many
// relationship joins the association table first; its reference and
// condition are returned as through.
func (st *compilation) via(j *query.Join, c *query.Relationship) (through, cond string, err error) {
	near, ok := st.scopes[c.Alias]
	if !ok {
		return "", "", st.errorf("join", "unknown alias %q in %s", c.Alias, c)
	}
	_, r, ok := near.e.Property(c.Property)
	if !ok || r == nil {
		return "", "", st.errorf("join", "%s is not a relationship of %s", c.Property, near.e.Name)
	}
	far := st.scopes[j.Right.Alias]
	// owned reports whether the relationship belongs to the right table.
	owned := far == near
	if owned {
		// The relationship belongs to the right table: it links to the
		// nearest related table on the left.
		far = nil
		tables := query.Tables(j.Left)
		for i := len(tables) - 1; i >= 0 && far == nil; i-- {
			if s := st.scopes[tables[i].Alias]; related(s.e, r.Target) {
				far = s
			}
		}
		if far == nil {
			return "", "", st.errorf("join", "no table on the left of %s is a %s", j.Right, r.Target.Name)
		}
	}
	if !related(far.e, r.Target) {
		return "", "", st.errorf("join", "relationship %s links to %s, not %s", r, r.Target.Name, far.e.Name)
	}
	switch r.Join.(type) {
	case *graph.ForeignKey, *graph.ForeignKeyGroup:
		conds, err := equalities(near, far, r.Pairs())
		if err != nil {
			return "", "", st.errorf("join", "%s: %v", r, err)
		}
		return "", conds, nil
	case *graph.JoinTable:
		jt, in, out := r.Through()
		alias := jt.Name + "X" + near.alias + "Y" + far.alias
		if err := st.reserve(alias, near.alias); err != nil {
			return "", "", err
		}
		var first, second []string
		for _, p := range in {
			first = append(first, near.ref(p.Near)+" = "+alias+"."+p.Far.Name)
		}
		for _, p := range out {
			second = append(second, alias+"."+p.Near.Name+" = "+far.ref(p.Far))
		}
		if owned {
			// The association table is joined to the left side, so it links
			// to far first and the right table joins it through near.
			first, second = second, first
		}
		through = jt.Name + " AS " + alias + " ON " + strings.Join(first, " AND ")
		return through, strings.Join(second, " AND "), nil
	default:
		return "", "", st.errorf("join", "relationship %s is not mapped", r)
	}
}

func related(x, y *graph.Entity) bool {
	return x.IsA(y) || y.IsA(x)
}

func equalities(near, far *scope, pairs []graph.Pair) (string, error) {
	conds := make([]string, len(pairs))
	for i, p := range pairs {
		if !near.contains(p.Near) || !far.contains(p.Far) {
			return "", fmt.Errorf("column %s or %s is outside the joined hierarchies", p.Near, p.Far)
		}
		conds[i] = near.ref(p.Near) + " = " + far.ref(p.Far)
	}
	return strings.Join(conds, " AND "), nil
}

// restriction limits a SingleTable reference to the rows of its entity and
// its descendants.
func restriction(s *scope) string {
	if s.e.Strategy != schema.SingleTable {
		return ""
	}
	var conds []string
	for x := s.e; x.Parent != nil; x = x.Parent {
		d := x.Parent.Discriminator
		lit, err := discriminatorLiteral(d, x.DiscriminatorValue)
		if err != nil {
			lit = sql.Quote(fmt.Sprint(x.DiscriminatorValue))
		}
		conds = append(conds, s.alias+"."+d.Name+" = "+lit)
	}
	switch len(conds) {
	case 0:
		return ""
	case 1:
		return conds[0]
	default:
		// Root discriminator first.
		for i, j := 0, len(conds)-1; i < j; i, j = i+1, j-1 {
			conds[i], conds[j] = conds[j], conds[i]
		}
		return "(" + strings.Join(conds, " AND ") + ")"
	}
}

func discriminatorLiteral(d *graph.Column, v any) (string, error) {
	dv, err := field.DriverValue(d.Type, v)
	if err != nil {
		return "", err
	}
	return sql.Literal(dv)
}

// expr renders a filter or an explicit join condition.
func (st *compilation) expr(e query.Expr) (string, error) {
	switch e := e.(type) {
	case *query.Unary:
		x, err := st.expr(e.X)
		if err != nil {
			return "", err
		}
		return "NOT (" + x + ")", nil
	case *query.Binary:
		x, err := st.expr(e.X)
		if err != nil {
			return "", err
		}
		y, err := st.expr(e.Y)
		if err != nil {
			return "", err
		}
		return "(" + x + " " + e.Op.String() + " " + y + ")", nil
	case *query.Compare:
		return st.compare(e)
	default:
		return "", st.errorf("where", "unsupported expression %T", e)
	}
}

func (st *compilation) compare(e *query.Compare) (string, error) {
	if e.Op == query.OpIsNull {
		if e.Y != nil {
			return "", st.errorf("where", "IS NULL takes one operand")
		}
		x, _, err := st.operand(e.X, nil, e.Op)
		if err != nil {
			return "", err
		}
		return x + " IS NULL", nil
	}
	if e.X == nil || e.Y == nil {
		return "", st.errorf("where", "%s takes two operands", e.Op)
	}
	x, xcol, err := st.operand(e.X, nil, e.Op)
	if err != nil {
		return "", err
	}
	y, ycol, err := st.operand(e.Y, xcol, e.Op)
	if err != nil {
		return "", err
	}
	if xcol == nil && ycol != nil {
		// Convert a leading literal with the type of the column it meets.
		if x, _, err = st.operand(e.X, ycol, e.Op); err != nil {
			return "", err
		}
	}
	return x + " " + e.Op.String() + " " + y, nil
}

// operand renders a variable. A literal compared with the column other is
// converted to the stored form of the column values; LIKE and GLOB
// patterns are left as given.
func (st *compilation) operand(v query.Variable, other *graph.Column, op query.Op) (string, *graph.Column, error) {
	switch v := v.(type) {
	case *query.Property:
		s, col, err := st.resolve(v)
		if err != nil {
			return "", nil, err
		}
		return s.ref(col), col, nil
	case *query.Literal:
		val := v.V
		if other != nil && op != query.OpLike && op != query.OpGlob {
			dv, err := field.DriverValue(other.Type, val)
			if err != nil {
				return "", nil, st.errorf("where", "literal %v for column %s: %v", val, other, err)
			}
			val = dv
		}
		lit, err := sql.Literal(val)
		if err != nil {
			return "", nil, st.errorf("where", "%v", err)
		}
		return lit, nil, nil
	default:
		return "", nil, st.errorf("where", "unsupported operand %T", v)
	}
}

// related compiles the query loading the targets of r for the object whose
// values of the near columns of r are given. It returns the statement and
// the scope of the target.
func (c *Compiler) related(r *graph.Relation, vals []any) (string, *scope, error) {
	target := &scope{alias: "t", e: r.Target}
	from, err := target.from()
	if err != nil {
		return "", nil, err
	}
	var conds []string
	switch r.Join.(type) {
	case *graph.ForeignKey, *graph.ForeignKeyGroup:
		for i, p := range r.Pairs() {
			lit, err := keyLiteral(p.Far, vals[i])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, target.ref(p.Far)+" = "+lit)
		}
	case *graph.JoinTable:
		jt, in, out := r.Through()
		var on []string
		for _, p := range out {
			on = append(on, "j."+p.Near.Name+" = "+target.ref(p.Far))
		}
		if target.multi() {
			from = "(" + from + ")"
		}
		from = "(" + jt.Name + " AS j) INNER JOIN " + from + " ON " + strings.Join(on, " AND ")
		for i, p := range in {
			lit, err := keyLiteral(p.Far, vals[i])
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, "j."+p.Far.Name+" = "+lit)
		}
	default:
		return "", nil, fmt.Errorf("relationship %s is not mapped", r)
	}
	if res := restriction(target); res != "" {
		conds = append(conds, res)
	}
	cols := target.columns()
	items := make([]string, len(cols))
	for i, col := range cols {
		items[i] = target.ref(col) + ` AS "` + target.label(col) + `"`
	}
	return "SELECT " + strings.Join(items, ", ") + " FROM " + from + " WHERE " + strings.Join(conds, " AND "), target, nil
}

// nearColumns returns the columns of the declaring side of r whose values
// select the related rows.
func nearColumns(r *graph.Relation) []*graph.Column {
	var cols []*graph.Column
	if r.Rel == edge.M2M {
		_, in, _ := r.Through()
		for _, p := range in {
			cols = append(cols, p.Near)
		}
		return cols
	}
	for _, p := range r.Pairs() {
		cols = append(cols, p.Near)
	}
	return cols
}

func keyLiteral(c *graph.Column, v any) (string, error) {
	dv, err := field.DriverValue(c.Type, v)
	if err != nil {
		return "", fmt.Errorf("value of %s: %w", c, err)
	}
	return sql.Literal(dv)
}

func errUnknownStrategy(e *graph.Entity) error {
	return fmt.Errorf("entity %s: unknown inheritance strategy %v", e.Name, e.Strategy)
}
