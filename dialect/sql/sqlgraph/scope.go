package sqlgraph

import (
	"slices"
	"strings"

	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema"
)

// A scope is an aliased table reference expanded to the hierarchy of its
// entity. Every entity of the hierarchy is addressed by a hierarchy alias:
// the alias itself for the referenced entity, the alias followed by the
// entity name for its ancestors and descendants.
type scope struct {
	alias string
	e     *graph.Entity
}

func (s *scope) tableAlias(x *graph.Entity) string {
	if x == s.e {
		return s.alias
	}
	return s.alias + x.Name
}

// owner returns the entity of the hierarchy whose alias labels c. Under
// TablePerClass a copied column is read through the entity that declares
// it, or through the scope entity for the columns of its ancestors.
func (s *scope) owner(c *graph.Column) *graph.Entity {
	if s.e.Strategy != schema.TablePerClass {
		return c.Entity
	}
	switch o := c.Origin().Entity; {
	case s.e.IsA(o):
		return s.e
	case o.IsA(s.e):
		return o
	default:
		return c.Entity
	}
}

// contains reports whether the hierarchy of the scope holds c.
func (s *scope) contains(c *graph.Column) bool {
	x := s.owner(c)
	return x.IsA(s.e) || s.e.IsA(x)
}

// label returns the result column label of c: "hierarchyAlias.column".
func (s *scope) label(c *graph.Column) string {
	return s.tableAlias(s.owner(c)) + "." + c.Name
}

// ref returns the SQL reference to c.
func (s *scope) ref(c *graph.Column) string {
	switch s.e.Strategy {
	case schema.Joined:
		return s.tableAlias(s.owner(c)) + "." + c.Name
	case schema.TablePerClass:
		return s.alias + "." + s.unionName(c)
	default:
		return s.alias + "." + c.Name
	}
}

// unionName names c in the UNION ALL of a TablePerClass hierarchy.
func (s *scope) unionName(c *graph.Column) string {
	if x := s.owner(c); x != s.e {
		return x.Name + "_" + c.Name
	}
	return c.Name
}

// columns returns the projected columns: the ancestors' columns from the
// root down, the entity's own columns, then the descendants' columns.
func (s *scope) columns() []*graph.Column {
	var cols []*graph.Column
	if s.e.Strategy == schema.TablePerClass {
		cols = s.e.Columns()
		for _, d := range s.e.Descendants() {
			for _, c := range d.Columns() {
				if c.Kind != graph.InheritedColumn {
					cols = append(cols, c)
				}
			}
		}
		return cols
	}
	ancestors := s.e.Ancestors()
	slices.Reverse(ancestors)
	for _, x := range ancestors {
		cols = append(cols, x.Columns()...)
	}
	cols = append(cols, s.e.Columns()...)
	for _, d := range s.e.Descendants() {
		cols = append(cols, d.Columns()...)
	}
	return cols
}

// multi reports whether the FROM form of the scope joins several tables.
func (s *scope) multi() bool {
	return s.e.Strategy == schema.Joined && (s.e.Parent != nil || len(s.e.Children) > 0)
}

// from renders the table reference.
func (s *scope) from() (string, error) {
	e := s.e
	switch e.Strategy {
	case schema.SingleTable:
		return e.Root().Table + " AS " + s.alias, nil
	case schema.Joined:
		from := e.Table + " AS " + s.alias
		keys := e.PrimaryKey()
		for _, x := range e.Ancestors() {
			from = "(" + from + ") INNER JOIN " + x.Table + " AS " + s.tableAlias(x) + " ON " + s.keyJoin(x, x.PrimaryKey(), keys)
		}
		for _, d := range e.Descendants() {
			from = "(" + from + ") LEFT JOIN " + d.Table + " AS " + s.tableAlias(d) + " ON " + s.keyJoin(d, d.PrimaryKey(), keys)
		}
		return from, nil
	case schema.TablePerClass:
		if len(e.Children) == 0 {
			return e.Table + " AS " + s.alias, nil
		}
		return s.union(), nil
	default:
		return "", errUnknownStrategy(e)
	}
}

// keyJoin equates the leading primary-key columns of x and of the scope
// entity. Joined children start their key with copies of the parent's key.
func (s *scope) keyJoin(x *graph.Entity, xkeys, keys []*graph.Column) string {
	n := min(len(xkeys), len(keys))
	conds := make([]string, n)
	for i := range n {
		conds[i] = s.tableAlias(x) + "." + xkeys[i].Name + " = " + s.alias + "." + keys[i].Name
	}
	return strings.Join(conds, " AND ")
}

// union renders a TablePerClass hierarchy as a UNION ALL of its concrete
// tables, padding the columns a table lacks with NULL.
func (s *scope) union() string {
	cols := s.columns()
	tables := append([]*graph.Entity{s.e}, s.e.Descendants()...)
	selects := make([]string, len(tables))
	for i, y := range tables {
		items := make([]string, len(cols))
		for j, c := range cols {
			v := "NULL"
			if y.IsA(s.owner(c)) {
				v = y.Local(c).Name
			}
			items[j] = v + " AS " + s.unionName(c)
		}
		selects[i] = "SELECT " + strings.Join(items, ", ") + " FROM " + y.Table
	}
	return "(" + strings.Join(selects, " UNION ALL ") + ") AS " + s.alias
}
