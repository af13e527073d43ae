// Package schema derives the tables of an entity graph and creates them.
package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sqlschema"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// SQL column types.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
	TypeBlob    = "BLOB"
)

// Table is the physical description of a table.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []*Column
	Uniques     [][]*Column
	ForeignKeys []*ForeignKey
	Comment     string
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Column is a table column.
type Column struct {
	Name     string
	Type     string // one of the Type constants
	Nullable bool
	Unique   bool
	Default  any // driver value, nil means no default
}

// ForeignKey is a FOREIGN KEY clause.
type ForeignKey struct {
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
	OnUpdate   sqlschema.CascadeAction
	OnDelete   sqlschema.CascadeAction
}

// SQLType returns the column type storing values of t. Times are stored as
// epoch milliseconds.
func SQLType(t field.Type) string {
	switch {
	case t.Integer(), t == field.TypeBool, t == field.TypeTime:
		return TypeInteger
	case t.Float():
		return TypeReal
	case t.Textual():
		return TypeText
	default:
		return TypeBlob
	}
}

// Tables returns the tables of the entities and association tables of g.
func Tables(g *graph.Graph) ([]*Table, error) {
	var (
		tables []*Table
		byName = make(map[*graph.Entity]*Table)
		cols   = make(map[*graph.Column]*Column)
	)
	for _, e := range g.Tables() {
		t := &Table{Name: e.Table, Comment: e.Comment}
		for _, gc := range e.TableColumns() {
			c, err := column(e, gc)
			if err != nil {
				return nil, err
			}
			cols[gc] = c
			t.Columns = append(t.Columns, c)
		}
		for _, k := range e.PrimaryKey() {
			t.PrimaryKey = append(t.PrimaryKey, cols[k])
		}
		for _, x := range append([]*graph.Entity{e}, stored(e)...) {
			for _, u := range x.Uniques() {
				group := make([]*Column, len(u))
				for i, gc := range u {
					group[i] = cols[e.Local(gc)]
				}
				t.Uniques = append(t.Uniques, group)
			}
		}
		byName[e] = t
		tables = append(tables, t)
	}
	for _, e := range g.Tables() {
		t := byName[e]
		if p := e.Parent; p != nil && e.Strategy == schema.Joined {
			fk := &ForeignKey{
				RefTable: byName[p],
				OnUpdate: sqlschema.Cascade,
				OnDelete: sqlschema.Cascade,
			}
			for _, k := range e.PrimaryKey() {
				if k.Kind == graph.InheritedColumn {
					fk.Columns = append(fk.Columns, cols[k])
					fk.RefColumns = append(fk.RefColumns, cols[k.References])
				}
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
		for _, x := range append([]*graph.Entity{e}, stored(e)...) {
			for _, r := range x.Relations() {
				pairs := r.Pairs()
				if !r.Owning() || len(pairs) == 0 {
					continue
				}
				target := r.Target.TableOwner()
				fk := &ForeignKey{RefTable: byName[target], OnUpdate: r.OnUpdate, OnDelete: r.OnDelete}
				for _, p := range pairs {
					fk.Columns = append(fk.Columns, cols[e.Local(p.Near)])
					fk.RefColumns = append(fk.RefColumns, cols[p.Far])
				}
				t.ForeignKeys = append(t.ForeignKeys, fk)
			}
		}
	}
	for _, jt := range g.JoinTables() {
		t := &Table{Name: jt.Name}
		owner := &ForeignKey{
			RefTable: byName[jt.Relation.Entity.TableOwner()],
			OnUpdate: jt.OnUpdate,
			OnDelete: jt.OnDelete,
		}
		target := &ForeignKey{
			RefTable: byName[jt.Relation.Target.TableOwner()],
			OnUpdate: jt.OnUpdate,
			OnDelete: jt.OnDelete,
		}
		for _, gc := range jt.Columns() {
			c := &Column{Name: gc.Name, Type: SQLType(gc.Type)}
			t.Columns = append(t.Columns, c)
			t.PrimaryKey = append(t.PrimaryKey, c)
			fk := owner
			if len(owner.Columns) == len(jt.Owner) {
				fk = target
			}
			fk.Columns = append(fk.Columns, c)
			fk.RefColumns = append(fk.RefColumns, cols[gc.References])
		}
		t.ForeignKeys = append(t.ForeignKeys, owner, target)
		tables = append(tables, t)
	}
	return tables, nil
}

// stored returns the entities, other than e, whose columns are stored in
// the table of e: the descendants of a single-table root, or the ancestors
// of a table-per-class entity.
func stored(e *graph.Entity) []*graph.Entity {
	switch {
	case e.Strategy == schema.SingleTable && e.Parent == nil:
		return e.Descendants()
	case e.Strategy == schema.TablePerClass:
		return e.Ancestors()
	default:
		return nil
	}
}

func column(e *graph.Entity, gc *graph.Column) (*Column, error) {
	c := &Column{
		Name:     gc.Name,
		Type:     SQLType(gc.Type),
		Nullable: gc.Nullable,
		Unique:   gc.Unique,
	}
	// Rows of other subtypes leave descendant columns empty.
	if e.Strategy == schema.SingleTable && gc.Entity != e {
		c.Nullable = true
	}
	if gc.Default != nil {
		v, err := field.DriverValue(gc.Type, gc.Default)
		if err != nil {
			return nil, fmt.Errorf("schema: default of %s: %w", gc, err)
		}
		c.Default = v
	}
	return c, nil
}

// CreateSQL returns the CREATE TABLE statement of t.
//
//	CREATE TABLE people (first_name TEXT NOT NULL, ..., PRIMARY KEY(first_name, last_name),
//	    FOREIGN KEY(country_name) REFERENCES countries(name) ON UPDATE NO ACTION ON DELETE NO ACTION DEFERRABLE INITIALLY DEFERRED)
func (t *Table) CreateSQL(ifNotExists bool) (string, error) {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(t.Name)
	b.WriteString(" (")
	var defs []string
	for _, c := range t.Columns {
		def := c.Name + " " + c.Type
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		if c.Default != nil {
			lit, err := sql.Literal(c.Default)
			if err != nil {
				return "", fmt.Errorf("schema: default of %s.%s: %w", t.Name, c.Name, err)
			}
			def += " DEFAULT " + lit
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY("+columnList(t.PrimaryKey)+")")
	}
	for _, u := range t.Uniques {
		defs = append(defs, "UNIQUE("+columnList(u)+")")
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s) ON UPDATE %s ON DELETE %s DEFERRABLE INITIALLY DEFERRED",
			columnList(fk.Columns), fk.RefTable.Name, columnList(fk.RefColumns), action(fk.OnUpdate), action(fk.OnDelete)))
	}
	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	return b.String(), nil
}

func action(a sqlschema.CascadeAction) sqlschema.CascadeAction {
	if a == "" {
		return sqlschema.NoAction
	}
	return a
}

func columnList(cols []*Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
