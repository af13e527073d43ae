package schema

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"slices"

	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sqlschema"
)

// Inspect reads the tables of an SQLite database. Defaults are reported as
// their SQL text.
func Inspect(ctx context.Context, conn dialect.ExecQuerier) ([]*Table, error) {
	drv, err := sqlite.Open(atlasConn{conn})
	if err != nil {
		return nil, fmt.Errorf("schema: inspect: %w", err)
	}
	s, err := drv.InspectSchema(ctx, "main", nil)
	if err != nil {
		return nil, fmt.Errorf("schema: inspect: %w", err)
	}
	return fromAtlas(s.Tables), nil
}

// fromAtlas converts inspected tables. References to tables outside of ts
// get a table holding only a name.
func fromAtlas(ts []*schema.Table) []*Table {
	tables := make([]*Table, len(ts))
	byName := make(map[string]*Table, len(ts))
	for i, at := range ts {
		t := &Table{Name: at.Name}
		for _, ac := range at.Columns {
			c := &Column{Name: ac.Name}
			if ac.Type != nil {
				c.Type, c.Nullable = ac.Type.Raw, ac.Type.Null
			}
			c.Default = defaultText(ac.Default)
			t.Columns = append(t.Columns, c)
		}
		if at.PrimaryKey != nil {
			t.PrimaryKey = partColumns(t, at.PrimaryKey.Parts)
		}
		pk := names(t.PrimaryKey)
		for _, idx := range at.Indexes {
			group := partColumns(t, idx.Parts)
			switch {
			case !idx.Unique || len(group) == 0 || slices.Equal(names(group), pk):
			case len(group) == 1:
				group[0].Unique = true
			default:
				t.Uniques = append(t.Uniques, group)
			}
		}
		tables[i], byName[t.Name] = t, t
	}
	for i, at := range ts {
		t := tables[i]
		for _, afk := range at.ForeignKeys {
			fk := &ForeignKey{
				OnUpdate: sqlschema.CascadeAction(afk.OnUpdate),
				OnDelete: sqlschema.CascadeAction(afk.OnDelete),
			}
			if afk.RefTable != nil {
				if fk.RefTable = byName[afk.RefTable.Name]; fk.RefTable == nil {
					fk.RefTable = &Table{Name: afk.RefTable.Name}
				}
			}
			for _, ac := range afk.Columns {
				if c, ok := t.Column(ac.Name); ok {
					fk.Columns = append(fk.Columns, c)
				}
			}
			for _, ac := range afk.RefColumns {
				c := &Column{Name: ac.Name}
				if fk.RefTable != nil {
					if rc, ok := fk.RefTable.Column(ac.Name); ok {
						c = rc
					}
				}
				fk.RefColumns = append(fk.RefColumns, c)
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return tables
}

// toAtlas converts the columns of t for diffing. Keys and constraints are
// left out: SQLite names the indexes of inline constraints itself.
func toAtlas(s *schema.Schema, t *Table) *schema.Table {
	at := &schema.Table{Name: t.Name, Schema: s}
	for _, c := range t.Columns {
		typ, err := sqlite.ParseType(c.Type)
		if err != nil {
			typ = &schema.UnsupportedType{T: c.Type}
		}
		at.Columns = append(at.Columns, &schema.Column{
			Name: c.Name,
			Type: &schema.ColumnType{Type: typ, Raw: c.Type, Null: c.Nullable},
		})
	}
	return at
}

func partColumns(t *Table, parts []*schema.IndexPart) []*Column {
	var cols []*Column
	for _, p := range parts {
		if p.C == nil {
			continue
		}
		if c, ok := t.Column(p.C.Name); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func defaultText(x schema.Expr) any {
	switch x := x.(type) {
	case *schema.Literal:
		return x.V
	case *schema.RawExpr:
		return x.X
	default:
		return nil
	}
}

// atlasConn exposes a dialect connection with the database/sql methods
// atlas drivers run statements with.
type atlasConn struct{ dialect.ExecQuerier }

func (c atlasConn) QueryContext(ctx context.Context, query string, args ...any) (*stdsql.Rows, error) {
	rows := &sql.Rows{}
	if err := c.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	std, ok := rows.ColumnScanner.(*stdsql.Rows)
	if !ok {
		rows.Close()
		return nil, fmt.Errorf("schema: rows of type %T, want *sql.Rows", rows.ColumnScanner)
	}
	return std, nil
}

func (c atlasConn) ExecContext(ctx context.Context, query string, args ...any) (stdsql.Result, error) {
	var res sql.Result
	if err := c.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

var _ schema.ExecQuerier = atlasConn{}
