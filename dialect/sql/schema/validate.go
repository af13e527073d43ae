package schema

import (
	"fmt"
	"slices"
	"strings"

	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
)

// Issue is a problem found while validating tables.
type Issue struct {
	Table  string
	Column string // empty for issues of the whole table
	Reason string
	// Breaking marks issues that make statements of the mapper fail on the
	// database as it is.
	Breaking bool
}

func (i *Issue) Error() string {
	if i.Column != "" {
		return i.Table + "." + i.Column + ": " + i.Reason
	}
	return i.Table + ": " + i.Reason
}

// Report collects the issues of one validation. Errors abort a migration,
// warnings are only logged.
type Report struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors reports whether the validation found errors.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// String lists the issues, errors first.
func (r *Report) String() string {
	if len(r.Errors)+len(r.Warnings) == 0 {
		return "no issues"
	}
	var b strings.Builder
	write := func(kind string, issues []*Issue) {
		for _, i := range issues {
			fmt.Fprintf(&b, "  %s: %s", kind, i)
			if i.Breaking {
				b.WriteString(" (breaking)")
			}
			b.WriteByte('\n')
		}
	}
	write("error", r.Errors)
	write("warning", r.Warnings)
	return strings.TrimSuffix(b.String(), "\n")
}

// fail records i as an error unless allowed, then as a warning.
func (r *Report) fail(i *Issue, allowed bool) {
	if allowed {
		r.Warnings = append(r.Warnings, i)
		return
	}
	r.Errors = append(r.Errors, i)
}

func (r *Report) warn(i *Issue) {
	r.Warnings = append(r.Warnings, i)
}

// ValidateOption relaxes the checks of ValidateDiff.
type ValidateOption func(*tolerance)

type tolerance struct {
	extraTables  bool
	extraColumns bool
	notNull      bool
}

// AllowExtraTables tolerates tables of the database the schema does not
// describe.
func AllowExtraTables() ValidateOption {
	return func(t *tolerance) { t.extraTables = true }
}

// AllowExtraColumns tolerates NOT NULL columns without default the schema
// does not describe. Inserts of the mapper omit them.
func AllowExtraColumns() ValidateOption {
	return func(t *tolerance) { t.extraColumns = true }
}

// AllowNotNull tolerates NOT NULL database columns the schema declares
// nullable.
func AllowNotNull() ValidateOption {
	return func(t *tolerance) { t.notNull = true }
}

// ValidateDiff compares the tables of a database with the desired tables.
// Column changes are computed by the SQLite differ of atlas. Missing tables
// are not issues: migrations create them. Existing tables
// are never altered, so every difference that makes the mapper's statements
// fail is an error.
//
//	current, _ := schema.Inspect(ctx, drv)
//	if r := schema.ValidateDiff(current, desired); r.HasErrors() {
//		return fmt.Errorf("incompatible database:\n%s", r)
//	}
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *Report {
	var tol tolerance
	for _, opt := range opts {
		opt(&tol)
	}
	r := &Report{}
	for _, cur := range current {
		i := slices.IndexFunc(desired, func(t *Table) bool { return t.Name == cur.Name })
		if i < 0 {
			r.fail(&Issue{Table: cur.Name, Reason: "table is not described by the schema"}, tol.extraTables)
			continue
		}
		diffTable(r, cur, desired[i], tol)
	}
	return r
}

// diffTable reports the column changes atlas finds between the current
// and the desired table, then the differences of uniqueness and keys.
func diffTable(r *Report, cur, want *Table, tol tolerance) {
	s := &schema.Schema{Name: "main"}
	changes, err := sqlite.DefaultDiff.TableDiff(toAtlas(s, cur), toAtlas(s, want))
	if err != nil {
		r.fail(&Issue{Table: cur.Name, Reason: fmt.Sprintf("diff: %v", err)}, false)
		return
	}
	for _, ch := range changes {
		switch ch := ch.(type) {
		case *schema.DropColumn:
			c, _ := cur.Column(ch.C.Name)
			issue := &Issue{Table: cur.Name, Column: c.Name, Reason: "column is not described by the schema"}
			if c.Nullable || c.Default != nil {
				r.warn(issue)
				continue
			}
			issue.Reason = "NOT NULL column without default is not described by the schema"
			issue.Breaking = true
			r.fail(issue, tol.extraColumns)
		case *schema.AddColumn:
			r.fail(&Issue{Table: cur.Name, Column: ch.C.Name, Reason: "column is missing from the database", Breaking: true}, false)
		case *schema.ModifyColumn:
			diffColumn(r, cur.Name, ch, tol)
		}
	}
	for _, w := range want.Columns {
		if c, ok := cur.Column(w.Name); ok && c.Unique != w.Unique {
			r.warn(&Issue{Table: cur.Name, Column: w.Name, Reason: fmt.Sprintf("UNIQUE is %t, the schema declares %t", c.Unique, w.Unique)})
		}
	}
	if !slices.Equal(names(cur.PrimaryKey), names(want.PrimaryKey)) {
		r.fail(&Issue{
			Table:    cur.Name,
			Reason:   fmt.Sprintf("primary key is (%s), the schema declares (%s)", strings.Join(names(cur.PrimaryKey), ", "), strings.Join(names(want.PrimaryKey), ", ")),
			Breaking: true,
		}, false)
	}
}

// diffColumn reports a modified column. Types are compared by their
// declared text, ignoring case.
func diffColumn(r *Report, table string, ch *schema.ModifyColumn, tol tolerance) {
	from, to := ch.From.Type, ch.To.Type
	if ch.Change.Is(schema.ChangeType) && !strings.EqualFold(from.Raw, to.Raw) {
		r.warn(&Issue{Table: table, Column: ch.To.Name, Reason: fmt.Sprintf("type is %s, the schema declares %s", from.Raw, to.Raw)})
	}
	if !ch.Change.Is(schema.ChangeNull) {
		return
	}
	if to.Null {
		r.fail(&Issue{Table: table, Column: ch.To.Name, Reason: "column is NOT NULL, the schema declares it nullable", Breaking: true}, tol.notNull)
		return
	}
	r.warn(&Issue{Table: table, Column: ch.To.Name, Reason: "column accepts NULL, the schema declares it NOT NULL"})
}

// ValidateTable checks the consistency of one table.
func ValidateTable(t *Table) *Report {
	r := &Report{}
	validateTable(r, t)
	return r
}

func validateTable(r *Report, t *Table) {
	if len(t.PrimaryKey) == 0 {
		r.warn(&Issue{Table: t.Name, Reason: "table has no primary key"})
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			r.fail(&Issue{Table: t.Name, Column: c.Name, Reason: "duplicate column"}, false)
		}
		seen[c.Name] = true
	}
	for _, c := range t.PrimaryKey {
		if c.Nullable {
			r.fail(&Issue{Table: t.Name, Column: c.Name, Reason: "nullable primary key column"}, false)
		}
	}
	known := func(cols []*Column) bool {
		return !slices.ContainsFunc(cols, func(c *Column) bool { return c == nil || !seen[c.Name] })
	}
	for _, u := range t.Uniques {
		if !known(u) {
			r.fail(&Issue{Table: t.Name, Reason: "unique constraint over an unknown column"}, false)
		}
	}
	for _, fk := range t.ForeignKeys {
		switch {
		case fk.RefTable == nil:
			r.fail(&Issue{Table: t.Name, Reason: "foreign key without referenced table"}, false)
		case len(fk.Columns) != len(fk.RefColumns):
			r.fail(&Issue{Table: t.Name, Reason: fmt.Sprintf("foreign key to %s has %d columns for %d referenced columns", fk.RefTable.Name, len(fk.Columns), len(fk.RefColumns))}, false)
		case !known(fk.Columns):
			r.fail(&Issue{Table: t.Name, Reason: "foreign key over an unknown column"}, false)
		}
	}
}

// ValidateSchema checks every table and the references between them.
func ValidateSchema(tables []*Table) *Report {
	r := &Report{}
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		if _, ok := byName[t.Name]; ok {
			r.fail(&Issue{Table: t.Name, Reason: "duplicate table"}, false)
		} else {
			byName[t.Name] = t
		}
		validateTable(r, t)
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == nil {
				continue
			}
			ref, ok := byName[fk.RefTable.Name]
			if !ok {
				r.fail(&Issue{Table: t.Name, Reason: fmt.Sprintf("foreign key references the unknown table %s", fk.RefTable.Name)}, false)
				continue
			}
			for _, c := range fk.RefColumns {
				if c == nil {
					continue
				}
				if _, ok := ref.Column(c.Name); !ok {
					r.fail(&Issue{Table: t.Name, Reason: fmt.Sprintf("foreign key references the unknown column %s.%s", ref.Name, c.Name)}, false)
				}
			}
		}
	}
	return r
}

func names(cols []*Column) []string {
	ns := make([]string, len(cols))
	for i, c := range cols {
		ns[i] = c.Name
	}
	return ns
}
