package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect/sql/schema"
)

func peopleTable() *schema.Table {
	id := &schema.Column{Name: "id", Type: schema.TypeInteger}
	return &schema.Table{
		Name: "people",
		Columns: []*schema.Column{
			id,
			{Name: "name", Type: schema.TypeText},
			{Name: "age", Type: schema.TypeInteger, Nullable: true},
		},
		PrimaryKey: []*schema.Column{id},
	}
}

func TestValidateDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		mutate   func(cur *schema.Table)
		opts     []schema.ValidateOption
		errors   []string
		warnings []string
	}{
		{
			name: "equal",
		},
		{
			name:   "missing column",
			mutate: func(cur *schema.Table) { cur.Columns = cur.Columns[:2] },
			errors: []string{"people.age: column is missing from the database"},
		},
		{
			name: "extra nullable column",
			mutate: func(cur *schema.Table) {
				cur.Columns = append(cur.Columns, &schema.Column{Name: "nick", Type: schema.TypeText, Nullable: true})
			},
			warnings: []string{"people.nick: column is not described by the schema"},
		},
		{
			name: "extra required column",
			mutate: func(cur *schema.Table) {
				cur.Columns = append(cur.Columns, &schema.Column{Name: "nick", Type: schema.TypeText})
			},
			errors: []string{"people.nick: NOT NULL column without default is not described by the schema"},
		},
		{
			name: "extra required column allowed",
			mutate: func(cur *schema.Table) {
				cur.Columns = append(cur.Columns, &schema.Column{Name: "nick", Type: schema.TypeText})
			},
			opts:     []schema.ValidateOption{schema.AllowExtraColumns()},
			warnings: []string{"people.nick: NOT NULL column without default is not described by the schema"},
		},
		{
			name:   "not null",
			mutate: func(cur *schema.Table) { cur.Columns[2].Nullable = false },
			errors: []string{"people.age: column is NOT NULL, the schema declares it nullable"},
		},
		{
			name:     "not null allowed",
			mutate:   func(cur *schema.Table) { cur.Columns[2].Nullable = false },
			opts:     []schema.ValidateOption{schema.AllowNotNull()},
			warnings: []string{"people.age: column is NOT NULL, the schema declares it nullable"},
		},
		{
			name:     "type",
			mutate:   func(cur *schema.Table) { cur.Columns[1].Type = "VARCHAR(20)" },
			warnings: []string{"people.name: type is VARCHAR(20), the schema declares TEXT"},
		},
		{
			name:   "type case",
			mutate: func(cur *schema.Table) { cur.Columns[1].Type = "text" },
		},
		{
			name:     "unique",
			mutate:   func(cur *schema.Table) { cur.Columns[1].Unique = true },
			warnings: []string{"people.name: UNIQUE is true, the schema declares false"},
		},
		{
			name:   "primary key",
			mutate: func(cur *schema.Table) { cur.PrimaryKey = cur.Columns[:2] },
			errors: []string{"people: primary key is (id, name), the schema declares (id)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cur := peopleTable()
			if tt.mutate != nil {
				tt.mutate(cur)
			}
			r := schema.ValidateDiff([]*schema.Table{cur}, []*schema.Table{peopleTable()}, tt.opts...)
			assert.Equal(t, tt.errors, messages(r.Errors))
			assert.Equal(t, tt.warnings, messages(r.Warnings))
			assert.Equal(t, len(tt.errors) > 0, r.HasErrors())
		})
	}
}

func TestValidateDiff_ExtraTable(t *testing.T) {
	t.Parallel()
	current := []*schema.Table{peopleTable(), {Name: "legacy"}}
	r := schema.ValidateDiff(current, []*schema.Table{peopleTable()})
	require.True(t, r.HasErrors())
	assert.Equal(t, "  error: legacy: table is not described by the schema", r.String())

	r = schema.ValidateDiff(current, []*schema.Table{peopleTable()}, schema.AllowExtraTables())
	assert.False(t, r.HasErrors())
	assert.Len(t, r.Warnings, 1)

	// Tables missing from the database are created, not reported.
	r = schema.ValidateDiff(nil, []*schema.Table{peopleTable()})
	assert.Equal(t, "no issues", r.String())
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()
	countries := &schema.Table{Name: "countries", Columns: []*schema.Column{{Name: "name", Type: schema.TypeText}}}
	countries.PrimaryKey = countries.Columns

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		p := peopleTable()
		p.Columns = append(p.Columns, &schema.Column{Name: "country", Type: schema.TypeText})
		p.ForeignKeys = []*schema.ForeignKey{{Columns: p.Columns[3:], RefTable: countries, RefColumns: countries.PrimaryKey}}
		r := schema.ValidateSchema([]*schema.Table{countries, p})
		assert.False(t, r.HasErrors(), r.String())
		assert.Empty(t, r.Warnings)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		p := peopleTable()
		p.PrimaryKey[0].Nullable = true
		p.Uniques = [][]*schema.Column{{{Name: "nick"}}}
		p.ForeignKeys = []*schema.ForeignKey{
			{Columns: p.Columns[:1], RefTable: countries},
			{Columns: p.Columns[:1], RefTable: &schema.Table{Name: "planets"}, RefColumns: p.Columns[:1]},
			{Columns: p.Columns[:1], RefTable: countries, RefColumns: []*schema.Column{{Name: "code"}}},
		}
		r := schema.ValidateSchema([]*schema.Table{countries, p, {Name: "countries"}})
		assert.Equal(t, []string{
			"people.id: nullable primary key column",
			"people: unique constraint over an unknown column",
			"people: foreign key to countries has 1 columns for 0 referenced columns",
			"countries: duplicate table",
			"people: foreign key references the unknown table planets",
			"people: foreign key references the unknown column countries.code",
		}, messages(r.Errors))
		assert.Equal(t, []string{"countries: table has no primary key"}, messages(r.Warnings))
	})
}

func messages(issues []*schema.Issue) []string {
	var ms []string
	for _, i := range issues {
		ms = append(ms, i.Error())
	}
	return ms
}
