// Package load reads entity descriptions from YAML files and turns them
// into schema definitions whose objects are dynamic records.
//
//	entities:
//	  - name: Country
//	    table: countries
//	    fields:
//	      - {name: name, type: string, primary_key: true}
//	      - {name: continent, type: string, nullable: true}
//	    edges:
//	      - {name: citizens, type: one_to_many, target: Person, mapped_by: country}
//	  - name: Book
//	    inheritance: joined
//	    discriminator: {column: kind, type: string}
//	  - name: Novel
//	    extends: Book
//	    value: novel
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sqlschema"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// File is the layout of a description file.
type File struct {
	Entities []*Entity `yaml:"entities"`
}

// Entity describes an entity.
type Entity struct {
	Name          string         `yaml:"name"`
	Table         string         `yaml:"table,omitempty"`
	Inheritance   string         `yaml:"inheritance,omitempty"`
	Discriminator *Discriminator `yaml:"discriminator,omitempty"`
	Extends       string         `yaml:"extends,omitempty"`
	Value         string         `yaml:"value,omitempty"`
	Fields        []*Field       `yaml:"fields,omitempty"`
	Edges         []*Edge        `yaml:"edges,omitempty"`
	Uniques       [][]string     `yaml:"uniques,omitempty"`
	Comment       string         `yaml:"comment,omitempty"`
}

// Discriminator describes the discriminator column of an entity.
type Discriminator struct {
	Column string `yaml:"column"`
	Type   string `yaml:"type"`
}

// Field describes a plain attribute.
type Field struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Column     string   `yaml:"column,omitempty"`
	Nullable   bool     `yaml:"nullable,omitempty"`
	Unique     bool     `yaml:"unique,omitempty"`
	PrimaryKey bool     `yaml:"primary_key,omitempty"`
	Default    *string  `yaml:"default,omitempty"`
	Values     []string `yaml:"values,omitempty"`
	Comment    string   `yaml:"comment,omitempty"`
}

// Edge describes a relationship.
type Edge struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Target     string   `yaml:"target"`
	MappedBy   string   `yaml:"mapped_by,omitempty"`
	Columns    []string `yaml:"columns,omitempty"`
	JoinTable  string   `yaml:"join_table,omitempty"`
	Required   bool     `yaml:"required,omitempty"`
	Unique     bool     `yaml:"unique,omitempty"`
	PrimaryKey bool     `yaml:"primary_key,omitempty"`
	OnDelete   string   `yaml:"on_delete,omitempty"`
	OnUpdate   string   `yaml:"on_update,omitempty"`
	Comment    string   `yaml:"comment,omitempty"`
}

// Parse parses description data and returns its definitions in file order.
func Parse(data []byte) ([]schema.Definition, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("load: %w", err)
	}
	return f.Definitions()
}

// LoadFile reads a description file.
func LoadFile(path string) ([]schema.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Load reads a description file, or every .yaml and .yml file of a
// directory in lexical order.
func Load(path string) ([]schema.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}
	files, err := Files(path)
	if err != nil {
		return nil, err
	}
	var defs []schema.Definition
	for _, file := range files {
		d, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d...)
	}
	return defs, nil
}

// Files returns the description files of a directory, sorted.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	var files []string
	for _, e := range entries {
		if ext := filepath.Ext(e.Name()); !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// Definitions converts the described entities. All description errors are
// reported together.
func (f *File) Definitions() ([]schema.Definition, error) {
	var (
		defs = make([]schema.Definition, 0, len(f.Entities))
		errs []error
	)
	for _, e := range f.Entities {
		d, err := e.Definition()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, d)
	}
	if len(errs) > 0 {
		return nil, strata.NewAggregateError(errs...)
	}
	return defs, nil
}

// Definition converts the entity into a definition of records.
func (e *Entity) Definition() (schema.Definition, error) {
	if e.Name == "" {
		return nil, errors.New("load: entity without name")
	}
	name := e.Name
	b := schema.Entity[Record](name).
		Table(e.Table).
		Comment(e.Comment).
		New(func() *Record { return NewRecord(name) })
	s, err := schema.ParseStrategy(e.Inheritance)
	if err != nil {
		return nil, fmt.Errorf("load: entity %q: %w", name, err)
	}
	if s != schema.StrategyUnset {
		b.Inheritance(s)
	}
	if d := e.Discriminator; d != nil {
		t, ok := field.ParseType(d.Type)
		if !ok {
			return nil, fmt.Errorf("load: entity %q: unknown discriminator type %q", name, d.Type)
		}
		b.Discriminator(d.Column, t)
	}
	if e.Extends != "" {
		b.Extends(e.Extends, e.Value, func(r *Record) any { return r })
	}
	for _, f := range e.Fields {
		fb, err := f.builder()
		if err != nil {
			return nil, fmt.Errorf("load: entity %q: %w", name, err)
		}
		b.Fields(fb)
	}
	for _, ed := range e.Edges {
		eb, err := ed.builder()
		if err != nil {
			return nil, fmt.Errorf("load: entity %q: %w", name, err)
		}
		b.Edges(eb)
	}
	for _, u := range e.Uniques {
		b.Unique(u...)
	}
	return b, nil
}

func (f *Field) builder() (field.Field[Record], error) {
	t, ok := field.ParseType(f.Type)
	if !ok {
		return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}
	name := f.Name
	b := field.Func(name, t, func(r *Record, v any) error {
		r.Set(name, v)
		return nil
	})
	if f.Column != "" {
		b.Column(f.Column)
	}
	if f.Nullable {
		b.Nullable()
	}
	if f.Unique {
		b.Unique()
	}
	if f.PrimaryKey {
		b.PrimaryKey()
	}
	if len(f.Values) > 0 {
		b.Values(f.Values...)
	}
	if f.Default != nil {
		v, err := field.Parse(t, *f.Default)
		if err != nil {
			return nil, fmt.Errorf("field %q: default: %w", name, err)
		}
		b.Default(v)
	}
	return b.Comment(f.Comment), nil
}

func (e *Edge) builder() (edge.Edge[Record], error) {
	var a sqlschema.Annotation
	for _, act := range []struct {
		raw string
		dst *sqlschema.CascadeAction
	}{{e.OnDelete, &a.OnDelete}, {e.OnUpdate, &a.OnUpdate}} {
		if act.raw == "" {
			continue
		}
		var ok bool
		if *act.dst, ok = sqlschema.ParseAction(act.raw); !ok {
			return nil, fmt.Errorf("edge %q: unknown referential action %q", e.Name, act.raw)
		}
	}
	name := e.Name
	switch strings.ToLower(e.Type) {
	case "many_to_one", "one_to_one":
		rel := edge.ManyToOne[Record, *Record]
		if strings.EqualFold(e.Type, "one_to_one") {
			rel = edge.OneToOne[Record, *Record]
		}
		b := rel(name, e.Target, func(r *Record) **Record { return r.ref(name) })
		if e.MappedBy != "" {
			b.MappedBy(e.MappedBy)
		}
		if len(e.Columns) > 0 {
			b.Columns(e.Columns...)
		}
		if e.Required {
			b.Required()
		}
		if e.Unique {
			b.Unique()
		}
		if e.PrimaryKey {
			b.PrimaryKey()
		}
		return b.Annotations(a).Comment(e.Comment), nil
	case "one_to_many", "many_to_many":
		rel := edge.OneToMany[Record, *Record]
		if strings.EqualFold(e.Type, "many_to_many") {
			rel = edge.ManyToMany[Record, *Record]
		}
		b := rel(name, e.Target, func(r *Record) *strata.List[*Record] { return r.List(name) })
		if e.MappedBy != "" {
			b.MappedBy(e.MappedBy)
		}
		if e.JoinTable != "" {
			b.JoinTable(e.JoinTable)
		}
		return b.Annotations(a).Comment(e.Comment), nil
	default:
		return nil, fmt.Errorf("edge %q: unknown type %q", e.Name, e.Type)
	}
}
