package edge

import (
	"context"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sqlschema"
)

// Rel is the cardinality of a relationship.
type Rel uint8

// Relationship cardinalities.
const (
	Unknown Rel = iota
	O2O         // one-to-one
	O2M         // one-to-many, the inverse of M2O
	M2O         // many-to-one
	M2M         // many-to-many, through an association table
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case O2O:
		return "OneToOne"
	case O2M:
		return "OneToMany"
	case M2O:
		return "ManyToOne"
	case M2M:
		return "ManyToMany"
	default:
		return "Unknown"
	}
}

// ToOne reports whether the relation holds at most one target.
func (r Rel) ToOne() bool {
	return r == O2O || r == M2O
}

// ToMany reports whether the relation holds a collection of targets.
func (r Rel) ToMany() bool {
	return r == O2M || r == M2M
}

// Inverse returns the cardinality seen from the other side.
func (r Rel) Inverse() Rel {
	switch r {
	case O2M:
		return M2O
	case M2O:
		return O2M
	default:
		return r
	}
}

// A Descriptor is the resolved description of a declared relationship.
type Descriptor struct {
	Name       string               // property name, e.g. "country"
	Target     string               // target entity name
	Rel        Rel                  // cardinality
	MappedBy   string               // owning edge on the target; set iff this side does not own the columns
	Columns    []string             // explicit foreign-key column names of an owning to-one edge
	JoinTable  string               // explicit association table of an owning many-to-many edge
	Required   bool                 // foreign-key columns are NOT NULL
	Unique     bool                 // foreign-key columns are UNIQUE
	PrimaryKey bool                 // identifying edge: foreign-key columns are part of the primary key
	Annotation sqlschema.Annotation // referential actions
	Comment    string
	Owner      string // Go type of the declaring entity, for diagnostics
	Err        error  // declaration error, reported when the schema is built

	set  func(obj, v any) error
	bind func(obj any, load func(context.Context) ([]any, error)) error
}

// Owning reports whether this side stores the physical join columns.
func (d *Descriptor) Owning() bool {
	return d.MappedBy == ""
}

// Set assigns the materialized target v (nil for none) to a to-one edge of obj.
func (d *Descriptor) Set(obj, v any) error {
	if d.set == nil {
		return fmt.Errorf("edge %q: not a to-one edge", d.Name)
	}
	return d.set(obj, v)
}

// Bind attaches a deferred loader to a to-many edge of obj.
func (d *Descriptor) Bind(obj any, load func(context.Context) ([]any, error)) error {
	if d.bind == nil {
		return fmt.Errorf("edge %q: not a to-many edge", d.Name)
	}
	return d.bind(obj, load)
}

// Edge is a relationship declaration bound to the entity type T.
type Edge[T any] interface {
	Descriptor() *Descriptor
	owner(*T)
}

// typeName returns the name of R, without reflection.
func typeName[R any]() string {
	return fmt.Sprintf("%T", (*R)(nil))[1:]
}

func newDescriptor[T any](name, target string, rel Rel) *Descriptor {
	d := &Descriptor{Name: name, Target: target, Rel: rel, Owner: typeName[*T]()}
	if target == "" {
		d.Err = fmt.Errorf("edge %q: missing target entity", name)
	}
	return d
}

// ToOneBuilder builds a ManyToOne or OneToOne edge.
type ToOneBuilder[T, R any] struct {
	desc *Descriptor
}

func toOne[T, R any](name, target string, rel Rel, ref func(*T) *R) *ToOneBuilder[T, R] {
	d := newDescriptor[T](name, target, rel)
	if ref == nil && d.Err == nil {
		d.Err = fmt.Errorf("edge %q: missing accessor", name)
	}
	d.set = func(obj, v any) error {
		t, ok := obj.(*T)
		if !ok {
			return fmt.Errorf("edge %q: object is %T, want %s", name, obj, d.Owner)
		}
		if v == nil {
			var zero R
			*ref(t) = zero
			return nil
		}
		r, ok := v.(R)
		if !ok {
			return fmt.Errorf("edge %q: %T is not assignable to %s", name, v, typeName[R]())
		}
		*ref(t) = r
		return nil
	}
	return &ToOneBuilder[T, R]{desc: d}
}

// ManyToOne returns an owning edge whose foreign-key columns live in the
// table of T and reference the primary key of target.
//
//	edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country })
func ManyToOne[T, R any](name, target string, ref func(*T) *R) *ToOneBuilder[T, R] {
	return toOne(name, target, M2O, ref)
}

// OneToOne returns a one-to-one edge. It owns the foreign-key columns unless
// MappedBy names the owning edge on the target.
func OneToOne[T, R any](name, target string, ref func(*T) *R) *ToOneBuilder[T, R] {
	b := toOne(name, target, O2O, ref)
	b.desc.Unique = true
	return b
}

func (*ToOneBuilder[T, R]) owner(*T) {}

// MappedBy marks a OneToOne edge as the non-owning side of the named edge.
func (b *ToOneBuilder[T, R]) MappedBy(name string) *ToOneBuilder[T, R] {
	if b.desc.Rel != O2O {
		b.desc.Err = fmt.Errorf("edge %q: MappedBy on a %s edge", b.desc.Name, b.desc.Rel)
		return b
	}
	b.desc.MappedBy = name
	return b
}

// Columns sets the foreign-key column names, one per target key column.
func (b *ToOneBuilder[T, R]) Columns(names ...string) *ToOneBuilder[T, R] {
	b.desc.Columns = names
	return b
}

// Required makes the foreign-key columns NOT NULL.
func (b *ToOneBuilder[T, R]) Required() *ToOneBuilder[T, R] {
	b.desc.Required = true
	return b
}

// Unique adds a UNIQUE constraint to the foreign-key columns.
func (b *ToOneBuilder[T, R]) Unique() *ToOneBuilder[T, R] {
	b.desc.Unique = true
	return b
}

// PrimaryKey makes the edge identifying: its foreign-key columns become part
// of the primary key of T.
func (b *ToOneBuilder[T, R]) PrimaryKey() *ToOneBuilder[T, R] {
	b.desc.PrimaryKey = true
	b.desc.Required = true
	return b
}

// Annotations sets the referential actions of the foreign key.
func (b *ToOneBuilder[T, R]) Annotations(as ...sqlschema.Annotation) *ToOneBuilder[T, R] {
	b.desc.Annotation = sqlschema.Merge(append([]sqlschema.Annotation{b.desc.Annotation}, as...)...)
	return b
}

// Comment sets the comment of the edge.
func (b *ToOneBuilder[T, R]) Comment(c string) *ToOneBuilder[T, R] {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface.
func (b *ToOneBuilder[T, R]) Descriptor() *Descriptor {
	d := b.desc
	if d.Err == nil && !d.Owning() && (len(d.Columns) > 0 || d.PrimaryKey) {
		d.Err = fmt.Errorf("edge %q: the non-owning side cannot declare columns", d.Name)
	}
	return d
}

// ToManyBuilder builds a OneToMany or ManyToMany edge.
type ToManyBuilder[T, R any] struct {
	desc *Descriptor
}

func toMany[T, R any](name, target string, rel Rel, ref func(*T) *strata.List[R]) *ToManyBuilder[T, R] {
	d := newDescriptor[T](name, target, rel)
	if ref == nil && d.Err == nil {
		d.Err = fmt.Errorf("edge %q: missing accessor", name)
	}
	d.bind = func(obj any, load func(context.Context) ([]any, error)) error {
		t, ok := obj.(*T)
		if !ok {
			return fmt.Errorf("edge %q: object is %T, want %s", name, obj, d.Owner)
		}
		ref(t).Reset(name, func(ctx context.Context) ([]R, error) {
			objs, err := load(ctx)
			if err != nil {
				return nil, err
			}
			items := make([]R, 0, len(objs))
			for _, o := range objs {
				r, ok := o.(R)
				if !ok {
					return nil, fmt.Errorf("edge %q: %T is not assignable to %s", name, o, typeName[R]())
				}
				items = append(items, r)
			}
			return items, nil
		})
		return nil
	}
	return &ToManyBuilder[T, R]{desc: d}
}

// OneToMany returns the inverse side of a ManyToOne edge declared on target.
// MappedBy is required.
//
//	edge.OneToMany("citizens", "Person", func(c *Country) *strata.List[*Person] { return &c.Citizens }).
//	    MappedBy("country")
func OneToMany[T, R any](name, target string, ref func(*T) *strata.List[R]) *ToManyBuilder[T, R] {
	return toMany(name, target, O2M, ref)
}

// ManyToMany returns a many-to-many edge stored in an association table. It
// owns the table unless MappedBy names the owning edge on the target.
func ManyToMany[T, R any](name, target string, ref func(*T) *strata.List[R]) *ToManyBuilder[T, R] {
	return toMany(name, target, M2M, ref)
}

func (*ToManyBuilder[T, R]) owner(*T) {}

// MappedBy names the owning edge on the target.
func (b *ToManyBuilder[T, R]) MappedBy(name string) *ToManyBuilder[T, R] {
	b.desc.MappedBy = name
	return b
}

// JoinTable sets the association table name of an owning ManyToMany edge.
func (b *ToManyBuilder[T, R]) JoinTable(name string) *ToManyBuilder[T, R] {
	b.desc.JoinTable = name
	return b
}

// Annotations sets the referential actions of the association table keys.
func (b *ToManyBuilder[T, R]) Annotations(as ...sqlschema.Annotation) *ToManyBuilder[T, R] {
	b.desc.Annotation = sqlschema.Merge(append([]sqlschema.Annotation{b.desc.Annotation}, as...)...)
	return b
}

// Comment sets the comment of the edge.
func (b *ToManyBuilder[T, R]) Comment(c string) *ToManyBuilder[T, R] {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Edge interface.
func (b *ToManyBuilder[T, R]) Descriptor() *Descriptor {
	d := b.desc
	if d.Err != nil {
		return d
	}
	switch {
	case d.Rel == O2M && d.MappedBy == "":
		d.Err = fmt.Errorf("edge %q: OneToMany requires MappedBy", d.Name)
	case d.Rel == O2M && d.JoinTable != "":
		d.Err = fmt.Errorf("edge %q: JoinTable on a OneToMany edge", d.Name)
	case d.MappedBy != "" && d.JoinTable != "":
		d.Err = fmt.Errorf("edge %q: the non-owning side cannot declare a join table", d.Name)
	}
	return d
}
