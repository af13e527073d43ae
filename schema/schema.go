package schema

import (
	"fmt"
	"slices"

	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/mixin"
)

// Strategy is the inheritance mapping of a hierarchy. It is declared on the
// root entity and applies to all of its descendants.
type Strategy uint8

// Inheritance strategies.
const (
	StrategyUnset Strategy = iota
	SingleTable
	Joined
	TablePerClass
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case SingleTable:
		return "SINGLE_TABLE"
	case Joined:
		return "JOINED"
	case TablePerClass:
		return "TABLE_PER_CLASS"
	default:
		return "UNSET"
	}
}

// ParseStrategy parses a strategy name as returned by String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "SINGLE_TABLE", "single_table":
		return SingleTable, nil
	case "JOINED", "joined":
		return Joined, nil
	case "TABLE_PER_CLASS", "table_per_class":
		return TablePerClass, nil
	case "", "UNSET":
		return StrategyUnset, nil
	default:
		return StrategyUnset, fmt.Errorf("schema: unknown inheritance strategy %q", s)
	}
}

// Discriminator describes the column that tells the children of an entity apart.
type Discriminator struct {
	Column string
	Type   field.Type
}

// A Descriptor is the resolved description of a registered entity.
type Descriptor struct {
	Name               string              // entity name, e.g. "Person"
	Table              string              // explicit table name; empty means derived from Name
	Strategy           Strategy            // inheritance strategy, meaningful on roots
	Parent             string              // parent entity name, empty for roots
	DiscriminatorValue string              // raw value identifying this entity among its siblings
	Discriminator      *Discriminator      // discriminator of the children, nil if none
	Fields             []*field.Descriptor // plain attributes, mixin fields first
	Edges              []*edge.Descriptor  // relationships
	Uniques            [][]string          // composite unique constraints, by property name
	Comment            string
	Err                error // declaration error, reported when the graph is built

	// New returns a new zero object of the entity.
	New func() any
	// Upcast returns the part of obj declared by the parent entity.
	// It is nil for roots.
	Upcast func(obj any) (any, error)
}

// Definition is a registered entity. It is implemented by Builder and by
// dynamic definitions loaded from files.
type Definition interface {
	Descriptor() *Descriptor
}

// Builder builds the definition of entity type T.
type Builder[T any] struct {
	desc   *Descriptor
	mixins []mixin.Mixin[T]
	fields []field.Field[T]
	edges  []edge.Edge[T]
}

// Entity starts the definition of an entity named name, materialized into
// values of type *T.
//
//	schema.Entity[Person]("Person").
//	    Table("people").
//	    Fields(
//	        field.Int64("id", func(p *Person) *int64 { return &p.ID }).PrimaryKey(),
//	        field.String("name", func(p *Person) *string { return &p.Name }),
//	    )
func Entity[T any](name string) *Builder[T] {
	d := &Descriptor{
		Name: name,
		New:  func() any { return new(T) },
	}
	if name == "" {
		d.Err = fmt.Errorf("schema: entity %T has no name", (*T)(nil))
	}
	return &Builder[T]{desc: d}
}

// Table sets the table name.
func (b *Builder[T]) Table(name string) *Builder[T] {
	b.desc.Table = name
	return b
}

// Inheritance sets the inheritance strategy of the hierarchy rooted at this entity.
func (b *Builder[T]) Inheritance(s Strategy) *Builder[T] {
	b.desc.Strategy = s
	return b
}

// Discriminator declares the column telling the children apart and its type.
// Only strings, enums and integers can discriminate.
func (b *Builder[T]) Discriminator(column string, t field.Type) *Builder[T] {
	b.desc.Discriminator = &Discriminator{Column: column, Type: t}
	if b.desc.Err == nil && !t.Integer() && !t.Textual() {
		b.desc.Err = fmt.Errorf("schema: entity %q: %s cannot be a discriminator type", b.desc.Name, t)
	}
	return b
}

// Extends makes the entity a child of parent, identified in the parent's
// discriminator column by value. The upcast function returns the part of
// the object declared by the parent, usually the address of an embedded
// struct:
//
//	schema.Entity[Fantasy]("Fantasy").
//	    Extends("Book", "fantasy", func(f *Fantasy) any { return &f.Book })
func (b *Builder[T]) Extends(parent, value string, upcast func(*T) any) *Builder[T] {
	b.desc.Parent = parent
	b.desc.DiscriminatorValue = value
	if upcast == nil {
		if b.desc.Err == nil {
			b.desc.Err = fmt.Errorf("schema: entity %q: missing upcast to %q", b.desc.Name, parent)
		}
		return b
	}
	name := b.desc.Name
	b.desc.Upcast = func(obj any) (any, error) {
		t, ok := obj.(*T)
		if !ok {
			return nil, fmt.Errorf("schema: entity %q: object is %T, want %T", name, obj, (*T)(nil))
		}
		return upcast(t), nil
	}
	return b
}

// Mixin adds the fields and edges of the given mixins, before the entity's own.
func (b *Builder[T]) Mixin(ms ...mixin.Mixin[T]) *Builder[T] {
	b.mixins = append(b.mixins, ms...)
	return b
}

// Fields adds plain attributes.
func (b *Builder[T]) Fields(fs ...field.Field[T]) *Builder[T] {
	b.fields = append(b.fields, fs...)
	return b
}

// Edges adds relationships.
func (b *Builder[T]) Edges(es ...edge.Edge[T]) *Builder[T] {
	b.edges = append(b.edges, es...)
	return b
}

// Unique adds a composite unique constraint over the given properties.
func (b *Builder[T]) Unique(props ...string) *Builder[T] {
	b.desc.Uniques = append(b.desc.Uniques, slices.Clone(props))
	return b
}

// New overrides the constructor used by the materializer.
func (b *Builder[T]) New(fn func() *T) *Builder[T] {
	if fn != nil {
		b.desc.New = func() any { return fn() }
	}
	return b
}

// Comment sets the entity comment.
func (b *Builder[T]) Comment(c string) *Builder[T] {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Definition interface.
func (b *Builder[T]) Descriptor() *Descriptor {
	d := *b.desc
	d.Fields, d.Edges = nil, nil
	for _, m := range b.mixins {
		for _, f := range m.Fields() {
			d.Fields = append(d.Fields, f.Descriptor())
		}
		for _, e := range m.Edges() {
			d.Edges = append(d.Edges, e.Descriptor())
		}
	}
	for _, f := range b.fields {
		d.Fields = append(d.Fields, f.Descriptor())
	}
	for _, e := range b.edges {
		d.Edges = append(d.Edges, e.Descriptor())
	}
	d.Uniques = slices.Clone(b.desc.Uniques)
	for i, u := range d.Uniques {
		d.Uniques[i] = slices.Clone(u)
	}
	if b.desc.Discriminator != nil {
		disc := *b.desc.Discriminator
		d.Discriminator = &disc
	}
	return &d
}
