package graph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/syssam/strata/dialect/sqlschema"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Graph is the resolved schema of a set of entity definitions. It is
// read-only once Build returns and safe for concurrent use.
type Graph struct {
	entities   []*Entity
	byName     map[string]*Entity
	joinTables []*JoinTable
	logger     *slog.Logger
	workers    int
}

// Entities returns the entities in registration order.
func (g *Graph) Entities() []*Entity {
	return slices.Clone(g.entities)
}

// Entity returns the entity with the given name.
func (g *Graph) Entity(name string) (*Entity, bool) {
	e, ok := g.byName[name]
	return e, ok
}

// JoinTables returns the association tables of the many-to-many relations.
func (g *Graph) JoinTables() []*JoinTable {
	return slices.Clone(g.joinTables)
}

// Tables returns the entities that own a physical table, in registration
// order.
func (g *Graph) Tables() []*Entity {
	var ts []*Entity
	for _, e := range g.entities {
		if e.HasTable() {
			ts = append(ts, e)
		}
	}
	return ts
}

// Logger returns the logger the graph was built with.
func (g *Graph) Logger() *slog.Logger {
	return g.logger
}

// Workers returns the concurrency limit the graph was built with. Zero
// means unbounded.
func (g *Graph) Workers() int {
	return g.workers
}

// ColumnKind tells how a column came to exist.
type ColumnKind uint8

// Column kinds.
const (
	PlainColumn         ColumnKind = iota // declared attribute
	ForeignKeyColumn                      // generated by an owning relationship
	InheritedColumn                       // copied from the parent entity
	DiscriminatorColumn                   // synthesized discriminator of the children
)

// String returns the kind name.
func (k ColumnKind) String() string {
	switch k {
	case PlainColumn:
		return "plain"
	case ForeignKeyColumn:
		return "foreign key"
	case InheritedColumn:
		return "inherited"
	case DiscriminatorColumn:
		return "discriminator"
	default:
		return fmt.Sprintf("ColumnKind(%d)", k)
	}
}

// Column is a column of an entity or of an association table.
type Column struct {
	Name       string
	Entity     *Entity           // entity whose column set holds the column
	Kind       ColumnKind        // origin of the column
	Field      *field.Descriptor // source field of a plain column
	Relation   *Relation         // relation of a foreign-key column
	References *Column           // referenced key of a foreign key, or the copied column
	Type       field.Type        // resolved value type
	Nullable   bool              // accepts NULL
	Unique     bool              // single column UNIQUE
	PrimaryKey bool              // part of the primary key
	Default    any               // canonical default value
	Comment    string
}

// Origin follows inherited copies back to the column they were made from.
func (c *Column) Origin() *Column {
	for c.Kind == InheritedColumn && c.References != nil {
		c = c.References
	}
	return c
}

// String returns the qualified column name.
func (c *Column) String() string {
	if c.Entity == nil {
		return c.Name
	}
	return c.Entity.Name + "." + c.Name
}

// Relation is a resolved relationship declared on an entity.
type Relation struct {
	Name       string
	Entity     *Entity   // declaring entity
	Target     *Entity   // target entity
	Rel        edge.Rel  // cardinality seen from the declaring entity
	Mapping    *Relation // owning relation of the pair; the relation itself when owning
	Join       Join      // physical mapping shared by both sides of the pair
	Required   bool
	Unique     bool
	PrimaryKey bool
	OnUpdate   sqlschema.CascadeAction
	OnDelete   sqlschema.CascadeAction
	Descriptor *edge.Descriptor
}

// Owning reports whether the relation stores the physical columns.
func (r *Relation) Owning() bool {
	return r.Mapping == r
}

// String returns the qualified relation name.
func (r *Relation) String() string {
	return r.Entity.Name + "." + r.Name
}

// Pair is one column equality of a relationship join. Near belongs to the
// declaring side and Far to the other side.
type Pair struct {
	Near, Far *Column
}

// Pairs returns the equalities joining the declaring entity to the target
// of a foreign-key relation. It returns nil for many-to-many relations.
func (r *Relation) Pairs() []Pair {
	var cols []*Column
	switch j := r.Join.(type) {
	case *ForeignKey:
		cols = []*Column{j.Column}
	case *ForeignKeyGroup:
		cols = j.Columns
	case *JoinTable, nil:
		return nil
	}
	pairs := make([]Pair, len(cols))
	for i, c := range cols {
		if r.Owning() {
			pairs[i] = Pair{Near: c, Far: c.References}
		} else {
			pairs[i] = Pair{Near: c.References, Far: c}
		}
	}
	return pairs
}

// Through returns the association table of a many-to-many relation, the
// equalities joining the declaring entity to it and the equalities joining
// it to the target.
func (r *Relation) Through() (jt *JoinTable, near, far []Pair) {
	jt, ok := r.Join.(*JoinTable)
	if !ok {
		return nil, nil, nil
	}
	in, out := jt.Owner, jt.Target
	if !r.Owning() {
		in, out = out, in
	}
	for _, c := range in {
		near = append(near, Pair{Near: c.References, Far: c})
	}
	for _, c := range out {
		far = append(far, Pair{Near: c, Far: c.References})
	}
	return jt, near, far
}

// Join is the physical mapping of a relationship pair. It is one of
// *ForeignKey, *ForeignKeyGroup or *JoinTable.
type Join interface {
	join()
}

// ForeignKey maps a relation to one column.
type ForeignKey struct {
	Column *Column
}

// ForeignKeyGroup maps a relation to several columns referencing a
// composite key.
type ForeignKeyGroup struct {
	Columns []*Column
}

// JoinTable maps a many-to-many relation to an association table.
type JoinTable struct {
	Name     string
	Relation *Relation // owning relation
	Owner    []*Column // reference the key of the owning entity
	Target   []*Column // reference the key of the target entity
	OnUpdate sqlschema.CascadeAction
	OnDelete sqlschema.CascadeAction
}

// Columns returns the owner columns followed by the target columns.
func (j *JoinTable) Columns() []*Column {
	return append(slices.Clone(j.Owner), j.Target...)
}

func (*ForeignKey) join()      {}
func (*ForeignKeyGroup) join() {}
func (*JoinTable) join()       {}

// Entity is a resolved entity.
type Entity struct {
	Name               string
	Table              string          // empty iff the entity has no table
	Strategy           schema.Strategy // inheritance strategy of the hierarchy
	Parent             *Entity
	Children           []*Entity
	Discriminator      *Column // present iff the entity has children
	DiscriminatorValue any     // canonical value in the parent's discriminator, nil for roots
	Comment            string
	Descriptor         *schema.Descriptor

	inherited []*Column // key copies, or all parent columns under TablePerClass
	plain     []*Column
	fks       []*Column
	merged    []*Column // descendants' columns stored in this table
	keys      []*Column
	relations []*Relation
	uniques   [][]*Column
}

// String returns the entity name.
func (e *Entity) String() string { return e.Name }

// Columns returns the logical column set: inherited columns, own plain
// columns, own foreign keys and the discriminator.
func (e *Entity) Columns() []*Column {
	cols := make([]*Column, 0, len(e.inherited)+len(e.plain)+len(e.fks)+1)
	cols = append(cols, e.inherited...)
	cols = append(cols, e.plain...)
	cols = append(cols, e.fks...)
	if e.Discriminator != nil {
		cols = append(cols, e.Discriminator)
	}
	return cols
}

// OwnColumns returns the columns declared by the entity itself.
func (e *Entity) OwnColumns() []*Column {
	return e.Columns()[len(e.inherited):]
}

// TableColumns returns the columns stored in the entity's table, including
// the descendants' columns merged into a SingleTable root. It returns nil
// for entities without a table.
func (e *Entity) TableColumns() []*Column {
	if !e.HasTable() {
		return nil
	}
	return append(e.Columns(), e.merged...)
}

// PrimaryKey returns the primary-key columns.
func (e *Entity) PrimaryKey() []*Column {
	return slices.Clone(e.keys)
}

// Relations returns the declared relations.
func (e *Entity) Relations() []*Relation {
	return slices.Clone(e.relations)
}

// Relation returns the relation declared on the entity or one of its
// ancestors with the given name.
func (e *Entity) Relation(name string) (*Relation, bool) {
	for x := e; x != nil; x = x.Parent {
		for _, r := range x.relations {
			if r.Name == name {
				return r, true
			}
		}
	}
	return nil, false
}

// Uniques returns the composite unique constraints.
func (e *Entity) Uniques() [][]*Column {
	return slices.Clone(e.uniques)
}

// HasTable reports whether the entity owns a physical table.
func (e *Entity) HasTable() bool {
	return e.Table != ""
}

// Root returns the root of the entity's hierarchy.
func (e *Entity) Root() *Entity {
	for e.Parent != nil {
		e = e.Parent
	}
	return e
}

// Ancestors returns the ancestors, nearest first.
func (e *Entity) Ancestors() []*Entity {
	var as []*Entity
	for p := e.Parent; p != nil; p = p.Parent {
		as = append(as, p)
	}
	return as
}

// Descendants returns the descendants in depth-first pre-order.
func (e *Entity) Descendants() []*Entity {
	var ds []*Entity
	for _, c := range e.Children {
		ds = append(ds, c)
		ds = append(ds, c.Descendants()...)
	}
	return ds
}

// IsA reports whether e is x or a descendant of x.
func (e *Entity) IsA(x *Entity) bool {
	for ; e != nil; e = e.Parent {
		if e == x {
			return true
		}
	}
	return false
}

// TableOwner returns the entity whose table stores the columns declared by e.
func (e *Entity) TableOwner() *Entity {
	if e.Strategy == schema.SingleTable {
		return e.Root()
	}
	return e
}

// Local returns the column of e holding the values of c. Under
// TablePerClass, columns of ancestors map to their copies in e; otherwise
// c is returned unchanged.
func (e *Entity) Local(c *Column) *Column {
	if e.Strategy != schema.TablePerClass || c.Entity == e {
		return c
	}
	o := c.Origin()
	for _, ic := range e.inherited {
		if ic.Origin() == o {
			return ic
		}
	}
	return c
}

// FieldColumns returns the plain columns populating an object of e, from
// the root's fields down to e's own. Under TablePerClass the inherited
// copies are returned in place of the ancestors' columns.
func (e *Entity) FieldColumns() []*Column {
	var cols []*Column
	if e.Strategy == schema.TablePerClass {
		for _, c := range e.Columns() {
			if c.Origin().Kind == PlainColumn {
				cols = append(cols, c)
			}
		}
		return cols
	}
	chain := append([]*Entity{e}, e.Ancestors()...)
	for i := len(chain) - 1; i >= 0; i-- {
		cols = append(cols, chain[i].plain...)
	}
	return cols
}

// Property resolves a property name to a plain column or a relation. The
// entity is searched first, then its ancestors, then its descendants.
func (e *Entity) Property(name string) (*Column, *Relation, bool) {
	search := append([]*Entity{e}, e.Ancestors()...)
	search = append(search, e.Descendants()...)
	for _, x := range search {
		for _, c := range x.plain {
			if c.Field.Name == name {
				return e.Local(c), nil, true
			}
		}
		for _, r := range x.relations {
			if r.Name == name {
				return nil, r, true
			}
		}
	}
	return nil, nil, false
}

// New returns a new zero object of the entity.
func (e *Entity) New() any {
	return e.Descriptor.New()
}

// Upcast returns the part of obj, an object of e, declared by the ancestor x.
func (e *Entity) Upcast(obj any, x *Entity) (any, error) {
	for cur := e; cur != x; cur = cur.Parent {
		if cur == nil || cur.Descriptor.Upcast == nil {
			return nil, fmt.Errorf("graph: %s is not a descendant of %s", e.Name, x.Name)
		}
		var err error
		if obj, err = cur.Descriptor.Upcast(obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
