// Package edge provides typed builders for entity relationships.
//
// Every relationship pair has exactly one owning side, the side that stores
// the join columns. The other side names it with MappedBy and only
// contributes a query-time join.
//
// # Cardinalities
//
//	// Person owns a foreign key to Country (many-to-one).
//	edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country })
//
//	// Country sees the same columns from the other side (one-to-many).
//	edge.OneToMany("citizens", "Person", func(c *Country) *strata.List[*Person] { return &c.Citizens }).
//	    MappedBy("country")
//
//	// One-to-one, owning and inverse.
//	edge.OneToOne("passport", "Passport", func(p *Person) **Passport { return &p.Passport })
//	edge.OneToOne("holder", "Person", func(p *Passport) **Person { return &p.Holder }).
//	    MappedBy("passport")
//
//	// Many-to-many through an association table.
//	edge.ManyToMany("friends", "Person", func(p *Person) *strata.List[*Person] { return &p.Friends }).
//	    JoinTable("friendships")
//
// To-one targets are loaded eagerly when the declaring object is
// materialized. To-many targets are bound to a strata.List and loaded on
// first access.
//
// The target type R may be an interface, which allows polymorphic targets
// across an inheritance hierarchy.
//
// # Foreign Keys
//
// Foreign-key columns default to "<edge>_<target key column>" in snake_case.
// Columns overrides the names, one per target key column:
//
//	edge.ManyToOne("country", "Country", ref).
//	    Columns("country").
//	    Required().
//	    Annotations(sqlschema.OnDelete(sqlschema.Cascade))
//
// PrimaryKey turns the foreign key into part of the declaring entity's
// primary key (an identifying relationship).
package edge
