// Package schema provides the building blocks for defining entities.
//
// An entity is declared with a typed builder over the Go type it is
// materialized into. Fields and edges take plain accessor functions instead
// of struct tags, so no reflection is involved:
//
//   - [field]: builders for plain attributes
//   - [edge]: builders for relationships
//   - [mixin]: reusable sets of fields
//
// # Quick Start
//
//	type Person struct {
//	    ID      int64
//	    Name    string
//	    Country *Country
//	}
//
//	var PersonSchema = schema.Entity[Person]("Person").
//	    Table("people").
//	    Fields(
//	        field.Int64("id", func(p *Person) *int64 { return &p.ID }).PrimaryKey(),
//	        field.String("name", func(p *Person) *string { return &p.Name }),
//	    ).
//	    Edges(
//	        edge.ManyToOne("country", "Country", func(p *Person) **Country { return &p.Country }),
//	    )
//
// # Inheritance
//
// A root declares the strategy of its hierarchy and, when it has children,
// the discriminator column. Children name their parent with Extends:
//
//	schema.Entity[Book]("Book").
//	    Inheritance(schema.Joined).
//	    Discriminator("kind", field.TypeString)
//
//	schema.Entity[Fantasy]("Fantasy").
//	    Extends("Book", "fantasy", func(f *Fantasy) any { return &f.Book })
//
// SingleTable stores the whole hierarchy in the root table. Joined gives
// every entity its own table holding its own columns, keyed by the root's
// primary key. TablePerClass gives every entity a table holding all of its
// columns, inherited ones included.
//
// Definitions are turned into a resolved schema by graph.Build.
package schema
