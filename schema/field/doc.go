// Package field provides typed builders for the plain (non-relationship)
// attributes of an entity.
//
// A field is declared with its property name and an accessor returning a
// pointer to the struct field that holds it. The accessor replaces
// reflection: the materializer assigns database values through it.
//
//	type Person struct {
//	    FirstName string
//	    LastName  string
//	    Age       int
//	}
//
//	field.String("firstName", func(p *Person) *string { return &p.FirstName }).PrimaryKey()
//	field.Int("age", func(p *Person) *int { return &p.Age }).Default(18)
//
// Column names default to the snake_case form of the property name
// ("firstName" is stored in "first_name") unless Column is used.
//
// # Field Types
//
//	field.Bool       // INTEGER 0/1
//	field.Int ...    // INTEGER, including the sized and unsigned variants
//	field.Float64    // REAL
//	field.String     // TEXT
//	field.Enum       // TEXT, restricted to Values
//	field.Time       // INTEGER epoch milliseconds
//	field.UUID       // BLOB, 16 bytes
//	field.Bytes      // BLOB
//	field.Other      // BLOB, MessagePack encoded
//
// Named types are accepted wherever their underlying type matches:
//
//	type Genre string
//
//	field.Enum("genre", func(f *Film) *Genre { return &f.Genre }).
//	    Values("drama", "comedy")
//
// # Field Options
//
//	field.String("email", ref).
//	    Column("mail").   // explicit column name
//	    Unique().         // UNIQUE constraint
//	    Nullable().       // NULL allowed; read as the zero value
//	    Default("none").  // DEFAULT clause
//	    Comment("Contact address")
//
// Entity types that are not Go structs use Func, which hands the setter the
// canonical value of the column (see Canonical).
package field
