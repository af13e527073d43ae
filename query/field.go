package query

// Field is a typed property path. It provides predicate constructors whose
// operands are checked at compile time.
//
//	var age = query.Field[int]("p.age")
//	q.Where(query.And(age.GTE(18), age.LT(65)))
type Field[V any] string

// Property returns the property operand.
func (f Field[V]) Property() *Property { return P(string(f)) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[V]) EQ(v V) Expr { return EQ(f.Property(), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[V]) NEQ(v V) Expr { return NEQ(f.Property(), Value(v)) }

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[V]) LT(v V) Expr { return LT(f.Property(), Value(v)) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[V]) LTE(v V) Expr { return LTE(f.Property(), Value(v)) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[V]) GT(v V) Expr { return GT(f.Property(), Value(v)) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[V]) GTE(v V) Expr { return GTE(f.Property(), Value(v)) }

// Like returns a LIKE predicate.
func (f Field[V]) Like(pattern string) Expr { return Like(f.Property(), Value(pattern)) }

// Glob returns a GLOB predicate.
func (f Field[V]) Glob(pattern string) Expr { return Glob(f.Property(), Value(pattern)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[V]) IsNull() Expr { return IsNull(f.Property()) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[V]) NotNull() Expr { return NotNull(f.Property()) }

// Asc orders by the field in ascending order.
func (f Field[V]) Asc() Order { return Order{Property: f.Property()} }

// Desc orders by the field in descending order.
func (f Field[V]) Desc() Order { return Order{Property: f.Property(), Desc: true} }
