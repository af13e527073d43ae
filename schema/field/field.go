package field

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// A Descriptor is the resolved description of a declared field. It carries
// plain accessors instead of reflection: Set assigns a database value to the
// field of an entity object.
type Descriptor struct {
	Name       string   // property name, e.g. "firstName"
	Column     string   // explicit column name; empty means snake_case of Name
	Type       Type     // declared value type
	Nullable   bool     // column accepts NULL
	Unique     bool     // single column UNIQUE constraint
	PrimaryKey bool     // part of the entity identity
	Default    any      // canonical default value, nil if none
	Enums      []string // allowed values of an enum field
	Comment    string   // field comment
	Owner      string   // Go type of the declaring entity, for diagnostics
	Err        error    // declaration error, reported when the schema is built

	set func(obj, v any) error
}

// Set assigns the database value v (nil for NULL) to the field of obj. The
// value is converted to the field's Go type first.
func (d *Descriptor) Set(obj, v any) error {
	if d.set == nil {
		return fmt.Errorf("field %q: no accessor", d.Name)
	}
	return d.set(obj, v)
}

// Field is a field declaration bound to the entity type T.
type Field[T any] interface {
	Descriptor() *Descriptor
	owner(*T)
}

// Builder builds a field of value type V on entity type T.
type Builder[T, V any] struct {
	desc   *Descriptor
	conv   func(any) (V, error)
	assign func(*T, V) error
	canon  func(V) any
}

func newBuilder[T, V any](name string, typ Type, ref func(*T) *V, conv func(any) (V, error), canon func(V) any) *Builder[T, V] {
	b := &Builder[T, V]{
		desc:  &Descriptor{Name: name, Type: typ, Owner: fmt.Sprintf("%T", (*T)(nil))},
		conv:  conv,
		canon: canon,
	}
	if ref == nil {
		b.desc.Err = fmt.Errorf("field %q: missing accessor", name)
		return b
	}
	b.assign = func(t *T, v V) error {
		*ref(t) = v
		return nil
	}
	return b
}

func (*Builder[T, V]) owner(*T) {}

// Column sets an explicit column name.
func (b *Builder[T, V]) Column(name string) *Builder[T, V] {
	b.desc.Column = name
	return b
}

// Nullable allows NULL in the column. NULL is read as the zero value of V.
func (b *Builder[T, V]) Nullable() *Builder[T, V] {
	b.desc.Nullable = true
	return b
}

// Unique adds a UNIQUE constraint to the column.
func (b *Builder[T, V]) Unique() *Builder[T, V] {
	b.desc.Unique = true
	return b
}

// PrimaryKey marks the field as (part of) the entity identity.
func (b *Builder[T, V]) PrimaryKey() *Builder[T, V] {
	b.desc.PrimaryKey = true
	return b
}

// Default sets the column default.
func (b *Builder[T, V]) Default(v V) *Builder[T, V] {
	b.desc.Default = b.canon(v)
	return b
}

// Values sets the allowed values of an enum field.
func (b *Builder[T, V]) Values(vs ...string) *Builder[T, V] {
	if b.desc.Type != TypeEnum {
		b.desc.Err = fmt.Errorf("field %q: values on a non-enum field of type %v", b.desc.Name, b.desc.Type)
		return b
	}
	b.desc.Enums = append(b.desc.Enums, vs...)
	return b
}

// Comment sets the comment of the field.
func (b *Builder[T, V]) Comment(c string) *Builder[T, V] {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *Builder[T, V]) Descriptor() *Descriptor {
	d := b.desc
	if d.Err == nil && d.Type == TypeEnum {
		switch {
		case len(d.Enums) == 0:
			d.Err = fmt.Errorf("field %q: enum without values", d.Name)
		case d.Default != nil && !slices.Contains(d.Enums, d.Default.(string)):
			d.Err = fmt.Errorf("field %q: default %q is not an enum value", d.Name, d.Default)
		}
	}
	d.set = b.set
	return d
}

func (b *Builder[T, V]) set(obj, v any) error {
	t, ok := obj.(*T)
	if !ok {
		return fmt.Errorf("field %q: object is %T, want %s", b.desc.Name, obj, b.desc.Owner)
	}
	var value V
	if v != nil {
		cv, err := Canonical(b.desc.Type, v)
		if err != nil {
			return fmt.Errorf("field %q: %w", b.desc.Name, err)
		}
		if b.desc.Type == TypeEnum && !slices.Contains(b.desc.Enums, cv.(string)) {
			return fmt.Errorf("field %q: %q is not a valid enum value", b.desc.Name, cv)
		}
		if value, err = b.conv(cv); err != nil {
			return fmt.Errorf("field %q: %w", b.desc.Name, err)
		}
	}
	return b.assign(t, value)
}

type (
	signed interface {
		~int | ~int8 | ~int16 | ~int32 | ~int64
	}
	unsigned interface {
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
	}
)

func identity[V any](v V) any { return v }

func convSigned[V signed](cv any) (V, error) {
	x := cv.(int64)
	v := V(x)
	if int64(v) != x {
		return 0, fmt.Errorf("value %d overflows %T", x, v)
	}
	return v, nil
}

func convUnsigned[V unsigned](cv any) (V, error) {
	x := cv.(int64)
	v := V(x)
	if x < 0 || int64(v) != x {
		return 0, fmt.Errorf("value %d overflows %T", x, v)
	}
	return v, nil
}

func signedField[T any, V signed](name string, typ Type, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, typ, ref, convSigned[V], func(v V) any { return int64(v) })
}

func unsignedField[T any, V unsigned](name string, typ Type, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, typ, ref, convUnsigned[V], func(v V) any { return int64(v) })
}

// Int returns a new int field.
func Int[T any, V ~int](name string, ref func(*T) *V) *Builder[T, V] {
	return signedField(name, TypeInt, ref)
}

// Int8 returns a new int8 field.
func Int8[T any, V ~int8](name string, ref func(*T) *V) *Builder[T, V] {
	return signedField(name, TypeInt8, ref)
}

// Int16 returns a new int16 field.
func Int16[T any, V ~int16](name string, ref func(*T) *V) *Builder[T, V] {
	return signedField(name, TypeInt16, ref)
}

// Int32 returns a new int32 field.
func Int32[T any, V ~int32](name string, ref func(*T) *V) *Builder[T, V] {
	return signedField(name, TypeInt32, ref)
}

// Int64 returns a new int64 field.
func Int64[T any, V ~int64](name string, ref func(*T) *V) *Builder[T, V] {
	return signedField(name, TypeInt64, ref)
}

// Uint returns a new uint field.
func Uint[T any, V ~uint](name string, ref func(*T) *V) *Builder[T, V] {
	return unsignedField(name, TypeUint, ref)
}

// Uint8 returns a new uint8 field.
func Uint8[T any, V ~uint8](name string, ref func(*T) *V) *Builder[T, V] {
	return unsignedField(name, TypeUint8, ref)
}

// Uint16 returns a new uint16 field.
func Uint16[T any, V ~uint16](name string, ref func(*T) *V) *Builder[T, V] {
	return unsignedField(name, TypeUint16, ref)
}

// Uint32 returns a new uint32 field.
func Uint32[T any, V ~uint32](name string, ref func(*T) *V) *Builder[T, V] {
	return unsignedField(name, TypeUint32, ref)
}

// Uint64 returns a new uint64 field.
func Uint64[T any, V ~uint64](name string, ref func(*T) *V) *Builder[T, V] {
	return unsignedField(name, TypeUint64, ref)
}

// Float32 returns a new float32 field.
func Float32[T any, V ~float32](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeFloat32, ref,
		func(cv any) (V, error) { return V(cv.(float64)), nil },
		func(v V) any { return float64(v) })
}

// Float64 returns a new float64 field.
func Float64[T any, V ~float64](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeFloat64, ref,
		func(cv any) (V, error) { return V(cv.(float64)), nil },
		func(v V) any { return float64(v) })
}

// Bool returns a new bool field, stored as INTEGER 0 or 1.
func Bool[T any, V ~bool](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeBool, ref,
		func(cv any) (V, error) { return V(cv.(bool)), nil },
		func(v V) any { return bool(v) })
}

// String returns a new string field.
func String[T any, V ~string](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeString, ref,
		func(cv any) (V, error) { return V(cv.(string)), nil },
		func(v V) any { return string(v) })
}

// Enum returns a new enum field. The allowed values are set with Values.
//
//	field.Enum("genre", func(f *Film) *Genre { return &f.Genre }).
//		Values("drama", "comedy")
func Enum[T any, V ~string](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeEnum, ref,
		func(cv any) (V, error) { return V(cv.(string)), nil },
		func(v V) any { return string(v) })
}

// Time returns a new time field, stored as INTEGER epoch milliseconds.
func Time[T any](name string, ref func(*T) *time.Time) *Builder[T, time.Time] {
	return newBuilder(name, TypeTime, ref,
		func(cv any) (time.Time, error) { return cv.(time.Time), nil },
		identity[time.Time])
}

// UUID returns a new UUID field, stored as a 16 byte BLOB.
func UUID[T any](name string, ref func(*T) *uuid.UUID) *Builder[T, uuid.UUID] {
	return newBuilder(name, TypeUUID, ref,
		func(cv any) (uuid.UUID, error) { return cv.(uuid.UUID), nil },
		identity[uuid.UUID])
}

// Bytes returns a new bytes field.
func Bytes[T any](name string, ref func(*T) *[]byte) *Builder[T, []byte] {
	return newBuilder(name, TypeBytes, ref,
		func(cv any) ([]byte, error) { return cv.([]byte), nil },
		identity[[]byte])
}

// Other returns a field of an arbitrary Go type, stored as a MessagePack
// encoded BLOB.
func Other[T, V any](name string, ref func(*T) *V) *Builder[T, V] {
	return newBuilder(name, TypeOther, ref,
		func(cv any) (V, error) {
			var v V
			if err := msgpack.Unmarshal(cv.([]byte), &v); err != nil {
				return v, fmt.Errorf("decode %T: %w", v, err)
			}
			return v, nil
		},
		identity[V])
}

// Func returns a field of the given type whose value is assigned through a
// setter receiving the canonical value (see Canonical). It serves entity
// types that are not Go structs, such as dynamic records.
func Func[T any](name string, typ Type, set func(*T, any) error) *Builder[T, any] {
	b := newBuilder[T, any](name, typ, nil,
		func(cv any) (any, error) { return cv, nil },
		func(v any) any {
			cv, err := Canonical(typ, v)
			if err != nil {
				return v
			}
			return cv
		})
	b.desc.Err = nil
	switch {
	case !typ.Valid():
		b.desc.Err = fmt.Errorf("field %q: invalid type %v", name, typ)
	case set == nil:
		b.desc.Err = fmt.Errorf("field %q: missing setter", name)
	}
	b.assign = set
	return b
}
