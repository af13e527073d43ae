package field

// Type is the declared value type of a field.
type Type uint8

// Field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeUUID
	TypeBytes
	TypeEnum
	TypeString
	TypeOther
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint
	TypeUint64
	TypeFloat32
	TypeFloat64
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeUUID:    "uuid.UUID",
	TypeBytes:   "[]byte",
	TypeEnum:    "enum",
	TypeString:  "string",
	TypeOther:   "other",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint:    "uint",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
}

var constNames = [...]string{
	TypeBool:    "TypeBool",
	TypeTime:    "TypeTime",
	TypeUUID:    "TypeUUID",
	TypeBytes:   "TypeBytes",
	TypeEnum:    "TypeEnum",
	TypeString:  "TypeString",
	TypeOther:   "TypeOther",
	TypeInt8:    "TypeInt8",
	TypeInt16:   "TypeInt16",
	TypeInt32:   "TypeInt32",
	TypeInt:     "TypeInt",
	TypeInt64:   "TypeInt64",
	TypeUint8:   "TypeUint8",
	TypeUint16:  "TypeUint16",
	TypeUint32:  "TypeUint32",
	TypeUint:    "TypeUint",
	TypeUint64:  "TypeUint64",
	TypeFloat32: "TypeFloat32",
	TypeFloat64: "TypeFloat64",
}

var typeByName = func() map[string]Type {
	m := make(map[string]Type, endTypes)
	for t := TypeBool; t < endTypes; t++ {
		m[typeNames[t]] = t
	}
	m["time"], m["uuid"], m["bytes"] = TypeTime, TypeUUID, TypeBytes
	return m
}()

// String returns the Go type name of the field type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// ConstName returns the constant name of the type. Used by the code generator.
func (t Type) ConstName() string {
	if t.Valid() {
		return constNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Integer reports if the type is a signed or unsigned integer.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// Float reports if the type is a floating point number.
func (t Type) Float() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Numeric reports if the type is a numeric type.
func (t Type) Numeric() bool {
	return t.Integer() || t.Float()
}

// Textual reports if the values of the type are stored as text.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeEnum
}

// ParseType returns the type with the given name, as written by String
// ("int64", "string", "time.Time"). "time", "uuid" and "bytes" are accepted
// as short forms.
func ParseType(name string) (Type, bool) {
	t, ok := typeByName[name]
	return t, ok
}
