package field

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Canonical converts a value read from the database for a column of type t
// into its canonical Go form: int64 for integers, float64 for floats, bool,
// string (also for enums), time.Time, uuid.UUID, and []byte for bytes and
// other values. A nil value stays nil.
func Canonical(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t.Integer():
		return toInt64(v)
	case t.Float():
		return toFloat64(v)
	}
	switch t {
	case TypeBool:
		return toBool(v)
	case TypeString, TypeEnum:
		return toString(v)
	case TypeTime:
		return toTime(v)
	case TypeUUID:
		return toUUID(v)
	case TypeBytes, TypeOther:
		return toBytes(v)
	default:
		return nil, fmt.Errorf("field: unsupported type %v", t)
	}
}

// Parse parses the textual form of a value of type t (for example a declared
// discriminator value) into its canonical Go form.
func Parse(t Type, s string) (any, error) {
	switch {
	case t.Integer():
		return strconv.ParseInt(s, 10, 64)
	case t.Float():
		return strconv.ParseFloat(s, 64)
	}
	switch t {
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeString, TypeEnum:
		return s, nil
	case TypeTime:
		return time.Parse(time.RFC3339, s)
	case TypeUUID:
		return uuid.Parse(s)
	case TypeBytes:
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("field: cannot parse %q as %v", s, t)
	}
}

// DriverValue converts a Go value held by a field of type t into the value
// stored in the database: integers and booleans as int64, floats as float64,
// text as string, times as epoch milliseconds, UUIDs as their 16 bytes and
// other values as MessagePack blobs.
func DriverValue(t Type, v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case t.Integer():
		return toInt64(v)
	case t.Float():
		return toFloat64(v)
	}
	switch t {
	case TypeBool:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case TypeString, TypeEnum:
		return toString(v)
	case TypeTime:
		tv, err := toTime(v)
		if err != nil {
			return nil, err
		}
		return tv.UnixMilli(), nil
	case TypeUUID:
		u, err := toUUID(v)
		if err != nil {
			return nil, err
		}
		return u[:], nil
	case TypeBytes:
		return toBytes(v)
	case TypeOther:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("field: unsupported type %v", t)
	}
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("field: %v is not an integer", v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("field: cannot convert %T to integer", v)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("field: %d overflows int64", v)
	}
	return int64(v), nil
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("field: cannot convert %T to float", v)
	}
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("field: cannot convert %T to bool", v)
	}
}

func toString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("field: cannot convert %T to string", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	default:
		return time.Time{}, fmt.Errorf("field: cannot convert %T to time", v)
	}
}

func toUUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("field: cannot convert %T to uuid", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("field: cannot convert %T to bytes", v)
	}
}
