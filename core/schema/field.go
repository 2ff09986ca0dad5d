package schema

import (
	"math"

	"github.com/artpar/hfn/core/topology"
)

// TypeTag is a field type: a scalar code or a schema reference key.
type TypeTag string

// Scalar type codes.
const (
	TypeString TypeTag = "s"
	TypeInt    TypeTag = "i"
	TypeFloat  TypeTag = "f"
	TypeBool   TypeTag = "b"
	TypeBytes  TypeTag = "t"
)

// IsScalar reports whether the tag is a one character scalar code.
// Unknown one character codes are still scalar; they simply never validate.
func (t TypeTag) IsScalar() bool {
	return len(t) == 1
}

// Field describes one slot of a schema.
type Field struct {
	ID        uint32
	Name      string
	Type      TypeTag
	IsArray   bool
	PackageID uint32
	SchemaID  uint32
}

// IsScalar reports whether the field holds scalars rather than nested records.
func (f Field) IsScalar() bool {
	return f.Type.IsScalar()
}

func fieldFrom(tf topology.Field) *Field {
	return &Field{
		ID:        tf.ID,
		Name:      tf.Name,
		Type:      TypeTag(tf.Type),
		IsArray:   tf.IsArray,
		PackageID: tf.PackageID,
		SchemaID:  tf.SchemaID,
	}
}

// CheckScalar reports whether value satisfies the scalar type code.
// Integers of any Go kind are accepted for TypeInt as long as they fit in
// a signed 32-bit range.
func CheckScalar(value any, code TypeTag) bool {
	switch code {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInt:
		_, ok := AsInt32(value)
		return ok
	case TypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeBytes:
		_, ok := value.([]byte)
		return ok
	default:
		return false
	}
}

// AsInt32 converts any Go integer within int32 range.
func AsInt32(value any) (int32, bool) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		return v, true
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt32 {
			return 0, false
		}
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		if v > math.MaxInt32 {
			return 0, false
		}
		n = int64(v)
	case uint64:
		if v > math.MaxInt32 {
			return 0, false
		}
		n = int64(v)
	default:
		return 0, false
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}
