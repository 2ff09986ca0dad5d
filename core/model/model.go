// Package model implements the schema-bound record that handlers read and
// write, and its msgpack wire codec.
//
// A Model only ever holds values that satisfy its schema. Set normalizes every
// accepted value to one canonical Go form per type code:
//
//	s  string      []string
//	i  int32       []int32
//	f  float64     []float64
//	b  bool        []bool
//	t  []byte      [][]byte
//	*  *Model      []*Model
//
// A Model is owned by the call that created it and is not safe for
// concurrent use.
package model

import (
	"errors"
	"reflect"

	"github.com/artpar/hfn/core/schema"
)

var (
	// ErrUnknownField is returned when a record refers to a field its schema
	// does not declare.
	ErrUnknownField = errors.New("model: unknown field")

	// ErrMalformed is returned when encoded bytes are not a valid record.
	ErrMalformed = errors.New("model: malformed record")
)

// Model is a record bound to a schema.
type Model struct {
	schema  *schema.Schema
	schemas *schema.Registry

	// keys keeps first insertion order; data holds canonical values.
	keys []string
	data map[string]any
}

// New creates an empty record for s. The registry resolves nested field types.
func New(s *schema.Schema, schemas *schema.Registry) *Model {
	return &Model{
		schema:  s,
		schemas: schemas,
		data:    make(map[string]any),
	}
}

// Schema returns the schema the record is bound to.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Set validates value against the field named key and stores it. It reports
// false, leaving the record untouched, when the key is unknown, the value is
// empty (nil, zero, false, "" or an empty collection), array-ness differs
// from the field, a scalar fails its type check, or a nested record belongs
// to another schema. A later Set of the same key replaces the value but keeps
// its original position.
func (m *Model) Set(key string, value any) bool {
	if key == "" || isEmpty(value) {
		return false
	}
	f, ok := m.schema.FieldByName(key)
	if !ok {
		return false
	}

	var v any
	if f.IsScalar() {
		v, ok = normalizeScalarField(f, value)
	} else {
		v, ok = m.normalizeNestedField(f, value)
	}
	if !ok {
		return false
	}

	if _, exists := m.data[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.data[key] = v
	return true
}

// Get returns the stored value in canonical form, or nil.
func (m *Model) Get(key string) any {
	return m.data[key]
}

// Has reports whether key holds a value.
func (m *Model) Has(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Keys returns the stored keys in first insertion order.
func (m *Model) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of stored keys.
func (m *Model) Len() int {
	return len(m.keys)
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Model) Delete(key string) {
	if _, ok := m.data[key]; !ok {
		return
	}
	delete(m.data, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func normalizeScalarField(f *schema.Field, value any) (any, bool) {
	if _, isBlob := value.([]byte); isBlob || !isSlice(value) {
		if f.IsArray {
			return nil, false
		}
		return normalizeScalar(value, f.Type)
	}
	if !f.IsArray {
		return nil, false
	}

	rv := reflect.ValueOf(value)
	n := rv.Len()
	switch f.Type {
	case schema.TypeString:
		out := make([]string, n)
		for i := range out {
			v, ok := normalizeScalar(rv.Index(i).Interface(), f.Type)
			if !ok {
				return nil, false
			}
			out[i] = v.(string)
		}
		return out, true
	case schema.TypeInt:
		out := make([]int32, n)
		for i := range out {
			v, ok := normalizeScalar(rv.Index(i).Interface(), f.Type)
			if !ok {
				return nil, false
			}
			out[i] = v.(int32)
		}
		return out, true
	case schema.TypeFloat:
		out := make([]float64, n)
		for i := range out {
			v, ok := normalizeScalar(rv.Index(i).Interface(), f.Type)
			if !ok {
				return nil, false
			}
			out[i] = v.(float64)
		}
		return out, true
	case schema.TypeBool:
		out := make([]bool, n)
		for i := range out {
			v, ok := normalizeScalar(rv.Index(i).Interface(), f.Type)
			if !ok {
				return nil, false
			}
			out[i] = v.(bool)
		}
		return out, true
	case schema.TypeBytes:
		out := make([][]byte, n)
		for i := range out {
			v, ok := normalizeScalar(rv.Index(i).Interface(), f.Type)
			if !ok {
				return nil, false
			}
			out[i] = v.([]byte)
		}
		return out, true
	default:
		return nil, false
	}
}

func normalizeScalar(value any, code schema.TypeTag) (any, bool) {
	if !schema.CheckScalar(value, code) {
		return nil, false
	}
	switch code {
	case schema.TypeInt:
		n, _ := schema.AsInt32(value)
		return n, true
	case schema.TypeFloat:
		if f, ok := value.(float32); ok {
			return float64(f), true
		}
	}
	return value, true
}

func (m *Model) normalizeNestedField(f *schema.Field, value any) (any, bool) {
	target, ok := m.schemas.Resolve(f)
	if !ok {
		return nil, false
	}

	if !f.IsArray {
		child, ok := value.(*Model)
		if !ok || child == nil || !child.schema.SameAs(target) {
			return nil, false
		}
		return child, true
	}

	if !isSlice(value) {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	out := make([]*Model, rv.Len())
	for i := range out {
		child, ok := rv.Index(i).Interface().(*Model)
		if !ok || child == nil || !child.schema.SameAs(target) {
			return nil, false
		}
		out[i] = child
	}
	return out, true
}

func isSlice(value any) bool {
	if value == nil {
		return false
	}
	k := reflect.TypeOf(value).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// isEmpty reports whether value counts as absent for Set.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if m, ok := value.(*Model); ok {
		return m == nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
