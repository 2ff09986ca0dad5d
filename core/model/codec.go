package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/artpar/hfn/core/schema"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode writes the record as concatenated msgpack values: field id, value,
// field id, value, in key insertion order. Scalars are written natively.
// Nested records are encoded first and written as byte strings; nested arrays
// as an array of byte strings.
func (m *Model) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)

	for _, key := range m.keys {
		f, ok := m.schema.FieldByName(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		if err := enc.EncodeUint(uint64(f.ID)); err != nil {
			return nil, err
		}
		if err := m.encodeValue(enc, f, m.data[key]); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return buf.Bytes(), nil
}

func (m *Model) encodeValue(enc *msgpack.Encoder, f *schema.Field, value any) error {
	if f.IsScalar() {
		return enc.Encode(value)
	}

	if !f.IsArray {
		b, err := value.(*Model).Encode()
		if err != nil {
			return err
		}
		return enc.EncodeBytes(b)
	}

	children := value.([]*Model)
	if err := enc.EncodeArrayLen(len(children)); err != nil {
		return err
	}
	for _, child := range children {
		b, err := child.Encode()
		if err != nil {
			return err
		}
		if err := enc.EncodeBytes(b); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads alternating field ids and values and applies each pair through
// Set, so values Set would reject are skipped. Empty input is a no-op.
//
// Decoding stops at the first field id the schema does not declare and
// returns ErrUnknownField. Pairs applied before that point are kept.
func (m *Model) Decode(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	for {
		rawID, err := dec.DecodeInterfaceLoose()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		id, ok := fieldID(rawID)
		if !ok {
			return fmt.Errorf("%w: field id %v", ErrMalformed, rawID)
		}
		f, ok := m.schema.FieldByID(id)
		if !ok {
			return fmt.Errorf("%w: id %d in schema %s", ErrUnknownField, id, m.schema.Key())
		}

		raw, err := dec.DecodeInterfaceLoose()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: field %d has no value", ErrMalformed, id)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		value := raw
		switch f.Type {
		case schema.TypeFloat:
			value = widenFloat(raw)
		case schema.TypeBytes:
			value = binToBytes(raw)
		}
		if !f.IsScalar() {
			value, err = m.decodeNested(f, raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		m.Set(f.Name, value)
	}
}

func (m *Model) decodeNested(f *schema.Field, raw any) (any, error) {
	target, ok := m.schemas.Resolve(f)
	if !ok {
		return nil, fmt.Errorf("%w: unresolved type %q", ErrMalformed, f.Type)
	}

	if !f.IsArray {
		return m.decodeChild(target, raw)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrMalformed, raw)
	}
	children := make([]*Model, 0, len(items))
	for _, item := range items {
		child, err := m.decodeChild(target, item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func (m *Model) decodeChild(target *schema.Schema, raw any) (*Model, error) {
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return nil, fmt.Errorf("%w: expected bytes, got %T", ErrMalformed, raw)
	}
	child := New(target, m.schemas)
	if err := child.Decode(b); err != nil {
		return nil, err
	}
	return child, nil
}

// binToBytes restores byte slices from the strings the loose decoder
// returns for bin values.
func binToBytes(v any) any {
	switch b := v.(type) {
	case string:
		return []byte(b)
	case []any:
		out := make([]any, len(b))
		for i, item := range b {
			out[i] = binToBytes(item)
		}
		return out
	}
	return v
}

// widenFloat turns integers into float64. Some encoders write integral
// floats as integers.
func widenFloat(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = widenFloat(item)
		}
		return out
	}
	return v
}

func fieldID(v any) (uint32, bool) {
	switch n := v.(type) {
	case int64:
		if n < 0 || n > math.MaxUint32 {
			return 0, false
		}
		return uint32(n), true
	case uint64:
		if n > math.MaxUint32 {
			return 0, false
		}
		return uint32(n), true
	}
	return 0, false
}

// ToMap renders the record as a plain map keyed by field name, with nested
// records rendered recursively.
func (m *Model) ToMap() (map[string]any, error) {
	out := make(map[string]any, len(m.keys))
	for _, key := range m.keys {
		f, ok := m.schema.FieldByName(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		value := m.data[key]
		if f.IsScalar() {
			out[key] = value
			continue
		}
		if !f.IsArray {
			nested, err := value.(*Model).ToMap()
			if err != nil {
				return nil, err
			}
			out[key] = nested
			continue
		}
		children := value.([]*Model)
		list := make([]map[string]any, len(children))
		for i, child := range children {
			nested, err := child.ToMap()
			if err != nil {
				return nil, err
			}
			list[i] = nested
		}
		out[key] = list
	}
	return out, nil
}

// FromMap fills the record from a plain map keyed by field name, in field
// declaration order. Nested fields accept maps (or lists of maps) and are
// built into records of the referenced schema. Integers given for float
// fields are widened. Unknown keys and values Set rejects are skipped.
func (m *Model) FromMap(obj map[string]any) *Model {
	for _, f := range m.schema.Fields() {
		value, ok := obj[f.Name]
		if !ok {
			continue
		}
		if f.IsScalar() {
			if f.Type == schema.TypeFloat {
				value = widenFloat(value)
			}
			m.Set(f.Name, value)
			continue
		}
		target, ok := m.schemas.Resolve(&f)
		if !ok {
			continue
		}
		if !f.IsArray {
			if child, ok := m.childFromMap(target, value); ok {
				m.Set(f.Name, child)
			}
			continue
		}
		if !isSlice(value) {
			continue
		}
		rv := reflect.ValueOf(value)
		children := make([]*Model, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if child, ok := m.childFromMap(target, rv.Index(i).Interface()); ok {
				children = append(children, child)
			}
		}
		m.Set(f.Name, children)
	}
	return m
}

func (m *Model) childFromMap(target *schema.Schema, value any) (*Model, bool) {
	switch v := value.(type) {
	case *Model:
		return v, true
	case map[string]any:
		return New(target, m.schemas).FromMap(v), true
	}
	return nil, false
}
