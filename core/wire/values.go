package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeValues writes each value as its own msgpack value, back to back.
func encodeValues(values ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decodeValues reads exactly n concatenated msgpack values, or any number
// when n is negative.
func decodeValues(frame string, data []byte, n int) ([]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	values := make([]any, 0, max(n, 0))
	for {
		v, err := dec.DecodeInterfaceLoose()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FrameError{Frame: frame, Index: len(values), Err: fmt.Errorf("%w: %v", ErrInvalidMsgpack, err)}
		}
		if len(values) == n {
			return nil, &FrameError{Frame: frame, Index: n, Err: ErrTrailingData}
		}
		values = append(values, v)
	}
	if len(values) < n {
		return nil, &FrameError{Frame: frame, Index: len(values), Err: ErrTruncated}
	}
	return values, nil
}

func asUint32(v any) (uint32, bool) {
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

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// asBytes accepts both msgpack bin and str for opaque byte payloads.
func asBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	case nil:
		return nil, true
	}
	return nil, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// asStringMap converts a decoded msgpack map into string pairs. Non-string
// values are rendered with fmt. A nil map decodes as empty.
func asStringMap(v any) (map[string]string, bool) {
	out := make(map[string]string)
	switch m := v.(type) {
	case nil:
		return out, true
	case map[string]any:
		for k, val := range m {
			out[k] = stringify(val)
		}
		return out, true
	case map[any]any:
		for k, val := range m {
			out[stringify(k)] = stringify(val)
		}
		return out, true
	}
	return nil, false
}

func stringify(v any) string {
	if s, ok := asString(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

func fieldErr(frame string, index int, want string, got any) error {
	return &FrameError{Frame: frame, Index: index, Err: fmt.Errorf("%w: want %s, got %T", ErrFieldType, want, got)}
}
