package wire

import "fmt"

// Message is a decoded inner payload.
type Message interface {
	Kind() Kind
	Encode() ([]byte, error)
}

// Invoke asks the runtime to run a handler with encoded input data.
type Invoke struct {
	ModuleID  uint32
	HandlerID uint32
	Cookies   map[string]string
	Data      []byte
}

func (Invoke) Kind() Kind { return KindInvoke }

func (m Invoke) Encode() ([]byte, error) {
	cookies := m.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	return encodeValues(KindInvoke, m.ModuleID, m.HandlerID, cookies, m.Data)
}

// StatePush carries an encoded module State record.
type StatePush struct {
	PackageID uint32
	ModuleID  uint32
	State     []byte
}

func (StatePush) Kind() Kind { return KindStatePush }

func (m StatePush) Encode() ([]byte, error) {
	return encodeValues(KindStatePush, m.PackageID, m.ModuleID, m.State)
}

// SetCookie asks the engine to set a cookie on the connection.
type SetCookie struct {
	Name    string
	Value   string
	MaxAge  int
	Private bool
}

func (SetCookie) Kind() Kind { return KindSetCookie }

func (m SetCookie) Encode() ([]byte, error) {
	return encodeValues(KindSetCookie, m.Name, m.Value, m.MaxAge, m.Private)
}

// DecodeMessage parses an inner payload. Payloads of an unknown kind return
// an error wrapping ErrUnknownKind.
func DecodeMessage(payload []byte) (Message, error) {
	const name = "message"
	values, err := decodeValues(name, payload, -1)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, &FrameError{Frame: name, Index: 0, Err: ErrTruncated}
	}
	k, ok := asUint32(values[0])
	if !ok {
		return nil, fieldErr(name, 0, "kind", values[0])
	}

	// compare before narrowing: kind 257 must not read as an invoke
	switch k {
	case uint32(KindInvoke):
		return decodeInvoke(values)
	case uint32(KindStatePush):
		return decodeStatePush(values)
	case uint32(KindSetCookie):
		return decodeSetCookie(values)
	}
	return nil, &FrameError{Frame: name, Index: 0, Err: fmt.Errorf("%w: %d", ErrUnknownKind, k)}
}

func checkLen(frame string, values []any, n int) error {
	if len(values) < n {
		return &FrameError{Frame: frame, Index: len(values), Err: ErrTruncated}
	}
	if len(values) > n {
		return &FrameError{Frame: frame, Index: n, Err: ErrTrailingData}
	}
	return nil
}

func decodeInvoke(values []any) (Invoke, error) {
	const name = "invoke"
	if err := checkLen(name, values, 5); err != nil {
		return Invoke{}, err
	}
	var m Invoke
	var ok bool
	if m.ModuleID, ok = asUint32(values[1]); !ok {
		return Invoke{}, fieldErr(name, 1, "module id", values[1])
	}
	if m.HandlerID, ok = asUint32(values[2]); !ok {
		return Invoke{}, fieldErr(name, 2, "handler id", values[2])
	}
	if m.Cookies, ok = asStringMap(values[3]); !ok {
		return Invoke{}, fieldErr(name, 3, "cookies map", values[3])
	}
	if m.Data, ok = asBytes(values[4]); !ok {
		return Invoke{}, fieldErr(name, 4, "data bytes", values[4])
	}
	return m, nil
}

func decodeStatePush(values []any) (StatePush, error) {
	const name = "state_push"
	if err := checkLen(name, values, 4); err != nil {
		return StatePush{}, err
	}
	var m StatePush
	var ok bool
	if m.PackageID, ok = asUint32(values[1]); !ok {
		return StatePush{}, fieldErr(name, 1, "package id", values[1])
	}
	if m.ModuleID, ok = asUint32(values[2]); !ok {
		return StatePush{}, fieldErr(name, 2, "module id", values[2])
	}
	if m.State, ok = asBytes(values[3]); !ok {
		return StatePush{}, fieldErr(name, 3, "state bytes", values[3])
	}
	return m, nil
}

func decodeSetCookie(values []any) (SetCookie, error) {
	const name = "set_cookie"
	if err := checkLen(name, values, 5); err != nil {
		return SetCookie{}, err
	}
	var m SetCookie
	var ok bool
	if m.Name, ok = asString(values[1]); !ok {
		return SetCookie{}, fieldErr(name, 1, "name", values[1])
	}
	if m.Value, ok = asString(values[2]); !ok {
		return SetCookie{}, fieldErr(name, 2, "value", values[2])
	}
	if m.MaxAge, ok = asInt(values[3]); !ok {
		return SetCookie{}, fieldErr(name, 3, "max age", values[3])
	}
	if m.Private, ok = values[4].(bool); !ok {
		return SetCookie{}, fieldErr(name, 4, "private flag", values[4])
	}
	return m, nil
}

// EncodeOutboundMessage encodes msg and wraps it for the package.
func EncodeOutboundMessage(packageID uint32, msg Message) ([]byte, error) {
	payload, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	return EncodeOutbound(packageID, payload)
}
