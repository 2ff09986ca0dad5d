// Package wire frames the messages exchanged with the transport engine.
//
// Every frame is a run of concatenated msgpack values, never a wrapping
// array. The engine delivers inbound frames
//
//	package_id, headers, payload, connection_id
//
// and accepts outbound frames
//
//	0, package_id, {}, payload
//
// where payload is itself a frame whose first value is the message kind:
//
//	1, module_id, handler_id, cookies, data     invoke a handler
//	2, package_id, module_id, state              push module state
//	3, name, value, max_age, private             set a cookie
package wire

import "fmt"

// Kind is the first value of a message payload.
type Kind uint8

// Message kinds.
const (
	KindInvoke    Kind = 1
	KindStatePush Kind = 2
	KindSetCookie Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindInvoke:
		return "invoke"
	case KindStatePush:
		return "state_push"
	case KindSetCookie:
		return "set_cookie"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// outboundTag marks frames sent from the runtime to the engine.
const outboundTag = 0

// Inbound is a frame delivered by the engine.
type Inbound struct {
	PackageID    uint32
	Headers      map[string]string
	Payload      []byte
	ConnectionID string
}

// DecodeInbound parses an inbound frame.
func DecodeInbound(frame []byte) (Inbound, error) {
	const name = "inbound"
	values, err := decodeValues(name, frame, 4)
	if err != nil {
		return Inbound{}, err
	}

	var in Inbound
	var ok bool
	if in.PackageID, ok = asUint32(values[0]); !ok {
		return Inbound{}, fieldErr(name, 0, "package id", values[0])
	}
	if in.Headers, ok = asStringMap(values[1]); !ok {
		return Inbound{}, fieldErr(name, 1, "headers map", values[1])
	}
	if in.Payload, ok = asBytes(values[2]); !ok {
		return Inbound{}, fieldErr(name, 2, "payload bytes", values[2])
	}
	if in.ConnectionID, ok = asString(values[3]); !ok {
		return Inbound{}, fieldErr(name, 3, "connection id", values[3])
	}
	return in, nil
}

// Encode renders the frame the way the engine delivers it.
func (in Inbound) Encode() ([]byte, error) {
	headers := in.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return encodeValues(in.PackageID, headers, in.Payload, in.ConnectionID)
}

// Outbound is a frame sent to the engine for one connection.
type Outbound struct {
	PackageID uint32
	Payload   []byte
}

// EncodeOutbound wraps payload for the package.
func EncodeOutbound(packageID uint32, payload []byte) ([]byte, error) {
	return encodeValues(outboundTag, packageID, map[string]string{}, payload)
}

// DecodeOutbound parses a frame produced by EncodeOutbound.
func DecodeOutbound(frame []byte) (Outbound, error) {
	const name = "outbound"
	values, err := decodeValues(name, frame, 4)
	if err != nil {
		return Outbound{}, err
	}
	if tag, ok := asUint32(values[0]); !ok || tag != outboundTag {
		return Outbound{}, &FrameError{Frame: name, Index: 0, Err: ErrNotOutbound}
	}

	var out Outbound
	var ok bool
	if out.PackageID, ok = asUint32(values[1]); !ok {
		return Outbound{}, fieldErr(name, 1, "package id", values[1])
	}
	if out.Payload, ok = asBytes(values[3]); !ok {
		return Outbound{}, fieldErr(name, 3, "payload bytes", values[3])
	}
	return out, nil
}
