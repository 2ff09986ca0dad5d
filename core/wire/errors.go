package wire

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated      = errors.New("wire: truncated frame")
	ErrTrailingData   = errors.New("wire: trailing values after frame")
	ErrFieldType      = errors.New("wire: field type mismatch")
	ErrUnknownKind    = errors.New("wire: unknown message kind")
	ErrNotOutbound    = errors.New("wire: not an outbound frame")
	ErrKindMismatch   = errors.New("wire: message kind mismatch")
	ErrInvalidMsgpack = errors.New("wire: invalid msgpack")
)

// FrameError reports which frame and which position failed to decode.
type FrameError struct {
	Frame string
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s frame: %v", e.Frame, e.Err)
	}
	return fmt.Sprintf("%s frame: value %d: %v", e.Frame, e.Index, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
