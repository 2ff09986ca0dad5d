// Package ports defines the contracts between the runtime and its
// collaborators. Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/hfn/core/topology"
)

// -----------------------------------------------------------------------------
// Transport Port
// -----------------------------------------------------------------------------

// ErrTransportClosed is returned by Transport.Read once the engine has shut
// down and no further frames will arrive.
var ErrTransportClosed = errors.New("transport: closed")

// Transport is the boundary to the engine that owns sockets, process
// bootstrap and application configuration.
type Transport interface {
	// Init hands the engine its startup arguments and returns the resolved
	// topology, msgpack encoded.
	Init(ctx context.Context, args topology.InitArgs) ([]byte, error)

	// Run starts the engine. It returns once the engine is accepting
	// connections.
	Run(ctx context.Context) error

	// Read blocks until the next inbound frame is available.
	Read(ctx context.Context) ([]byte, error)

	// SendMessage delivers an outbound frame to one connection.
	SendMessage(ctx context.Context, connectionID string, frame []byte) error
}

// -----------------------------------------------------------------------------
// Observability Port
// -----------------------------------------------------------------------------

// Drop reasons reported by the dispatcher.
const (
	DropEnvelope = "envelope"
	DropKind     = "kind"
	DropSchema   = "schema"
	DropHandler  = "handler"
)

// Handler failure kinds.
const (
	FailError = "error"
	FailPanic = "panic"
	FailHook  = "hook"
)

// State push results.
const (
	PushSent    = "sent"
	PushSkipped = "skipped"
	PushFailed  = "failed"
)

// Metrics records dispatch activity.
type Metrics interface {
	FrameDispatched()
	FrameDropped(reason string)
	DecodeFailed()

	HandlerStarted()
	// HandlerFinished is called once per started handler. failure is empty
	// on success, otherwise one of the Fail* kinds.
	HandlerFinished(handler string, elapsed time.Duration, failure string)

	StatePushed(result string)
	ErrorDropped()
}

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}
