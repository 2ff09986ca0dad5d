// Package memory provides an in-process loopback transport for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/artpar/hfn/ports"
)

// DefaultBuffer is the inbound and outbound queue size used when none is given.
const DefaultBuffer = 64

// Sent is an outbound frame captured by the transport.
type Sent struct {
	ConnectionID string
	Frame        []byte
}

// Transport is a channel-backed implementation of ports.Transport. Frames
// injected with Inject are returned by Read in order; frames sent by the
// runtime are delivered on Sent.
type Transport struct {
	mu       sync.RWMutex
	topology []byte
	args     topology.InitArgs
	inited   bool
	running  bool

	inbound  chan []byte
	outbound chan Sent

	closed    chan struct{}
	closeOnce sync.Once
}

// NewTransport creates a loopback transport whose Init returns topo.
func NewTransport(topo topology.Topology, buffer int) (*Transport, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	encoded, err := topo.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode topology: %w", err)
	}
	return &Transport{
		topology: encoded,
		inbound:  make(chan []byte, buffer),
		outbound: make(chan Sent, buffer),
		closed:   make(chan struct{}),
	}, nil
}

// Init records the startup arguments and returns the encoded topology.
func (t *Transport) Init(ctx context.Context, args topology.InitArgs) ([]byte, error) {
	if t.isClosed() {
		return nil, ports.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.args = args
	t.inited = true
	return t.topology, nil
}

// Run marks the transport as running.
func (t *Transport) Run(ctx context.Context) error {
	if t.isClosed() {
		return ports.ErrTransportClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inited {
		return fmt.Errorf("memory transport: Run before Init")
	}
	t.running = true
	return nil
}

// Read returns the next injected frame. Frames queued before Close are still
// delivered; after that Read returns ports.ErrTransportClosed.
func (t *Transport) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-t.inbound:
		return f, nil
	default:
	}

	select {
	case f := <-t.inbound:
		return f, nil
	case <-t.closed:
		select {
		case f := <-t.inbound:
			return f, nil
		default:
			return nil, ports.ErrTransportClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendMessage queues an outbound frame for the Sent channel.
func (t *Transport) SendMessage(ctx context.Context, connectionID string, frame []byte) error {
	if t.isClosed() {
		return ports.ErrTransportClosed
	}
	select {
	case t.outbound <- Sent{ConnectionID: connectionID, Frame: frame}:
		return nil
	case <-t.closed:
		return ports.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inject queues a raw inbound frame.
func (t *Transport) Inject(ctx context.Context, frame []byte) error {
	if t.isClosed() {
		return ports.ErrTransportClosed
	}
	select {
	case t.inbound <- frame:
		return nil
	case <-t.closed:
		return ports.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectInvoke frames an invoke message and queues it.
func (t *Transport) InjectInvoke(ctx context.Context, packageID uint32, connectionID string, headers map[string]string, inv wire.Invoke) error {
	payload, err := inv.Encode()
	if err != nil {
		return fmt.Errorf("encode invoke: %w", err)
	}
	frame, err := wire.Inbound{
		PackageID:    packageID,
		Headers:      headers,
		Payload:      payload,
		ConnectionID: connectionID,
	}.Encode()
	if err != nil {
		return fmt.Errorf("encode inbound: %w", err)
	}
	return t.Inject(ctx, frame)
}

// Sent delivers frames passed to SendMessage.
func (t *Transport) Sent() <-chan Sent {
	return t.outbound
}

// Args returns the arguments passed to Init.
func (t *Transport) Args() (topology.InitArgs, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.args, t.inited
}

// Running reports whether Run has been called.
func (t *Transport) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Close stops the transport. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	return nil
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

var _ ports.Transport = (*Transport)(nil)
