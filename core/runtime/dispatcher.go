package runtime

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/hfn/core/model"
	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/artpar/hfn/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultErrorBuffer is the error channel size used when none is configured.
const DefaultErrorBuffer = 64

// Backoff bounds between failed transport reads.
const (
	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

// HandlerError is a failed invocation.
type HandlerError struct {
	Key          topology.HandlerKey
	Handler      string
	InvocationID string
	Err          error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("handler %s (%s) invocation %s: %v", e.Handler, e.Key, e.InvocationID, e.Err)
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Transport ports.Transport
	Schemas   *schema.Registry
	Handlers  *Handlers

	// Workers bounds concurrently running handlers. Zero uses GOMAXPROCS.
	Workers int

	// ErrorBuffer sizes the Errors channel. Zero uses DefaultErrorBuffer.
	ErrorBuffer int

	// Optional collaborators.
	Metrics ports.Metrics
	IDs     ports.IDGenerator
	Clock   ports.Clock

	Logger zerolog.Logger
}

// Dispatcher reads frames from the transport and runs the matching handlers
// on a bounded pool.
type Dispatcher struct {
	transport ports.Transport
	schemas   *schema.Registry
	handlers  *Handlers
	metrics   ports.Metrics
	ids       ports.IDGenerator
	clock     ports.Clock
	logger    zerolog.Logger

	workers int64
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	errs    chan HandlerError

	mu    sync.Mutex
	abort context.CancelFunc
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = goruntime.GOMAXPROCS(0)
	}
	buffer := cfg.ErrorBuffer
	if buffer <= 0 {
		buffer = DefaultErrorBuffer
	}

	d := &Dispatcher{
		transport: cfg.Transport,
		schemas:   cfg.Schemas,
		handlers:  cfg.Handlers,
		metrics:   cfg.Metrics,
		ids:       cfg.IDs,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		workers:   int64(workers),
		sem:       semaphore.NewWeighted(int64(workers)),
		errs:      make(chan HandlerError, buffer),
	}
	if d.metrics == nil {
		d.metrics = nopMetrics{}
	}
	if d.ids == nil {
		d.ids = &counterIDs{}
	}
	if d.clock == nil {
		d.clock = systemClock{}
	}
	return d
}

// Workers returns the size of the handler pool.
func (d *Dispatcher) Workers() int {
	return int(d.workers)
}

// Errors delivers failed invocations. Delivery never blocks a handler: when
// the channel is full the error is logged and dropped.
func (d *Dispatcher) Errors() <-chan HandlerError {
	return d.errs
}

// Wait blocks until every submitted handler has finished. Call it after Run
// has returned; only Run submits handlers.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Abort cancels the contexts of handlers still running or queued.
func (d *Dispatcher) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.abort != nil {
		d.abort()
	}
}

// Run reads and dispatches frames until ctx is cancelled or the transport
// closes. Handlers are submitted in arrival order and may finish in any
// order. A closed transport ends Run with a nil error.
//
// ctx bounds intake only. Handler contexts carry its values but stay live
// after Run returns, until they finish or Abort is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Lock()
	d.abort = cancel
	d.mu.Unlock()

	d.logger.Info().Int64("workers", d.workers).Msg("dispatcher started")
	backoff := minReadBackoff
	for {
		frame, err := d.transport.Read(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrTransportClosed) {
				d.logger.Info().Msg("transport closed, dispatcher stopping")
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				d.logger.Info().Msg("dispatcher stopping")
				return ctxErr
			}
			d.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("read frame")
			if err := d.sleep(ctx, backoff); err != nil {
				d.logger.Info().Msg("dispatcher stopping")
				return err
			}
			backoff = min(backoff*2, maxReadBackoff)
			continue
		}
		backoff = minReadBackoff
		d.dispatch(hctx, frame)
	}
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drop(reason string, err error, fields map[string]any) {
	d.metrics.FrameDropped(reason)
	ev := d.logger.Debug().Str("reason", reason).Fields(fields)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("frame dropped")
}

func (d *Dispatcher) dispatch(ctx context.Context, frame []byte) {
	in, err := wire.DecodeInbound(frame)
	if err != nil {
		d.drop(ports.DropEnvelope, err, nil)
		return
	}

	msg, err := wire.DecodeMessage(in.Payload)
	if err != nil {
		reason := ports.DropEnvelope
		if errors.Is(err, wire.ErrUnknownKind) {
			reason = ports.DropKind
		}
		d.drop(reason, err, map[string]any{"connection": in.ConnectionID})
		return
	}
	inv, ok := msg.(wire.Invoke)
	if !ok {
		d.drop(ports.DropKind, nil, map[string]any{"kind": msg.Kind().String()})
		return
	}

	key := topology.HandlerKey{Package: in.PackageID, Module: inv.ModuleID, Handler: inv.HandlerID}
	s, ok := d.schemas.ByHandler(key)
	if !ok {
		d.drop(ports.DropSchema, nil, map[string]any{"handler": key.String()})
		return
	}
	b, ok := d.handlers.Lookup(key)
	if !ok {
		d.drop(ports.DropHandler, nil, map[string]any{"handler": key.String()})
		return
	}

	data := model.New(s, d.schemas)
	if err := data.Decode(inv.Data); err != nil {
		d.metrics.DecodeFailed()
		d.logger.Debug().Err(err).Str("handler", b.Name).Msg("decode handler input")
	}

	invocationID := d.ids.New()
	c := &Context{
		Context:      ctx,
		PackageID:    in.PackageID,
		ModuleID:     inv.ModuleID,
		HandlerID:    inv.HandlerID,
		ConnectionID: in.ConnectionID,
		Headers:      in.Headers,
		Cookies:      inv.Cookies,
		Data:         data,
		InvocationID: invocationID,
		handler:      b.Name,
		pkg:          b.pkg,
		d:            d,
		logger: d.logger.With().
			Str("handler", b.Name).
			Str("invocation_id", invocationID).
			Str("connection", in.ConnectionID).
			Logger(),
	}

	d.metrics.FrameDispatched()
	d.submit(b, c)
}

func (d *Dispatcher) submit(b Binding, c *Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sem.Acquire(c, 1); err != nil {
			c.logger.Debug().Err(err).Msg("handler cancelled before start")
			return
		}
		defer d.sem.Release(1)
		d.invoke(b, c)
	}()
}

func (d *Dispatcher) invoke(b Binding, c *Context) {
	start := d.clock.Now()
	d.metrics.HandlerStarted()
	failure := ""

	defer func() {
		if r := recover(); r != nil {
			failure = ports.FailPanic
			d.report(b, c, &PanicError{Value: r, Stack: debug.Stack()})
		}
		d.metrics.HandlerFinished(b.Name, d.clock.Since(start), failure)
	}()

	if b.pkg != nil {
		if err := b.pkg.beforeHfn(c); err != nil {
			failure = ports.FailHook
			d.report(b, c, fmt.Errorf("before hook: %w", err))
			return
		}
	}
	if err := b.Fn(c); err != nil {
		failure = ports.FailError
		d.report(b, c, err)
		return
	}
	if b.pkg != nil {
		if err := b.pkg.afterHfn(c); err != nil {
			failure = ports.FailHook
			d.report(b, c, fmt.Errorf("after hook: %w", err))
		}
	}
}

func (d *Dispatcher) report(b Binding, c *Context, err error) {
	herr := HandlerError{Key: b.Key, Handler: b.Name, InvocationID: c.InvocationID, Err: err}
	select {
	case d.errs <- herr:
		c.logger.Debug().Err(err).Msg("handler failed")
	default:
		d.metrics.ErrorDropped()
		c.logger.Error().Err(err).Msg("handler failed, error channel full")
	}
}

type nopMetrics struct{}

func (nopMetrics) FrameDispatched()                             {}
func (nopMetrics) FrameDropped(string)                          {}
func (nopMetrics) DecodeFailed()                                {}
func (nopMetrics) HandlerStarted()                              {}
func (nopMetrics) HandlerFinished(string, time.Duration, string) {}
func (nopMetrics) StatePushed(string)                           {}
func (nopMetrics) ErrorDropped()                                {}

type counterIDs struct {
	n atomic.Uint64
}

func (c *counterIDs) New() string {
	return strconv.FormatUint(c.n.Add(1), 10)
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }
