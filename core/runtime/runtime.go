// Package runtime turns transport frames into handler invocations.
//
// Startup runs once: the transport engine is initialised with the registered
// package names, the topology it returns is indexed into a schema registry
// and a handler registry, and a Dispatcher is created. After that both
// registries are read-only and Run only reads, dispatches and pushes state.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/ports"
	"github.com/rs/zerolog"
)

var (
	// ErrNotStarted is returned by Run before Start has succeeded.
	ErrNotStarted = errors.New("runtime: not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("runtime: already started")
)

// Config configures a Runtime.
type Config struct {
	Transport ports.Transport
	Packages  []*Package

	// Args is forwarded to the transport on Init. PackageNames is filled
	// from Packages.
	Args topology.InitArgs

	Workers     int
	ErrorBuffer int

	Metrics ports.Metrics
	IDs     ports.IDGenerator
	Clock   ports.Clock

	Logger zerolog.Logger
}

// Runtime owns the startup sequence and the dispatcher.
type Runtime struct {
	cfg    Config
	logger zerolog.Logger

	mu         sync.RWMutex
	started    bool
	topo       topology.Topology
	schemas    *schema.Registry
	handlers   *Handlers
	dispatcher *Dispatcher
}

// New validates the configuration. It does not contact the transport.
func New(cfg Config) (*Runtime, error) {
	if cfg.Transport == nil {
		return nil, errors.New("runtime: transport is required")
	}
	if _, err := mainPackage(cfg.Packages); err != nil {
		return nil, err
	}
	return &Runtime{cfg: cfg, logger: cfg.Logger}, nil
}

// Start initialises the transport, indexes the topology it returns and
// prepares the dispatcher.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}

	args := r.cfg.Args
	args.PackageNames = PackageNames(r.cfg.Packages)

	raw, err := r.cfg.Transport.Init(ctx, args)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}
	topo, err := topology.Decode(raw)
	if err != nil {
		return err
	}

	schemas := schema.Build(topo, r.logger)
	handlers := BuildHandlers(topo, r.cfg.Packages, r.logger)

	if err := r.cfg.Transport.Run(ctx); err != nil {
		return fmt.Errorf("run transport: %w", err)
	}

	r.topo = topo
	r.schemas = schemas
	r.handlers = handlers
	r.dispatcher = NewDispatcher(DispatcherConfig{
		Transport:   r.cfg.Transport,
		Schemas:     schemas,
		Handlers:    handlers,
		Workers:     r.cfg.Workers,
		ErrorBuffer: r.cfg.ErrorBuffer,
		Metrics:     r.cfg.Metrics,
		IDs:         r.cfg.IDs,
		Clock:       r.cfg.Clock,
		Logger:      r.logger,
	})
	r.started = true

	r.logger.Info().
		Str("upstream_id", topo.UpstreamID).
		Strs("packages", args.PackageNames).
		Int("schemas", schemas.Len()).
		Int("handlers", handlers.Len()).
		Msg("runtime started")
	return nil
}

// Run dispatches frames until ctx is cancelled or the transport closes.
func (r *Runtime) Run(ctx context.Context) error {
	d := r.Dispatcher()
	if d == nil {
		return ErrNotStarted
	}
	return d.Run(ctx)
}

// Wait blocks until in-flight handlers finish. Call it after Run returns.
func (r *Runtime) Wait() {
	if d := r.Dispatcher(); d != nil {
		d.Wait()
	}
}

// Abort cancels the contexts of handlers that are still running.
func (r *Runtime) Abort() {
	if d := r.Dispatcher(); d != nil {
		d.Abort()
	}
}

// Topology returns the topology returned by the transport.
func (r *Runtime) Topology() topology.Topology {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topo
}

// Schemas returns the schema registry, or nil before Start.
func (r *Runtime) Schemas() *schema.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas
}

// Handlers returns the handler registry, or nil before Start.
func (r *Runtime) Handlers() *Handlers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers
}

// Dispatcher returns the dispatcher, or nil before Start.
func (r *Runtime) Dispatcher() *Dispatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dispatcher
}
