// Package bootstrap wires configuration, logging, metrics, the transport and
// the runtime, and runs them until shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/artpar/hfn/adapters/clock"
	apihttp "github.com/artpar/hfn/adapters/http"
	"github.com/artpar/hfn/adapters/idgen"
	"github.com/artpar/hfn/adapters/memory"
	"github.com/artpar/hfn/adapters/metrics"
	"github.com/artpar/hfn/config"
	"github.com/artpar/hfn/core/model"
	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/artpar/hfn/ports"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

// ErrNoTransport is returned when no transport is given outside dev mode.
var ErrNoTransport = errors.New("bootstrap: no transport engine; set runtime.dev to use the loopback transport")

// Options configures New.
type Options struct {
	Config   *config.Config
	Packages []*runtime.Package

	// Transport overrides the transport. Nil uses the loopback transport,
	// which requires runtime.dev.
	Transport ports.Transport

	Version string

	// LogOutput receives log lines; nil means stdout.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger  zerolog.Logger
	Config  *config.Config
	Runtime *runtime.Runtime

	Transport ports.Transport
	Loopback  *memory.Transport // set when the loopback transport is in use

	Metrics    *metrics.Collector // nil when metrics are disabled
	HTTPServer *http.Server       // nil when there is nothing to serve

	mu         sync.Mutex
	stopIntake context.CancelFunc
	stopLogs   context.CancelFunc
	runDone    chan struct{}
	stopOnce   sync.Once
}

// New creates the application without starting anything.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}

	logger := SetupLogger(cfg.Logging, opts.LogOutput)
	logger.Info().Str("version", opts.Version).Bool("dev", cfg.Runtime.Dev).Msg("initializing hfn")

	a := &App{Logger: logger, Config: cfg}

	var runtimeMetrics ports.Metrics
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		runtimeMetrics = a.Metrics
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initTransport(opts.Transport); err != nil {
		return nil, fmt.Errorf("init transport: %w", err)
	}

	rt, err := runtime.New(runtime.Config{
		Transport: a.Transport,
		Packages:  opts.Packages,
		Args: topology.InitArgs{
			Dev:           cfg.Runtime.Dev,
			Addr:          cfg.Runtime.Addr,
			SDK:           cfg.Runtime.SDK,
			ConfigPath:    cfg.Runtime.ConfigPath,
			WorkerThreads: cfg.Runtime.EngineThreads,
		},
		Workers:     cfg.Runtime.Workers,
		ErrorBuffer: cfg.Runtime.ErrorBuffer,
		Metrics:     runtimeMetrics,
		IDs:         idgen.UUID{},
		Clock:       clock.Real{},
		Logger:      logger.With().Str("component", "runtime").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("init runtime: %w", err)
	}
	a.Runtime = rt

	a.initHTTPServer(opts.Version)
	return a, nil
}

func (a *App) initTransport(override ports.Transport) error {
	if override != nil {
		a.Transport = override
		return nil
	}
	if !a.Config.Runtime.Dev {
		return ErrNoTransport
	}

	topo, err := topology.LoadFile(a.Config.Topology)
	if err != nil {
		return err
	}
	tr, err := memory.NewTransport(topo, 0)
	if err != nil {
		return err
	}
	a.Transport = tr
	a.Loopback = tr
	a.Logger.Info().Str("topology", a.Config.Topology).Msg("using loopback transport")
	return nil
}

func (a *App) initHTTPServer(version string) {
	if a.Metrics == nil && a.Loopback == nil {
		return
	}

	cfg := apihttp.RouterConfig{
		Runtime:     a.Runtime,
		MetricsPath: a.Config.Metrics.Path,
		Version:     version,
		Logger:      a.Logger.With().Str("component", "http").Logger(),
	}
	if a.Metrics != nil {
		cfg.MetricsHandler = a.Metrics.Handler()
	}
	if a.Loopback != nil {
		cfg.Injector = a.Loopback
	}

	a.HTTPServer = &http.Server{
		Addr:              a.Config.Metrics.Addr,
		Handler:           apihttp.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// WatchConfig applies hot reloads from h: the log level is re-applied and
// every reload outcome is counted.
func (a *App) WatchConfig(h *config.Holder) {
	h.OnChange(func(cfg *config.Config) {
		level := ApplyLogLevel(cfg.Logging.Level)
		a.Logger.Info().Str("level", level.String()).Msg("log level applied")
	})
	h.OnReload(func(err error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloaded(err)
		}
	})
}

// Run starts the runtime and the HTTP server and blocks until ctx is
// cancelled, the transport closes or the server fails.
func (a *App) Run(ctx context.Context) error {
	intake, stopIntake := context.WithCancel(ctx)
	logs, stopLogs := context.WithCancel(context.WithoutCancel(ctx))
	runDone := make(chan struct{})

	a.mu.Lock()
	a.stopIntake, a.stopLogs, a.runDone = stopIntake, stopLogs, runDone
	a.mu.Unlock()

	if err := a.Runtime.Start(ctx); err != nil {
		stopIntake()
		stopLogs()
		close(runDone)
		return fmt.Errorf("start runtime: %w", err)
	}

	serverErr := make(chan error, 1)
	if a.HTTPServer != nil {
		go func() {
			a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
			if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	go a.logHandlerErrors(logs)
	if a.Loopback != nil {
		go a.logOutbound(logs)
	}

	runErr := make(chan error, 1)
	go func() {
		defer close(runDone)
		runErr <- a.Runtime.Run(intake)
	}()

	var err error
	select {
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	case err = <-serverErr:
		err = fmt.Errorf("server error: %w", err)
	case err = <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("dispatcher: %w", err)
		} else {
			err = nil
		}
	}

	if shutdownErr := a.Shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown stops intake, waits for the dispatcher to return and then for
// in-flight handlers, up to the configured timeout, and stops the HTTP
// server. Handlers still running at the deadline have their contexts
// cancelled. It is safe to call more than once.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		timeout := a.Config.Runtime.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		a.mu.Lock()
		stopIntake, stopLogs, runDone := a.stopIntake, a.stopLogs, a.runDone
		a.mu.Unlock()

		if a.Loopback != nil {
			a.Loopback.Close()
		}
		if stopIntake != nil {
			stopIntake()
		}

		// Handlers are only submitted by Run, so Wait is safe once it returned.
		stopped := true
		if runDone != nil {
			select {
			case <-runDone:
			case <-ctx.Done():
				stopped = false
				a.Logger.Warn().Dur("timeout", timeout).Msg("dispatcher did not stop")
			}
		}
		if stopped {
			done := make(chan struct{})
			go func() {
				a.Runtime.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				stopped = false
				a.Logger.Warn().Dur("timeout", timeout).Msg("handlers still running at shutdown")
			}
		}
		if !stopped {
			a.Runtime.Abort()
		}

		if stopLogs != nil {
			stopLogs()
		}

		if a.HTTPServer != nil {
			if serr := a.HTTPServer.Shutdown(ctx); serr != nil {
				a.Logger.Error().Err(serr).Msg("http server shutdown error")
				err = serr
			}
		}

		a.Logger.Info().Msg("shutdown complete")
	})
	return err
}

func (a *App) logHandlerErrors(ctx context.Context) {
	d := a.Runtime.Dispatcher()
	if d == nil {
		return
	}
	for {
		select {
		case herr := <-d.Errors():
			ev := a.Logger.Error().
				Err(herr.Err).
				Str("handler", herr.Handler).
				Str("invocation_id", herr.InvocationID)
			var perr *runtime.PanicError
			if errors.As(herr.Err, &perr) {
				ev = ev.Bytes("stack", perr.Stack)
			}
			ev.Msg("handler failed")
		case <-ctx.Done():
			return
		}
	}
}

// logOutbound logs what the runtime sends through the loopback transport,
// decoding state pushes against the module State schema.
func (a *App) logOutbound(ctx context.Context) {
	for {
		select {
		case sent := <-a.Loopback.Sent():
			a.logSent(sent)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) logSent(sent memory.Sent) {
	out, err := wire.DecodeOutbound(sent.Frame)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("undecodable outbound frame")
		return
	}
	msg, err := wire.DecodeMessage(out.Payload)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("undecodable outbound message")
		return
	}

	ev := a.Logger.Info().
		Str("connection", sent.ConnectionID).
		Str("kind", msg.Kind().String())

	switch m := msg.(type) {
	case wire.StatePush:
		if state, ok := a.decodeState(m); ok {
			ev = ev.Interface("state", state)
		}
	case wire.SetCookie:
		ev = ev.Str("cookie", m.Name).Int("max_age", m.MaxAge)
	}
	ev.Msg("outbound")
}

func (a *App) decodeState(push wire.StatePush) (map[string]any, bool) {
	topo := a.Runtime.Topology()
	pkg, ok := topo.Package(push.PackageID)
	if !ok {
		return nil, false
	}
	mod, ok := topo.Module(push.PackageID, push.ModuleID)
	if !ok {
		return nil, false
	}
	reg := a.Runtime.Schemas()
	s, ok := reg.ByName(topology.QualifiedName(pkg, mod, "State"))
	if !ok {
		return nil, false
	}
	m := model.New(s, reg)
	if err := m.Decode(push.State); err != nil {
		return nil, false
	}
	out, err := m.ToMap()
	if err != nil {
		return nil, false
	}
	return out, true
}
