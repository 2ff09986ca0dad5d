// Package http serves the runtime's operational endpoints: health, metrics,
// topology introspection and, in dev mode, invoke injection.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/hfn/core/model"
	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// maxInvokeBody bounds a dev invoke request.
const maxInvokeBody = 1 << 20

// RuntimeView is the read side of a started runtime. *runtime.Runtime
// satisfies it; before Start the registries are nil.
type RuntimeView interface {
	Topology() topology.Topology
	Schemas() *schema.Registry
	Handlers() *runtime.Handlers
}

// Injector queues invoke frames. The loopback transport satisfies it.
type Injector interface {
	InjectInvoke(ctx context.Context, packageID uint32, connectionID string, headers map[string]string, inv wire.Invoke) error
}

// RouterConfig configures the router.
type RouterConfig struct {
	Runtime RuntimeView

	MetricsHandler http.Handler // nil disables the metrics route
	MetricsPath    string       // default /metrics

	// Injector enables POST /dev/invoke. Leave nil outside dev mode.
	Injector Injector

	Version string
	Logger  zerolog.Logger
}

// NewRouter creates the operational router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handler{cfg: cfg}

	r.Get("/health", h.liveness)
	r.Get("/health/live", h.liveness)
	r.Get("/health/ready", h.readiness)
	r.Get("/version", h.version)
	r.Get("/topology", h.topology)

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	if cfg.Injector != nil {
		r.Post("/dev/invoke", h.devInvoke)
	}

	return r
}

type handler struct {
	cfg RouterConfig
}

func (h *handler) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports ok once the runtime has indexed its topology.
func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Runtime == nil || h.cfg.Runtime.Schemas() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.cfg.Version})
}

// TopologyResponse is the body of GET /topology.
type TopologyResponse struct {
	UpstreamID string           `json:"upstream_id"`
	Packages   []string         `json:"packages"`
	SchemaKeys []string         `json:"schema_keys"`
	Handlers   []HandlerSummary `json:"handlers"`
}

// HandlerSummary describes one bound handler.
type HandlerSummary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

func (h *handler) topology(w http.ResponseWriter, r *http.Request) {
	rt := h.cfg.Runtime
	if rt == nil || rt.Schemas() == nil {
		writeError(w, http.StatusServiceUnavailable, "runtime not started")
		return
	}

	topo := rt.Topology()
	resp := TopologyResponse{
		UpstreamID: topo.UpstreamID,
		Packages:   topo.PackageNames(),
		SchemaKeys: rt.Schemas().Keys(),
		Handlers:   []HandlerSummary{},
	}
	for _, b := range rt.Handlers().Bindings() {
		resp.Handlers = append(resp.Handlers, HandlerSummary{Key: b.Key.String(), Name: b.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

// InvokeRequest is the body of POST /dev/invoke. The body is parsed as YAML,
// so JSON works too and integers stay integers.
type InvokeRequest struct {
	Handler    string            `yaml:"handler"`
	Connection string            `yaml:"connection"`
	Headers    map[string]string `yaml:"headers"`
	Cookies    map[string]string `yaml:"cookies"`
	Data       map[string]any    `yaml:"data"`
}

// InvokeResponse is the body of an accepted dev invoke.
type InvokeResponse struct {
	Handler    string   `json:"handler"`
	Key        string   `json:"key"`
	Connection string   `json:"connection"`
	Fields     []string `json:"fields"`
}

func (h *handler) devInvoke(w http.ResponseWriter, r *http.Request) {
	rt := h.cfg.Runtime
	if rt == nil || rt.Schemas() == nil {
		writeError(w, http.StatusServiceUnavailable, "runtime not started")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	var req InvokeRequest
	if err := yaml.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Handler == "" {
		writeError(w, http.StatusBadRequest, "handler is required")
		return
	}
	if req.Connection == "" {
		req.Connection = "dev"
	}

	binding, ok := findBinding(rt.Handlers(), req.Handler)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":        "unknown handler",
			"did_you_mean": rt.Schemas().Suggest(req.Handler, 3),
		})
		return
	}
	s, ok := rt.Schemas().ByHandler(binding.Key)
	if !ok {
		writeError(w, http.StatusNotFound, "handler has no input schema")
		return
	}

	input := model.New(s, rt.Schemas()).FromMap(req.Data)
	data, err := input.Encode()
	if err != nil {
		writeError(w, http.StatusBadRequest, "encode input: "+err.Error())
		return
	}

	inv := wire.Invoke{
		ModuleID:  binding.Key.Module,
		HandlerID: binding.Key.Handler,
		Cookies:   req.Cookies,
		Data:      data,
	}
	if err := h.cfg.Injector.InjectInvoke(r.Context(), binding.Key.Package, req.Connection, req.Headers, inv); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, InvokeResponse{
		Handler:    binding.Name,
		Key:        binding.Key.String(),
		Connection: req.Connection,
		Fields:     input.Keys(),
	})
}

func findBinding(handlers *runtime.Handlers, name string) (runtime.Binding, bool) {
	for _, b := range handlers.Bindings() {
		if b.Name == name {
			return b, true
		}
	}
	return runtime.Binding{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NewLoggingMiddleware creates a request logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
