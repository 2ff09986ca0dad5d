package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apihttp "github.com/artpar/hfn/adapters/http"
	"github.com/artpar/hfn/adapters/memory"
	"github.com/artpar/hfn/adapters/metrics"
	"github.com/artpar/hfn/core/model"
	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/schema"
	"github.com/artpar/hfn/core/schema/schematest"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/rs/zerolog"
)

type homeView struct{}

func (homeView) Name() string { return "homeView" }

func (homeView) Handlers() map[string]runtime.HandlerFunc {
	return map[string]runtime.HandlerFunc{
		"mount": func(*runtime.Context) error { return nil },
	}
}

func startedRuntime(t *testing.T) (*runtime.Runtime, *memory.Transport) {
	t.Helper()

	tr, err := memory.NewTransport(schematest.Topology(), 4)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	pkg, err := runtime.NewPackage("", func() runtime.Module { return homeView{} })
	if err != nil {
		t.Fatalf("NewPackage() error = %v", err)
	}
	rt, err := runtime.New(runtime.Config{
		Transport: tr,
		Packages:  []*runtime.Package{pkg},
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return rt, tr
}

// notStarted is a RuntimeView before Start.
type notStarted struct{}

func (notStarted) Topology() topology.Topology { return topology.Topology{} }
func (notStarted) Schemas() *schema.Registry   { return nil }
func (notStarted) Handlers() *runtime.Handlers { return nil }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	rt, _ := startedRuntime(t)
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: rt, Version: "1.2.3", Logger: zerolog.Nop()})

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		if rec := do(t, r, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}

	rec := do(t, r, http.MethodGet, "/version", "")
	var v map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if v["version"] != "1.2.3" {
		t.Errorf("version = %v", v)
	}
}

func TestHealth_NotReadyBeforeStart(t *testing.T) {
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: notStarted{}, Logger: zerolog.Nop()})

	if rec := do(t, r, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/topology", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("topology status = %d, want 503", rec.Code)
	}
}

// =============================================================================
// Introspection
// =============================================================================

func TestTopology(t *testing.T) {
	rt, _ := startedRuntime(t)
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: rt, Logger: zerolog.Nop()})

	rec := do(t, r, http.MethodGet, "/topology", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp apihttp.TopologyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UpstreamID != "fixture" || len(resp.Packages) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.SchemaKeys) != len(rt.Schemas().Keys()) {
		t.Errorf("SchemaKeys len = %d", len(resp.SchemaKeys))
	}
	if len(resp.Handlers) != 1 || resp.Handlers[0].Name != "homeView.mount" {
		t.Errorf("Handlers = %+v", resp.Handlers)
	}
}

func TestMetricsRoute(t *testing.T) {
	rt, _ := startedRuntime(t)
	c := metrics.New()
	c.FrameDispatched()

	r := apihttp.NewRouter(apihttp.RouterConfig{
		Runtime:        rt,
		MetricsHandler: c.Handler(),
		MetricsPath:    "/internal/metrics",
		Logger:         zerolog.Nop(),
	})

	rec := do(t, r, http.MethodGet, "/internal/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hfn_frames_total") {
		t.Error("metrics body should contain hfn_frames_total")
	}
}

// =============================================================================
// Dev invoke
// =============================================================================

func TestDevInvoke(t *testing.T) {
	rt, tr := startedRuntime(t)
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: rt, Injector: tr, Logger: zerolog.Nop()})

	body := `{"handler": "homeView.mount", "connection": "c-9", "cookies": {"sid": "abc"}, "data": {"str": "hi", "n": 5, "bogus": 1}}`
	rec := do(t, r, http.MethodPost, "/dev/invoke", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp apihttp.InvokeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Handler != "homeView.mount" || resp.Connection != "c-9" || len(resp.Fields) != 2 {
		t.Errorf("response = %+v", resp)
	}

	frame, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	in, err := wire.DecodeInbound(frame)
	if err != nil {
		t.Fatalf("DecodeInbound() error = %v", err)
	}
	msg, err := wire.DecodeMessage(in.Payload)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	inv, ok := msg.(wire.Invoke)
	if !ok || in.ConnectionID != "c-9" || inv.Cookies["sid"] != "abc" {
		t.Fatalf("frame = %+v / %+v", in, msg)
	}

	s, _ := rt.Schemas().ByHandler(topology.HandlerKey{
		Package: schematest.MainPackage,
		Module:  inv.ModuleID,
		Handler: inv.HandlerID,
	})
	data := model.New(s, rt.Schemas())
	if err := data.Decode(inv.Data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if data.Get("str") != "hi" || data.Get("n") != int32(5) {
		t.Errorf("data = %v / %v", data.Get("str"), data.Get("n"))
	}
}

func TestDevInvoke_Errors(t *testing.T) {
	rt, tr := startedRuntime(t)
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: rt, Injector: tr, Logger: zerolog.Nop()})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid body", `{"handler": [`, http.StatusBadRequest},
		{"missing handler", `{"data": {}}`, http.StatusBadRequest},
		{"unknown handler", `{"handler": "homeView.mout"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/dev/invoke", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := do(t, r, http.MethodPost, "/dev/invoke", `{"handler": "homeView.mout"}`)
	var resp struct {
		DidYouMean []string `json:"did_you_mean"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.DidYouMean) == 0 || resp.DidYouMean[0] != "homeView.mount" {
		t.Errorf("did_you_mean = %v", resp.DidYouMean)
	}
}

func TestDevInvoke_DisabledWithoutInjector(t *testing.T) {
	rt, _ := startedRuntime(t)
	r := apihttp.NewRouter(apihttp.RouterConfig{Runtime: rt, Logger: zerolog.Nop()})

	rec := do(t, r, http.MethodPost, "/dev/invoke", `{"handler": "homeView.mount"}`)
	if rec.Code == http.StatusAccepted {
		t.Error("dev invoke should not be routed without an injector")
	}
}
