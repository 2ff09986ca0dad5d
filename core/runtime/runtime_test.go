package runtime_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/artpar/hfn/adapters/memory"
	"github.com/artpar/hfn/core/runtime"
	"github.com/artpar/hfn/core/schema/schematest"
	"github.com/artpar/hfn/core/topology"
	"github.com/rs/zerolog"
)

func newMemory(t *testing.T) *memory.Transport {
	t.Helper()
	tr, err := memory.NewTransport(schematest.Topology(), 4)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	return tr
}

func TestNew_RequiresMainPackage(t *testing.T) {
	tr := newMemory(t)

	_, err := runtime.New(runtime.Config{
		Transport: tr,
		Packages:  []*runtime.Package{mustPackage(t, "ui")},
		Logger:    zerolog.Nop(),
	})
	if !errors.Is(err, runtime.ErrNoMainPackage) {
		t.Errorf("New() error = %v, want ErrNoMainPackage", err)
	}

	_, err = runtime.New(runtime.Config{
		Transport: tr,
		Packages:  []*runtime.Package{mustPackage(t, ""), mustPackage(t, "")},
		Logger:    zerolog.Nop(),
	})
	if !errors.Is(err, runtime.ErrDuplicatePackage) {
		t.Errorf("New() error = %v, want ErrDuplicatePackage", err)
	}
}

func TestNew_RequiresTransport(t *testing.T) {
	_, err := runtime.New(runtime.Config{
		Packages: []*runtime.Package{mustPackage(t, "")},
		Logger:   zerolog.Nop(),
	})
	if err == nil {
		t.Error("New() without transport should fail")
	}
}

func TestRuntime_Start(t *testing.T) {
	tr := newMemory(t)
	main := mustPackage(t, "", module("homeView", map[string]runtime.HandlerFunc{"mount": noop}))
	ui := mustPackage(t, "ui", module("card", map[string]runtime.HandlerFunc{"flip": noop}))

	rt, err := runtime.New(runtime.Config{
		Transport: tr,
		Packages:  []*runtime.Package{main, ui},
		Args: topology.InitArgs{
			Dev:          true,
			Addr:         "[::1]:3000",
			SDK:          "go-test",
			PackageNames: []string{"ignored"},
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := rt.Run(context.Background()); !errors.Is(err, runtime.ErrNotStarted) {
		t.Errorf("Run() before Start error = %v, want ErrNotStarted", err)
	}
	if rt.Schemas() != nil || rt.Dispatcher() != nil {
		t.Error("registries should be nil before Start")
	}

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := rt.Start(ctx); !errors.Is(err, runtime.ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	args, ok := tr.Args()
	if !ok {
		t.Fatal("transport was not initialised")
	}
	if want := []string{"", "ui"}; !reflect.DeepEqual(args.PackageNames, want) {
		t.Errorf("PackageNames = %v, want %v", args.PackageNames, want)
	}
	if args.Addr != "[::1]:3000" || !args.Dev {
		t.Errorf("Args = %+v", args)
	}
	if !tr.Running() {
		t.Error("transport should be running after Start")
	}

	if rt.Topology().UpstreamID != "fixture" {
		t.Errorf("Topology().UpstreamID = %q", rt.Topology().UpstreamID)
	}
	if rt.Schemas().Len() != len(schematest.Topology().Schemas) {
		t.Errorf("Schemas().Len() = %d", rt.Schemas().Len())
	}
	if rt.Handlers().Len() != 2 {
		t.Errorf("Handlers().Len() = %d, want 2", rt.Handlers().Len())
	}
	if rt.Dispatcher().Workers() <= 0 {
		t.Errorf("Workers() = %d", rt.Dispatcher().Workers())
	}
}

func TestRuntime_StartFailsOnClosedTransport(t *testing.T) {
	tr := newMemory(t)
	tr.Close()

	rt, err := runtime.New(runtime.Config{
		Transport: tr,
		Packages:  []*runtime.Package{mustPackage(t, "")},
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rt.Start(context.Background()); err == nil {
		t.Error("Start() on closed transport should fail")
	}
}

func TestRuntime_RunStops(t *testing.T) {
	tests := []struct {
		name    string
		stop    func(tr *memory.Transport, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name:    "transport closed",
			stop:    func(tr *memory.Transport, _ context.CancelFunc) { tr.Close() },
			wantErr: nil,
		},
		{
			name:    "context cancelled",
			stop:    func(_ *memory.Transport, cancel context.CancelFunc) { cancel() },
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newMemory(t)
			rt, err := runtime.New(runtime.Config{
				Transport: tr,
				Packages:  []*runtime.Package{mustPackage(t, "")},
				Workers:   1,
				Logger:    zerolog.Nop(),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := rt.Start(ctx); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			done := make(chan error, 1)
			go func() { done <- rt.Run(ctx) }()
			tt.stop(tr, cancel)

			select {
			case err := <-done:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(waitTimeout):
				t.Fatal("Run() did not return")
			}
			rt.Wait()
		})
	}
}
