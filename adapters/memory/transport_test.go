package memory_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/hfn/adapters/memory"
	"github.com/artpar/hfn/core/schema/schematest"
	"github.com/artpar/hfn/core/topology"
	"github.com/artpar/hfn/core/wire"
	"github.com/artpar/hfn/ports"
)

func newTransport(t *testing.T) *memory.Transport {
	t.Helper()
	tr, err := memory.NewTransport(schematest.Topology(), 4)
	if err != nil {
		t.Fatalf("NewTransport() error = %v", err)
	}
	return tr
}

func TestTransport_InitReturnsTopology(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	args := topology.InitArgs{Dev: true, Addr: "[::1]:3000", SDK: "go-test", PackageNames: []string{"", "ui"}}
	raw, err := tr.Init(ctx, args)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	topo, err := topology.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if topo.UpstreamID != "fixture" || len(topo.Schemas) != len(schematest.Topology().Schemas) {
		t.Errorf("Init() topology = %+v", topo)
	}

	got, ok := tr.Args()
	if !ok || got.SDK != "go-test" || len(got.PackageNames) != 2 {
		t.Errorf("Args() = %+v, %v", got, ok)
	}
}

func TestTransport_RunRequiresInit(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	if err := tr.Run(ctx); err == nil {
		t.Error("Run() before Init should fail")
	}
	if _, err := tr.Init(ctx, topology.InitArgs{}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !tr.Running() {
		t.Error("Running() = false after Run")
	}
}

func TestTransport_ReadOrder(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	for _, f := range [][]byte{{1}, {2}, {3}} {
		if err := tr.Inject(ctx, f); err != nil {
			t.Fatalf("Inject() error = %v", err)
		}
	}
	for _, want := range []byte{1, 2, 3} {
		got, err := tr.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got[0] != want {
			t.Errorf("Read() = %v, want [%d]", got, want)
		}
	}
}

func TestTransport_CloseDrainsThenFails(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	if err := tr.Inject(ctx, []byte{9}); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	tr.Close()
	tr.Close()

	if got, err := tr.Read(ctx); err != nil || got[0] != 9 {
		t.Errorf("Read() = %v, %v, want queued frame", got, err)
	}
	if _, err := tr.Read(ctx); !errors.Is(err, ports.ErrTransportClosed) {
		t.Errorf("Read() error = %v, want ErrTransportClosed", err)
	}
	if err := tr.Inject(ctx, []byte{1}); !errors.Is(err, ports.ErrTransportClosed) {
		t.Errorf("Inject() error = %v, want ErrTransportClosed", err)
	}
	if err := tr.SendMessage(ctx, "c", []byte{1}); !errors.Is(err, ports.ErrTransportClosed) {
		t.Errorf("SendMessage() error = %v, want ErrTransportClosed", err)
	}
}

func TestTransport_ReadHonoursContext(t *testing.T) {
	tr := newTransport(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := tr.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() error = %v, want DeadlineExceeded", err)
	}
}

func TestTransport_SendMessage(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	if err := tr.SendMessage(ctx, "conn-1", []byte{0xaa}); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	select {
	case s := <-tr.Sent():
		if s.ConnectionID != "conn-1" || !bytes.Equal(s.Frame, []byte{0xaa}) {
			t.Errorf("Sent() = %+v", s)
		}
	default:
		t.Fatal("no frame on Sent()")
	}
}

func TestTransport_InjectInvoke(t *testing.T) {
	tr := newTransport(t)
	ctx := context.Background()

	inv := wire.Invoke{ModuleID: 1, HandlerID: 2, Data: []byte{0x01, 0xa1, 'x'}}
	if err := tr.InjectInvoke(ctx, 0, "conn-7", map[string]string{"h": "v"}, inv); err != nil {
		t.Fatalf("InjectInvoke() error = %v", err)
	}

	frame, err := tr.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	in, err := wire.DecodeInbound(frame)
	if err != nil {
		t.Fatalf("DecodeInbound() error = %v", err)
	}
	if in.ConnectionID != "conn-7" || in.Headers["h"] != "v" {
		t.Errorf("inbound = %+v", in)
	}
	msg, err := wire.DecodeMessage(in.Payload)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	got, ok := msg.(wire.Invoke)
	if !ok || got.HandlerID != 2 || !bytes.Equal(got.Data, inv.Data) {
		t.Errorf("DecodeMessage() = %+v", msg)
	}
}
