package demo

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sadsciencee/modalkit/internal/config"
	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func newDemo(t *testing.T, mutate func(*config.DemoConfig)) (*Demo, *pubsub.Hub) {
	t.Helper()
	cfg := config.Default().Demo
	if mutate != nil {
		mutate(&cfg)
	}
	hub := pubsub.NewHub()
	d, err := New(Options{Config: cfg, Logger: zap.NewNop(), Hub: hub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		d.Shutdown()
		hub.Shutdown()
	})
	return d, hub
}

func TestDemoSaveFlow(t *testing.T) {
	d, hub := newDemo(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	toasts := hub.Toast.Subscribe(ctx)

	if d.ID() != "modal.products.1" {
		t.Fatalf("expected modal.products.1, got %s", d.ID())
	}
	if d.Remote() {
		t.Error("expected an in-process modal")
	}

	d.Open()
	eventually(t, "channel", d.Connected)
	if !d.Visible() {
		t.Error("expected modal to be visible")
	}

	// The guest only saves once the shared state has arrived; retry the
	// click until the host sees the selection.
	eventually(t, "save", func() bool {
		if d.Saved() > 0 {
			return true
		}
		_ = d.TriggerAction(envelope.ActionPrimary)
		time.Sleep(20 * time.Millisecond)
		return d.Saved() > 0
	})

	for {
		select {
		case e := <-toasts:
			if strings.HasPrefix(e.Payload.Message, "Saved 3 products") {
				eventually(t, "reload after save", func() bool { return d.Reloads() == 1 })
				eventually(t, "close after reload", func() bool { return !d.Visible() })
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for save toast")
		}
	}
}

func TestDemoSecondaryCloses(t *testing.T) {
	d, _ := newDemo(t, nil)

	d.Open()
	eventually(t, "channel", d.Connected)
	if err := d.TriggerAction(envelope.ActionSecondary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "close", func() bool { return !d.Visible() })
}

func TestDemoTogglePrimaryDisabled(t *testing.T) {
	d, _ := newDemo(t, nil)

	state := d.TogglePrimaryDisabled()
	if state.PrimaryButton == nil || !state.PrimaryButton.Disabled {
		t.Fatalf("expected primary to be disabled, got %+v", state.PrimaryButton)
	}
	if state.PrimaryButton.Label != "Save" {
		t.Errorf("expected label to be kept, got %q", state.PrimaryButton.Label)
	}
	state = d.TogglePrimaryDisabled()
	if state.PrimaryButton.Disabled {
		t.Error("expected primary to be enabled again")
	}
}

func TestDemoRemount(t *testing.T) {
	d, hub := newDemo(t, func(c *config.DemoConfig) { c.Variant = "max" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	modalEvents := hub.Modal.Subscribe(ctx)

	// Drain from the start so the hub buffer never fills.
	var loaded atomic.Int32
	go func() {
		for e := range modalEvents {
			if e.Payload.Type == events.ModalLoaded && e.Payload.Side == events.SideGuest {
				loaded.Add(1)
			}
		}
	}()

	d.Open()
	// A remount before the guest has loaded would supersede the first
	// handshake, so wait for the load itself rather than the host post.
	eventually(t, "first load", func() bool { return loaded.Load() == 1 })

	if err := d.Remount(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Connected() {
		t.Error("expected a fresh host to have no channel before show")
	}
	if d.Mounts() != 2 {
		t.Errorf("expected 2 mounts, got %d", d.Mounts())
	}
	if d.TitleBar().Variant != envelope.VariantMax {
		t.Errorf("expected max variant, got %s", d.TitleBar().Variant)
	}

	d.Open()
	eventually(t, "second load", func() bool { return loaded.Load() == 2 })

	frames := d.Frames()
	if len(frames) != 1 || !frames[0].Loaded {
		t.Errorf("expected a single reused frame, got %+v", frames)
	}
}

func TestDemoShutdownLogsBrokers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	hub := pubsub.NewHub()
	defer hub.Shutdown()

	d, err := New(Options{Config: config.Default().Demo, Logger: zap.New(core), Hub: hub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.Open()
	eventually(t, "channel", d.Connected)
	d.Shutdown()

	entries := logs.FilterMessage("broker state").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 broker state entry, got %d", len(entries))
	}
	detail := entries[0].ContextMap()["detail"]
	for _, name := range []string{"window:" + HostContextName, "window:" + d.ID()} {
		if !strings.Contains(fmt.Sprint(detail), name) {
			t.Errorf("expected %q in broker state, got %v", name, detail)
		}
	}
}

func TestDemoRelayRejectsAutoID(t *testing.T) {
	cfg := config.Default().Demo
	cfg.ID = "auto"
	_, err := New(Options{Config: cfg, Logger: zap.NewNop(), Relay: &wsrelay.Client{}})
	if err == nil || !strings.Contains(err.Error(), "cannot be shared") {
		t.Errorf("expected auto id to be rejected in relay mode, got %v", err)
	}
}

func TestDemoRejectsBadVariant(t *testing.T) {
	cfg := config.Default().Demo
	cfg.Variant = "huge"
	if _, err := New(Options{Config: cfg, Logger: zap.NewNop()}); err == nil {
		t.Error("expected error for unknown variant")
	}
}
