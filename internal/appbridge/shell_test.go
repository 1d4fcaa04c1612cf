package appbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/modal"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
	"github.com/sadsciencee/modalkit/internal/transport/memory"
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

type nopWindow string

func (w nopWindow) Name() string                         { return string(w) }
func (w nopWindow) PostMessage(transport.Message) error { return nil }

type countingLoader struct {
	loads   atomic.Int32
	unloads atomic.Int32
}

func (l *countingLoader) Load(id string) (transport.Window, func(), error) {
	l.loads.Add(1)
	return nopWindow(id), func() { l.unloads.Add(1) }, nil
}

func TestShellShowAndHide(t *testing.T) {
	loader := &countingLoader{}
	s := New(loader, WithLogger(zap.NewNop()))

	var shows, hides atomic.Int32
	unmount := s.Mount("modal.a.1", envelope.VariantBase, modal.Hooks{
		OnShow: func() { shows.Add(1) },
		OnHide: func() { hides.Add(1) },
	})

	if _, ok := s.Frame("modal.a.1"); ok {
		t.Error("expected no frame before the first show")
	}

	s.Show("modal.a.1")
	s.Show("modal.a.1")
	if got := loader.loads.Load(); got != 1 {
		t.Errorf("expected the frame to load once, got %d", got)
	}
	if got := shows.Load(); got != 2 {
		t.Errorf("expected 2 shows, got %d", got)
	}
	if !s.Visible("modal.a.1") {
		t.Error("expected modal to be visible")
	}
	if w, ok := s.Frame("modal.a.1"); !ok || w.Name() != "modal.a.1" {
		t.Errorf("expected frame modal.a.1, got %v", w)
	}

	s.Hide("modal.a.1")
	s.Hide("modal.a.1")
	if got := hides.Load(); got != 1 {
		t.Errorf("expected hiding a hidden modal to be a no-op, got %d hides", got)
	}

	unmount()
	s.Show("modal.a.1")
	if got := shows.Load(); got != 2 {
		t.Errorf("expected no show after unmount, got %d", got)
	}

	s.Close()
	if got := loader.unloads.Load(); got != 1 {
		t.Errorf("expected the frame to unload on close, got %d", got)
	}
}

func TestShellStaleUnmount(t *testing.T) {
	s := New(&countingLoader{}, WithLogger(zap.NewNop()))

	var second atomic.Int32
	first := s.Mount("modal.a.1", envelope.VariantBase, modal.Hooks{})
	s.Mount("modal.a.1", envelope.VariantBase, modal.Hooks{OnShow: func() { second.Add(1) }})

	first()
	s.Show("modal.a.1")
	if got := second.Load(); got != 1 {
		t.Errorf("expected the newer mount to survive a stale unmount, got %d shows", got)
	}

	infos := s.Modals()
	if len(infos) != 1 || !infos[0].Mounted || !infos[0].Loaded || !infos[0].Visible {
		t.Errorf("unexpected modal info: %+v", infos)
	}
}

func TestShellUnload(t *testing.T) {
	loader := &countingLoader{}
	s := New(loader, WithLogger(zap.NewNop()))
	s.Mount("modal.a.1", envelope.VariantMax, modal.Hooks{})

	if err := s.Unload("modal.a.1"); err == nil {
		t.Error("expected an error unloading a frame that was never loaded")
	}

	s.Show("modal.a.1")
	if err := s.Unload("modal.a.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Show("modal.a.1")
	if got := loader.loads.Load(); got != 2 {
		t.Errorf("expected a fresh load after unload, got %d", got)
	}
}

func TestShellLoadFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(FrameLoaderFunc(func(string) (transport.Window, func(), error) {
		return nil, nil, errors.New("boom")
	}), WithLogger(zap.New(core)))

	var shows atomic.Int32
	s.Mount("modal.a.1", envelope.VariantBase, modal.Hooks{OnShow: func() { shows.Add(1) }})
	s.Show("modal.a.1")

	if shows.Load() != 0 {
		t.Error("expected no show when the frame fails to load")
	}
	if logs.FilterMessage("failed to load modal frame").Len() != 1 {
		t.Errorf("expected load failure to be logged, got %v", logs.All())
	}
}

func TestShellToast(t *testing.T) {
	hub := pubsub.NewHub()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Toast.Subscribe(ctx)

	s := New(&countingLoader{}, WithLogger(zap.NewNop()), WithToasts(hub.Toast))
	s.Toast("modal.a.1", "Saved", false)

	select {
	case e := <-ch:
		if e.Payload.Message != "Saved" || e.Payload.SessionID != "modal.a.1" || e.Payload.IsError {
			t.Errorf("unexpected toast: %+v", e.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for toast")
	}
}

type pageRecorder struct {
	mu     sync.Mutex
	guests []*modal.Guest
	loads  int
	shared []string
}

func (r *pageRecorder) page(logger *zap.Logger) Page {
	return func(ctx transport.Context, instance string) (func(), error) {
		g, err := modal.NewGuest(ctx, modal.GuestConfig{
			ID:    instance,
			Route: "products",
			OnLoad: func(shared json.RawMessage, _ envelope.TitleBarState) {
				r.mu.Lock()
				r.loads++
				r.shared = append(r.shared, string(shared))
				r.mu.Unlock()
			},
		}, modal.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.guests = append(r.guests, g)
		r.mu.Unlock()
		return g.Unmount, nil
	}
}

func (r *pageRecorder) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

func (r *pageRecorder) guest(i int) *modal.Guest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.guests) {
		return nil
	}
	return r.guests[i]
}

func TestLocalFramesRoundTrip(t *testing.T) {
	logger := zap.NewNop()
	env := memory.NewEnvironment(memory.WithLogger(logger))
	defer env.Close()

	hostCtx, err := env.NewContext("host")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := &pageRecorder{}
	shell := New(LocalFrames(env, map[string]Page{"products": rec.page(logger)}), WithLogger(logger))
	defer shell.Close()

	var mu sync.Mutex
	var received []string
	newHost := func(shared any) *modal.Host {
		h, err := modal.NewHost(hostCtx, shell, modal.HostConfig{
			ID:          "1",
			Route:       "products",
			SharedState: shared,
			OnMessage: func(data json.RawMessage, _ modal.Controls) {
				mu.Lock()
				received = append(received, string(data))
				mu.Unlock()
			},
		}, modal.WithLogger(logger))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return h
	}

	host := newHost(map[string]int{"count": 1})
	if host.ID() != "modal.products.1" {
		t.Fatalf("expected id modal.products.1, got %s", host.ID())
	}
	host.Open()

	eventually(t, "guest load", func() bool { return rec.loadCount() == 1 })
	g := rec.guest(0)
	if err := g.SendMessage(map[string]string{"hello": "parent"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "host message", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	// A remounted host reuses the loaded frame and re-handshakes with it.
	host.Unmount()
	host = newHost(map[string]int{"count": 2})
	defer host.Unmount()
	host.Open()

	eventually(t, "second load", func() bool { return rec.loadCount() == 2 })
	if rec.guest(1) != nil {
		t.Error("expected the frame to be reused rather than reloaded")
	}
	rec.mu.Lock()
	last := rec.shared[len(rec.shared)-1]
	rec.mu.Unlock()
	if last != `{"count":2}` {
		t.Errorf("expected shared state from the new host, got %s", last)
	}
}

func TestLocalFramesUnknownRoute(t *testing.T) {
	env := memory.NewEnvironment(memory.WithLogger(zap.NewNop()))
	defer env.Close()

	loader := LocalFrames(env, map[string]Page{})
	if _, _, err := loader.Load("modal.missing.1"); err == nil {
		t.Error("expected an error for a route without a page")
	}
	if _, _, err := loader.Load("products"); err == nil {
		t.Error("expected an error for a malformed modal id")
	}
	if len(env.Names()) != 0 {
		t.Errorf("expected no contexts to be created, got %v", env.Names())
	}
}

func TestRemoteFramesRoundTrip(t *testing.T) {
	logger := zap.NewNop()
	relay := wsrelay.NewServer(wsrelay.WithServerLogger(logger))
	srv := httptest.NewServer(relay.Handler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hostClient, err := wsrelay.Dial(ctx, wsURL, "host", wsrelay.WithClientLogger(logger))
	if err != nil {
		t.Fatalf("failed to dial host: %v", err)
	}
	defer func() { _ = hostClient.Close() }()
	frameClient, err := wsrelay.Dial(ctx, wsURL, "modal.products.7", wsrelay.WithClientLogger(logger))
	if err != nil {
		t.Fatalf("failed to dial frame: %v", err)
	}
	defer func() { _ = frameClient.Close() }()

	var actions atomic.Int32
	g, err := modal.NewGuest(frameClient, modal.GuestConfig{
		ID:              "7",
		Route:           "products",
		OnPrimaryAction: func() { actions.Add(1) },
	}, modal.WithLogger(logger))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer g.Unmount()

	hub := pubsub.NewHub()
	defer hub.Shutdown()
	shell := New(RemoteFrames(hostClient), WithLogger(logger), WithToasts(hub.Toast))
	defer shell.Close()

	subCtx, stop := context.WithCancel(context.Background())
	defer stop()
	toasts := hub.Toast.Subscribe(subCtx)

	host, err := modal.NewHost(hostClient, shell, modal.HostConfig{
		ID:          "7",
		Route:       "products",
		SharedState: map[string]string{"sku": "A-1"},
		TitleBar: modal.TitleBar{
			Title:         "Products",
			PrimaryButton: &envelope.Button{Label: "Save"},
		},
	}, modal.WithLogger(logger))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer host.Unmount()

	eventually(t, "both contexts on relay", func() bool { return len(relay.Contexts()) == 2 })
	host.Open()

	if err := g.WaitLoaded(ctx); err != nil {
		t.Fatalf("guest never loaded: %v", err)
	}
	var shared struct{ SKU string }
	if err := g.DecodeParentState(&shared); err != nil || shared.SKU != "A-1" {
		t.Errorf("expected sku A-1, got %+v (%v)", shared, err)
	}

	if err := host.TriggerAction(envelope.ActionPrimary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eventually(t, "primary action", func() bool { return actions.Load() == 1 })

	if err := g.Toast("Saved", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case e := <-toasts:
		want := events.NewToastEvent("modal.products.7", "Saved", false)
		if e.Payload.Message != want.Message || e.Payload.SessionID != want.SessionID {
			t.Errorf("unexpected toast: %+v", e.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for toast")
	}
}
