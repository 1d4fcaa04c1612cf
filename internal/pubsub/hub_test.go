package pubsub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sadsciencee/modalkit/internal/events"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	if hub.Modal == nil || hub.Toast == nil {
		t.Fatal("brokers should be initialized")
	}
	names := hub.Registry().List()
	if len(names) != 2 || names[0] != "modal" || names[1] != "toast" {
		t.Errorf("expected [modal toast] registered, got %v", names)
	}
}

func TestHubShutdown(t *testing.T) {
	t.Run("shutdown closes all brokers", func(t *testing.T) {
		hub := NewHub()
		hub.Shutdown()

		if !hub.IsShutdown() {
			t.Error("hub should be shutdown")
		}
		if !hub.Modal.IsShutdown() || !hub.Toast.IsShutdown() {
			t.Error("brokers should be shutdown")
		}
		select {
		case <-hub.Done():
		default:
			t.Error("Done channel should be closed after shutdown")
		}
	})

	t.Run("double shutdown is safe", func(t *testing.T) {
		hub := NewHub()
		hub.Shutdown()
		hub.Shutdown()
		if !hub.IsShutdown() {
			t.Error("hub should still be shutdown")
		}
	})
}

func TestHubModalPublisher(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := hub.Modal.Subscribe(ctx)

	hub.ModalPublisher().Publish(EventModal, events.NewModalEvent("modal.hello.1", events.SideGuest, events.ModalLoaded))

	select {
	case e := <-sub:
		if e.Type != EventType(events.ModalLoaded) {
			t.Errorf("expected event type to mirror modal event type, got %q", e.Type)
		}
		if e.Payload.SessionID != "modal.hello.1" {
			t.Errorf("unexpected payload: %+v", e.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestHubMetricsAndDebug(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	_ = hub.Toast.Subscribe(context.Background())
	hub.Toast.Publish(EventToast, events.NewToastEvent("m", "Saved", false))

	var toast BrokerMetrics
	for _, m := range hub.AllMetrics() {
		if m.Name == "toast" {
			toast = m
		}
	}
	if toast.PublishCount != 1 {
		t.Errorf("expected 1 toast publish, got %d", toast.PublishCount)
	}

	debug := hub.DebugString()
	if !strings.Contains(debug, "toast: subs=1") {
		t.Errorf("expected toast line in debug output, got:\n%s", debug)
	}
}
