package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// mockProgram captures messages sent via Send().
type mockProgram struct {
	mu       sync.Mutex
	messages []tea.Msg
}

func (m *mockProgram) Send(msg tea.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockProgram) Messages() []tea.Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]tea.Msg, len(m.messages))
	copy(result, m.messages)
	return result
}

func waitForMessages(t *testing.T, p *mockProgram, n int) []tea.Msg {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := p.Messages(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d messages, got %d", n, len(p.Messages()))
	return nil
}

func startBridge(t *testing.T, opts ...TUIBridgeOption) (*pubsub.Hub, *mockProgram, *TUIBridge) {
	t.Helper()
	hub := pubsub.NewHub()
	program := &mockProgram{}
	b := NewTUIBridge(hub, program, append([]TUIBridgeOption{WithLogger(zap.NewNop())}, opts...)...)
	b.Start(context.Background())
	t.Cleanup(func() {
		b.Stop()
		hub.Shutdown()
	})
	return hub, program, b
}

func TestTUIBridgeForwards(t *testing.T) {
	hub, program, _ := startBridge(t)

	hub.PublishModal(pubsub.EventModal, events.NewModalEvent("modal.a.1", events.SideHost, events.ModalShown))
	hub.Toast.Publish(pubsub.EventToast, events.NewToastEvent("modal.a.1", "Saved", false))

	msgs := waitForMessages(t, program, 2)

	var sawModal, sawToast bool
	for _, msg := range msgs {
		switch m := msg.(type) {
		case ModalEventMsg:
			sawModal = true
			if m.Event.Type != pubsub.EventType(events.ModalShown) {
				t.Errorf("expected event type shown, got %q", m.Event.Type)
			}
			if m.Event.Payload.Side != events.SideHost {
				t.Errorf("expected host side, got %q", m.Event.Payload.Side)
			}
		case ToastEventMsg:
			sawToast = true
			if m.Event.Payload.Message != "Saved" {
				t.Errorf("expected toast 'Saved', got %q", m.Event.Payload.Message)
			}
		default:
			t.Errorf("unexpected message %T", msg)
		}
	}
	if !sawModal || !sawToast {
		t.Errorf("expected both a modal and a toast message, got %v", msgs)
	}
}

func TestTUIBridgeModalFilter(t *testing.T) {
	hub, program, b := startBridge(t, WithModalFilter("modal.a.1"))

	hub.PublishModal(pubsub.EventModal, events.NewModalEvent("modal.b.1", events.SideHost, events.ModalShown))
	hub.PublishModal(pubsub.EventModal, events.NewModalEvent("modal.a.1", events.SideHost, events.ModalHidden))

	msgs := waitForMessages(t, program, 1)
	time.Sleep(50 * time.Millisecond)
	if got := len(program.Messages()); got != 1 {
		t.Fatalf("expected only the matching modal to be forwarded, got %d messages", got)
	}
	if m, ok := msgs[0].(ModalEventMsg); !ok || m.Event.Payload.SessionID != "modal.a.1" {
		t.Errorf("unexpected message %+v", msgs[0])
	}

	b.ClearModalFilter()
	hub.Toast.Publish(pubsub.EventToast, events.NewToastEvent("modal.b.1", "Other", true))
	waitForMessages(t, program, 2)
}

func TestTUIBridgeHubShutdown(t *testing.T) {
	hub, program, _ := startBridge(t)

	hub.Shutdown()
	msgs := waitForMessages(t, program, 1)
	if _, ok := msgs[0].(StoppedMsg); !ok {
		t.Errorf("expected StoppedMsg, got %T", msgs[0])
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(program.Messages()); got != 1 {
		t.Errorf("expected a single stopped message, got %d", got)
	}
}

func TestTUIBridgeStopIsSafe(t *testing.T) {
	t.Run("stop twice", func(t *testing.T) {
		_, program, b := startBridge(t)
		b.Stop()
		b.Stop()
		if got := len(program.Messages()); got != 0 {
			t.Errorf("expected no stopped message on a local stop, got %d", got)
		}
	})

	t.Run("stop without start", func(t *testing.T) {
		hub := pubsub.NewHub()
		defer hub.Shutdown()
		NewTUIBridge(hub, &mockProgram{}, WithLogger(zap.NewNop())).Stop()
	})
}
