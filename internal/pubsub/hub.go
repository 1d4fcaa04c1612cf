package pubsub

import (
	"sync"

	"github.com/sadsciencee/modalkit/internal/events"
)

// Hub holds the application-wide brokers: modal lifecycle events from every
// session and toasts raised through the shell.
type Hub struct { //nolint:govet // fieldalignment: preserving logical field order
	Modal *Broker[events.ModalEvent]
	Toast *Broker[events.ToastEvent]

	registry *Registry
	done     chan struct{}
	once     sync.Once
}

// NewHub creates a hub with its brokers registered for introspection.
func NewHub() *Hub {
	h := &Hub{
		Modal:    NewBroker[events.ModalEvent]("modal"),
		Toast:    NewBroker[events.ToastEvent]("toast"),
		registry: NewRegistry(),
		done:     make(chan struct{}),
	}
	h.registry.Register(h.Modal.Name(), h.Modal)
	h.registry.Register(h.Toast.Name(), h.Toast)
	return h
}

// PublishModal publishes a lifecycle event using its own type as the event type.
func (h *Hub) PublishModal(_ EventType, e events.ModalEvent) {
	h.Modal.Publish(EventType(e.Type), e)
}

// ModalPublisher adapts the hub to the publisher sessions expect.
func (h *Hub) ModalPublisher() Publisher[events.ModalEvent] {
	return PublisherFunc[events.ModalEvent](h.PublishModal)
}

// Shutdown shuts down every broker. Safe to call more than once.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		close(h.done)
		h.Modal.Shutdown()
		h.Toast.Shutdown()
	})
}

// IsShutdown returns true if the hub has been shut down.
func (h *Hub) IsShutdown() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that's closed when the hub is shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Registry returns the registry shared with window buses.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// AllMetrics returns metrics for the hub's own brokers.
func (h *Hub) AllMetrics() []BrokerMetrics {
	return []BrokerMetrics{
		h.Modal.Metrics(),
		h.Toast.Metrics(),
	}
}

// DebugString returns a formatted debug string for every registered broker.
func (h *Hub) DebugString() string {
	return h.registry.DebugString()
}
