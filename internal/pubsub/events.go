// Package pubsub provides the typed brokers that carry window messages and
// modal lifecycle notifications between components.
package pubsub

import (
	"context"
	"time"
)

// EventType tags an event with what produced it.
type EventType string

// Event types used by the built-in brokers.
const (
	EventWindowMessage EventType = "window_message"
	EventModal         EventType = "modal"
	EventToast         EventType = "toast"
)

// Event represents a typed event with metadata.
type Event[T any] struct { //nolint:govet // fieldalignment: preserving logical field order
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Publisher is the interface for publishing events.
type Publisher[T any] interface {
	Publish(EventType, T)
}

// Subscriber is the interface for subscribing to events.
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub[T any] interface {
	Publisher[T]
	Subscriber[T]
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc[T any] func(EventType, T)

// Publish calls f.
func (f PublisherFunc[T]) Publish(t EventType, payload T) { f(t, payload) }
