// Package transport abstracts the cross-context messaging primitive the modal
// channel is built on: browsing contexts that receive window messages, and
// linked port pairs that can be transferred between contexts.
package transport

import "errors"

var (
	// ErrClosed is returned when posting on a port or context that was closed locally.
	ErrClosed = errors.New("transport: closed")
	// ErrNoTarget is returned when a window message has nowhere to go.
	ErrNoTarget = errors.New("transport: no such context")
	// ErrForeignPort is returned when transferring a port created by another transport.
	ErrForeignPort = errors.New("transport: port belongs to another transport")
)

// Message is a window message. Ports listed here are transferred to the
// receiving context.
type Message struct {
	Data   []byte
	Ports  []Port
	Origin string
}

// Port is one end of a linked pair. Inbound messages queue until Start.
// Handlers of a port run on the event loop of the context that owns it.
type Port interface {
	ID() string
	PostMessage(data []byte) error
	// SetHandler installs fn as the message handler; nil detaches.
	SetHandler(fn func(data []byte))
	Start()
	// Close disentangles the pair. Later posts from either end are dropped.
	Close() error
}

// Window is a target browsing context.
type Window interface {
	Name() string
	PostMessage(msg Message) error
}

// Context is a browsing context: a window that can listen for messages
// posted to it and create channels.
type Context interface {
	Window
	// Listen registers fn for window messages. The returned func removes it.
	Listen(fn func(msg Message)) (stop func())
	// NewChannel creates a linked port pair owned by this context.
	NewChannel() (Port, Port, error)
}
