// Package memory implements transport contexts that live in one process.
// Each context has its own event loop and a window bus; ports created in one
// context can be transferred to another through a window message.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
)

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger used by every context's loop.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Environment) {
		e.logger = logger
	}
}

// WithRegistry registers every context's window bus in reg.
func WithRegistry(reg *pubsub.Registry) Option {
	return func(e *Environment) {
		e.registry = reg
	}
}

// Environment is a set of named browsing contexts that can message each other.
type Environment struct {
	logger   *zap.Logger
	registry *pubsub.Registry
	portSeq  atomic.Uint64

	mu       sync.Mutex
	contexts map[string]*Context
}

// NewEnvironment creates an empty environment.
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{
		logger:   zap.L(),
		contexts: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewContext creates a browsing context named name.
func (e *Environment) NewContext(name string) (*Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.contexts[name]; exists {
		return nil, fmt.Errorf("context %q already exists", name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		env:    e,
		name:   name,
		loop:   transport.NewLoop(name, e.logger),
		bus:    pubsub.NewBroker[transport.Message]("window:"+name, pubsub.WithDropPolicy[transport.Message](false)),
		cancel: cancel,
		ports:  make(map[*port]struct{}),
	}
	c.pumpDone = c.bus.SubscribeFunc(ctx, c.pump)
	e.contexts[name] = c

	if e.registry != nil {
		e.registry.Register(c.bus.Name(), c.bus)
	}
	return c, nil
}

// Lookup returns the context named name.
func (e *Environment) Lookup(name string) (*Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contexts[name]
	return c, ok
}

// Window returns a handle to the context named name. Posting to it fails with
// transport.ErrNoTarget while no such context exists.
func (e *Environment) Window(name string) transport.Window {
	return window{env: e, name: name}
}

// Names lists the live contexts.
func (e *Environment) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.contexts))
	for name := range e.contexts {
		names = append(names, name)
	}
	return names
}

// Close closes every context.
func (e *Environment) Close() {
	e.mu.Lock()
	contexts := make([]*Context, 0, len(e.contexts))
	for _, c := range e.contexts {
		contexts = append(contexts, c)
	}
	e.mu.Unlock()

	for _, c := range contexts {
		c.Close()
	}
}

func (e *Environment) remove(c *Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.contexts[c.name] == c {
		delete(e.contexts, c.name)
	}
	if e.registry != nil {
		e.registry.Unregister(c.bus.Name())
	}
}

func (e *Environment) nextPortID() string {
	return fmt.Sprintf("port-%d", e.portSeq.Add(1))
}

type window struct {
	env  *Environment
	name string
}

func (w window) Name() string { return w.name }

func (w window) PostMessage(msg transport.Message) error {
	c, ok := w.env.Lookup(w.name)
	if !ok {
		return fmt.Errorf("post to %q: %w", w.name, transport.ErrNoTarget)
	}
	return c.PostMessage(msg)
}
