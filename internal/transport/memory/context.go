package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
)

type listener struct {
	fn func(transport.Message)
}

// Context is an in-process browsing context.
type Context struct {
	env      *Environment
	name     string
	loop     *transport.Loop
	bus      *pubsub.Broker[transport.Message]
	cancel   context.CancelFunc
	pumpDone <-chan struct{}

	mu        sync.Mutex
	closed    bool
	listeners []*listener
	ports     map[*port]struct{}
}

var _ transport.Context = (*Context)(nil)

// Name returns the context's name.
func (c *Context) Name() string { return c.name }

// Loop returns the event loop that runs this context's handlers.
func (c *Context) Loop() *transport.Loop { return c.loop }

// PostMessage delivers msg to this context's listeners. Ports in msg become
// owned by this context.
func (c *Context) PostMessage(msg transport.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("post to %q: %w", c.name, transport.ErrClosed)
	}

	for _, p := range msg.Ports {
		mp, ok := p.(*port)
		if !ok || mp.env != c.env {
			return fmt.Errorf("post to %q: %w", c.name, transport.ErrForeignPort)
		}
	}
	for _, p := range msg.Ports {
		p.(*port).rehome(c)
	}

	c.bus.Publish(pubsub.EventWindowMessage, msg)
	return nil
}

// Listen registers fn for window messages posted to this context.
func (c *Context) Listen(fn func(transport.Message)) (stop func()) {
	l := &listener{fn: fn}

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, existing := range c.listeners {
				if existing == l {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// NewChannel creates a linked port pair owned by this context.
func (c *Context) NewChannel() (transport.Port, transport.Port, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, fmt.Errorf("new channel in %q: %w", c.name, transport.ErrClosed)
	}

	a := newPort(c.env.nextPortID(), c)
	b := newPort(c.env.nextPortID(), c)
	a.peer, b.peer = b, a
	c.ports[a] = struct{}{}
	c.ports[b] = struct{}{}
	return a, b, nil
}

// Close detaches all listeners, closes owned ports and stops the loop.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listeners = nil
	owned := make([]*port, 0, len(c.ports))
	for p := range c.ports {
		owned = append(owned, p)
	}
	c.ports = make(map[*port]struct{})
	c.mu.Unlock()

	for _, p := range owned {
		_ = p.Close()
	}
	c.cancel()
	c.bus.Shutdown()
	<-c.pumpDone
	c.loop.Close()
	c.env.remove(c)
}

// pump moves window bus events onto the loop.
func (c *Context) pump(e pubsub.Event[transport.Message]) {
	msg := e.Payload
	c.loop.Post(func() {
		c.mu.Lock()
		listeners := make([]*listener, len(c.listeners))
		copy(listeners, c.listeners)
		c.mu.Unlock()

		for _, l := range listeners {
			l.fn(msg)
		}
	})
}

func (c *Context) adopt(p *port) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.ports[p] = struct{}{}
	return true
}

func (c *Context) release(p *port) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ports, p)
}
