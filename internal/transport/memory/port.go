package memory

import (
	"fmt"
	"sync"

	"github.com/sadsciencee/modalkit/internal/transport"
)

type port struct {
	*transport.Mailbox

	id  string
	env *Environment

	mu    sync.Mutex
	owner *Context
	peer  *port
}

var _ transport.Port = (*port)(nil)

func newPort(id string, owner *Context) *port {
	return &port{
		Mailbox: transport.NewMailbox(owner.loop),
		id:      id,
		env:     owner.env,
		owner:   owner,
	}
}

func (p *port) ID() string { return p.id }

func (p *port) PostMessage(data []byte) error {
	if p.Closed() {
		return fmt.Errorf("port %s: %w", p.id, transport.ErrClosed)
	}
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()

	if peer == nil {
		return nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	peer.Deliver(buf)
	return nil
}

func (p *port) Close() error {
	if !p.Mailbox.Close() {
		return nil
	}

	p.mu.Lock()
	peer := p.peer
	p.peer = nil
	owner := p.owner
	p.mu.Unlock()

	if peer != nil {
		peer.mu.Lock()
		if peer.peer == p {
			peer.peer = nil
		}
		peer.mu.Unlock()
	}
	if owner != nil {
		owner.release(p)
	}
	return nil
}

// rehome moves ownership to c. A port whose new owner is already closed is closed.
func (p *port) rehome(c *Context) {
	p.mu.Lock()
	prev := p.owner
	if prev == c {
		p.mu.Unlock()
		return
	}
	p.owner = c
	p.mu.Unlock()

	p.SetLoop(c.loop)
	if prev != nil {
		prev.release(p)
	}
	if !c.adopt(p) {
		_ = p.Close()
	}
}
