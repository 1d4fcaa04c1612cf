package wsrelay

import (
	"fmt"
	"sync"

	"github.com/sadsciencee/modalkit/internal/transport"
)

type port struct {
	*transport.Mailbox

	id     string
	client *Client

	mu       sync.Mutex
	moved    bool
	peerGone bool
}

var _ transport.Port = (*port)(nil)

func (p *port) ID() string { return p.id }

func (p *port) PostMessage(data []byte) error {
	p.mu.Lock()
	moved, peerGone := p.moved, p.peerGone
	p.mu.Unlock()

	if moved || p.Closed() {
		return fmt.Errorf("port %s: %w", p.id, transport.ErrClosed)
	}
	if peerGone {
		return nil
	}
	return p.client.write(Frame{Op: OpPort, Port: p.id, Data: data})
}

func (p *port) Close() error {
	if !p.Mailbox.Close() {
		return nil
	}
	p.mu.Lock()
	moved := p.moved
	p.mu.Unlock()
	if moved {
		return nil
	}

	p.client.forget(p)
	if err := p.client.write(Frame{Op: OpClose, Port: p.id}); err != nil && !p.client.isClosed() {
		return err
	}
	return nil
}

func (p *port) transferred() {
	p.mu.Lock()
	p.moved = true
	p.mu.Unlock()
	p.Mailbox.Close()
}

func (p *port) peerClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peerGone = true
}
