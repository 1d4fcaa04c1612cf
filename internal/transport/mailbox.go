package transport

import "sync"

// Mailbox is the receiving half of a port: it queues messages until Start
// and then dispatches each one to the current handler on a Loop.
type Mailbox struct {
	mu      sync.Mutex
	loop    *Loop
	handler func([]byte)
	started bool
	closed  bool
	pending [][]byte
}

// NewMailbox creates a mailbox that dispatches on loop.
func NewMailbox(loop *Loop) *Mailbox {
	return &Mailbox{loop: loop}
}

// SetLoop moves future dispatches to loop. Used when a port changes owner.
func (m *Mailbox) SetLoop(loop *Loop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
}

// SetHandler installs fn; nil detaches. The handler is read at dispatch
// time, so messages already queued reach the newest handler.
func (m *Mailbox) SetHandler(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Start begins dispatching, flushing queued messages in order.
func (m *Mailbox) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	for _, data := range m.pending {
		m.schedule(data)
	}
	m.pending = nil
}

// Deliver queues or dispatches data. Messages for a closed mailbox are dropped.
func (m *Mailbox) Deliver(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if !m.started {
		m.pending = append(m.pending, data)
		return
	}
	m.schedule(data)
}

// Close drops queued messages and detaches the handler. It reports whether
// this call closed the mailbox.
func (m *Mailbox) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.closed = true
	m.handler = nil
	m.pending = nil
	return true
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// schedule posts a dispatch task. Caller holds m.mu.
func (m *Mailbox) schedule(data []byte) {
	if m.loop == nil {
		return
	}
	m.loop.Post(func() {
		m.mu.Lock()
		fn := m.handler
		closed := m.closed
		m.mu.Unlock()
		if closed || fn == nil {
			return
		}
		fn(data)
	})
}
