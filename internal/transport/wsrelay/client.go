package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/transport"
)

// ErrContextTaken is returned by Dial when another client already uses the name.
var ErrContextTaken = errors.New("wsrelay: context name already connected")

// ClientOption configures Dial.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     *zap.Logger
	maxElapsed time.Duration
	dialer     *websocket.Dialer
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithDialTimeout bounds the total time spent retrying the initial dial.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.maxElapsed = d
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

type listener struct {
	fn func(transport.Message)
}

// Client is a browsing context connected to a relay server.
type Client struct {
	name   string
	ws     *websocket.Conn
	logger *zap.Logger
	loop   *transport.Loop

	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	listeners []*listener
	ports     map[string]*port

	done chan struct{}
}

var _ transport.Context = (*Client)(nil)

// Dial connects to the relay at rawURL as context name, retrying with
// exponential backoff until ctx is done or the dial timeout elapses.
func Dial(ctx context.Context, rawURL, name string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		logger:     zap.L(),
		maxElapsed: 30 * time.Second,
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("context", name)
	u.RawQuery = q.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = o.maxElapsed

	var ws *websocket.Conn
	operation := func() error {
		conn, resp, err := o.dialer.DialContext(ctx, u.String(), nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusConflict {
				return backoff.Permanent(ErrContextTaken)
			}
			o.logger.Debug("relay dial failed, retrying", zap.String("url", u.String()), zap.Error(err))
			return err
		}
		ws = conn
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", rawURL, err)
	}

	c := &Client{
		name:   name,
		ws:     ws,
		logger: o.logger.With(zap.String("context", name)),
		loop:   transport.NewLoop(name, o.logger),
		ports:  make(map[string]*port),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Name returns the context name.
func (c *Client) Name() string { return c.name }

// Loop returns the event loop that runs this context's handlers.
func (c *Client) Loop() *transport.Loop { return c.loop }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// PostMessage posts msg to this context through the relay.
func (c *Client) PostMessage(msg transport.Message) error {
	return c.post(c.name, msg)
}

// Window returns a remote context by name.
func (c *Client) Window(name string) transport.Window {
	return remoteWindow{client: c, name: name}
}

// Listen registers fn for window messages posted to this context.
func (c *Client) Listen(fn func(transport.Message)) (stop func()) {
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
func (c *Client) NewChannel() (transport.Port, transport.Port, error) {
	a := c.newPort(ulid.Make().String())
	b := c.newPort(ulid.Make().String())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("new channel in %q: %w", c.name, transport.ErrClosed)
	}
	c.ports[a.id] = a
	c.ports[b.id] = b
	c.mu.Unlock()

	if err := c.write(Frame{Op: OpOpen, Ports: []string{a.id, b.id}}); err != nil {
		c.forget(a)
		c.forget(b)
		return nil, nil, err
	}
	return a, b, nil
}

// Close ends the connection. Owned ports are closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) post(target string, msg transport.Message) error {
	ids := make([]string, 0, len(msg.Ports))
	for _, p := range msg.Ports {
		rp, ok := p.(*port)
		if !ok || rp.client != c {
			return fmt.Errorf("post to %q: %w", target, transport.ErrForeignPort)
		}
		ids = append(ids, rp.id)
	}
	if err := c.write(Frame{Op: OpPost, Target: target, Ports: ids, Data: msg.Data}); err != nil {
		return err
	}
	// Transferred ports now belong to the target; the local handles are neutered.
	for _, p := range msg.Ports {
		rp := p.(*port)
		rp.transferred()
		c.forget(rp)
	}
	return nil
}

func (c *Client) write(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%s %q: %w", f.Op, c.name, transport.ErrClosed)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("%s %q: %w", f.Op, c.name, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("relay connection lost", zap.Error(err))
			}
			return
		}
		c.handle(f)
	}
}

func (c *Client) handle(f Frame) {
	switch f.Op {
	case OpMessage:
		// Ports must exist before later frames for them are read.
		ports := make([]transport.Port, 0, len(f.Ports))
		c.mu.Lock()
		for _, id := range f.Ports {
			p := c.newPort(id)
			c.ports[id] = p
			ports = append(ports, p)
		}
		c.mu.Unlock()

		msg := transport.Message{Data: f.Data, Ports: ports, Origin: f.Origin}
		c.loop.Post(func() { c.dispatch(msg) })
	case OpPort:
		if p, ok := c.lookup(f.Port); ok {
			p.Deliver(f.Data)
		}
	case OpClose:
		if p, ok := c.lookup(f.Port); ok {
			p.peerClosed()
		}
	default:
		c.logger.Debug("ignoring frame", zap.String("op", string(f.Op)))
	}
}

func (c *Client) dispatch(msg transport.Message) {
	c.mu.Lock()
	listeners := make([]*listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l.fn(msg)
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.listeners = nil
	owned := make([]*port, 0, len(c.ports))
	for _, p := range c.ports {
		owned = append(owned, p)
	}
	c.ports = make(map[string]*port)
	c.mu.Unlock()

	for _, p := range owned {
		p.Mailbox.Close()
	}
	c.loop.Close()
	close(c.done)
}

func (c *Client) newPort(id string) *port {
	return &port{
		Mailbox: transport.NewMailbox(c.loop),
		id:      id,
		client:  c,
	}
}

func (c *Client) lookup(id string) (*port, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ports[id]
	return p, ok
}

func (c *Client) forget(p *port) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ports[p.id] == p {
		delete(c.ports, p.id)
	}
}

type remoteWindow struct {
	client *Client
	name   string
}

func (w remoteWindow) Name() string { return w.name }

func (w remoteWindow) PostMessage(msg transport.Message) error {
	return w.client.post(w.name, msg)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
