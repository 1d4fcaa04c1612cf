package wsrelay

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics replaces the server's collectors.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

type portEntry struct {
	owner string
	peer  string
}

type conn struct {
	name string
	ws   *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
}

func (c *conn) stop() {
	c.once.Do(func() { close(c.done) })
}

// enqueue hands f to the writer. It gives up once the connection is done.
func (c *conn) enqueue(f Frame) bool {
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	}
}

// Server routes frames between connected browsing contexts.
type Server struct {
	logger   *zap.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
	ports map[string]*portEntry
}

// NewServer creates a relay server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger: zap.L(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Contexts are local processes; origin checks belong to the browser model.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
		ports: make(map[string]*portEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Contexts lists the connected context names.
func (s *Server) Contexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	return names
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("context")
	if name == "" {
		http.Error(w, "context is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, taken := s.conns[name]
	s.mu.Unlock()
	if taken {
		http.Error(w, "context already connected", http.StatusConflict)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("context", name), zap.Error(err))
		return
	}

	c := &conn{
		name: name,
		ws:   ws,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if _, taken := s.conns[name]; taken {
		s.mu.Unlock()
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "context already connected"))
		_ = ws.Close()
		return
	}
	s.conns[name] = c
	s.mu.Unlock()

	s.metrics.Connections.Inc()
	s.logger.Info("context connected", zap.String("context", name))

	go s.writeLoop(c)
	s.readLoop(c)
	s.disconnect(c)
}

func (s *Server) writeLoop(c *conn) {
	defer func() { _ = c.ws.Close() }()
	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteJSON(f); err != nil {
				s.logger.Debug("write failed", zap.String("context", c.name), zap.Error(err))
				c.stop()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) readLoop(c *conn) {
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read failed", zap.String("context", c.name), zap.Error(err))
			}
			return
		}
		s.metrics.Frames.WithLabelValues(string(f.Op)).Inc()
		s.route(c, f)
	}
}

func (s *Server) disconnect(c *conn) {
	c.stop()

	type notice struct {
		to   *conn
		port string
	}
	var notices []notice

	s.mu.Lock()
	if s.conns[c.name] == c {
		delete(s.conns, c.name)
	}
	for id, entry := range s.ports {
		if entry.owner != c.name {
			continue
		}
		delete(s.ports, id)
		if peer, ok := s.ports[entry.peer]; ok && peer.owner != c.name {
			peer.peer = ""
			if to, ok := s.conns[peer.owner]; ok {
				notices = append(notices, notice{to: to, port: entry.peer})
			}
		}
	}
	s.metrics.Ports.Set(float64(len(s.ports)))
	s.mu.Unlock()

	for _, n := range notices {
		n.to.enqueue(Frame{Op: OpClose, Port: n.port})
	}
	s.metrics.Connections.Dec()
	s.logger.Info("context disconnected", zap.String("context", c.name))
}

func (s *Server) drop(c *conn, f Frame, reason string) {
	s.metrics.Dropped.WithLabelValues(reason).Inc()
	s.logger.Debug("dropped frame",
		zap.String("context", c.name), zap.String("op", string(f.Op)), zap.String("reason", reason))
}

// route forwards one client frame. State changes happen under the lock;
// sends happen after it is released.
func (s *Server) route(c *conn, f Frame) {
	switch f.Op {
	case OpOpen:
		s.open(c, f)
	case OpPost:
		s.post(c, f)
	case OpPort:
		s.forward(c, f)
	case OpClose:
		s.closePort(c, f)
	default:
		s.drop(c, f, dropInvalid)
	}
}

func (s *Server) open(c *conn, f Frame) {
	if len(f.Ports) != 2 || f.Ports[0] == "" || f.Ports[0] == f.Ports[1] {
		s.drop(c, f, dropInvalid)
		return
	}
	a, b := f.Ports[0], f.Ports[1]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ports[a]; exists {
		s.drop(c, f, dropInvalid)
		return
	}
	if _, exists := s.ports[b]; exists {
		s.drop(c, f, dropInvalid)
		return
	}
	s.ports[a] = &portEntry{owner: c.name, peer: b}
	s.ports[b] = &portEntry{owner: c.name, peer: a}
	s.metrics.Ports.Set(float64(len(s.ports)))
}

func (s *Server) post(c *conn, f Frame) {
	s.mu.Lock()
	target, ok := s.conns[f.Target]
	if !ok {
		s.mu.Unlock()
		s.drop(c, f, dropUnknownTarget)
		return
	}
	for _, id := range f.Ports {
		entry, ok := s.ports[id]
		if !ok || entry.owner != c.name {
			s.mu.Unlock()
			s.drop(c, f, dropNotOwner)
			return
		}
	}
	for _, id := range f.Ports {
		s.ports[id].owner = target.name
	}
	s.mu.Unlock()

	target.enqueue(Frame{Op: OpMessage, Origin: c.name, Ports: f.Ports, Data: f.Data})
}

func (s *Server) forward(c *conn, f Frame) {
	s.mu.Lock()
	entry, ok := s.ports[f.Port]
	if !ok {
		s.mu.Unlock()
		s.drop(c, f, dropUnknownPort)
		return
	}
	if entry.owner != c.name {
		s.mu.Unlock()
		s.drop(c, f, dropNotOwner)
		return
	}
	peer, ok := s.ports[entry.peer]
	if !ok {
		s.mu.Unlock()
		s.drop(c, f, dropPeerGone)
		return
	}
	to, ok := s.conns[peer.owner]
	s.mu.Unlock()
	if !ok {
		s.drop(c, f, dropPeerGone)
		return
	}

	to.enqueue(Frame{Op: OpPort, Port: entry.peer, Data: f.Data})
}

func (s *Server) closePort(c *conn, f Frame) {
	s.mu.Lock()
	entry, ok := s.ports[f.Port]
	if !ok || entry.owner != c.name {
		s.mu.Unlock()
		s.drop(c, f, dropUnknownPort)
		return
	}
	delete(s.ports, f.Port)

	var to *conn
	if peer, ok := s.ports[entry.peer]; ok {
		peer.peer = ""
		to = s.conns[peer.owner]
	}
	s.metrics.Ports.Set(float64(len(s.ports)))
	s.mu.Unlock()

	if to != nil {
		to.enqueue(Frame{Op: OpClose, Port: entry.peer})
	}
}
