package modal

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/transport"
	"github.com/sadsciencee/modalkit/internal/transport/memory"
)

// fakePlatform shows modals by firing hooks directly. Frames are contexts of
// the same memory environment, named by modal id.
type fakePlatform struct {
	env *memory.Environment

	mu        sync.Mutex
	hooks     map[string]Hooks
	shown     map[string]int
	hidden    map[string]int
	unmounted map[string]int
	toasts    []string
}

func newFakePlatform(env *memory.Environment) *fakePlatform {
	return &fakePlatform{
		env:       env,
		hooks:     make(map[string]Hooks),
		shown:     make(map[string]int),
		hidden:    make(map[string]int),
		unmounted: make(map[string]int),
	}
}

func (p *fakePlatform) Mount(id string, _ envelope.Variant, hooks Hooks) func() {
	p.mu.Lock()
	p.hooks[id] = hooks
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.hooks, id)
		p.unmounted[id]++
		p.mu.Unlock()
	}
}

func (p *fakePlatform) Show(id string) {
	p.mu.Lock()
	hooks, ok := p.hooks[id]
	p.shown[id]++
	p.mu.Unlock()
	if ok && hooks.OnShow != nil {
		hooks.OnShow()
	}
}

func (p *fakePlatform) Hide(id string) {
	p.mu.Lock()
	hooks, ok := p.hooks[id]
	p.hidden[id]++
	p.mu.Unlock()
	if ok && hooks.OnHide != nil {
		hooks.OnHide()
	}
}

func (p *fakePlatform) Frame(id string) (transport.Window, bool) {
	if _, ok := p.env.Lookup(id); !ok {
		return nil, false
	}
	return p.env.Window(id), true
}

func (p *fakePlatform) Toast(_ string, message string, _ bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
}

func (p *fakePlatform) count(m map[string]int, id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return m[id]
}

type harness struct {
	t        *testing.T
	env      *memory.Environment
	platform *fakePlatform
	host     *memory.Context
	frame    *memory.Context
	logs     *observer.ObservedLogs
	logger   *zap.Logger
}

const testModalID = "modal.products.1"

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := memory.NewEnvironment(memory.WithLogger(zap.NewNop()))
	t.Cleanup(env.Close)

	host, err := env.NewContext("host")
	if err != nil {
		t.Fatalf("failed to create host context: %v", err)
	}
	frame, err := env.NewContext(testModalID)
	if err != nil {
		t.Fatalf("failed to create frame context: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	return &harness{
		t:        t,
		env:      env,
		platform: newFakePlatform(env),
		host:     host,
		frame:    frame,
		logs:     logs,
		logger:   zap.New(core),
	}
}

func (h *harness) newHost(cfg HostConfig, opts ...Option) *Host {
	h.t.Helper()
	if cfg.ID == "" {
		cfg.ID = "1"
	}
	if cfg.Route == "" {
		cfg.Route = "products"
	}
	host, err := NewHost(h.host, h.platform, cfg, append([]Option{WithLogger(h.logger)}, opts...)...)
	if err != nil {
		h.t.Fatalf("failed to create host: %v", err)
	}
	h.t.Cleanup(host.Unmount)
	return host
}

func (h *harness) newGuest(cfg GuestConfig, opts ...Option) *Guest {
	h.t.Helper()
	if cfg.ID == "" {
		cfg.ID = "1"
	}
	if cfg.Route == "" {
		cfg.Route = "products"
	}
	guest, err := NewGuest(h.frame, cfg, append([]Option{WithLogger(h.logger)}, opts...)...)
	if err != nil {
		h.t.Fatalf("failed to create guest: %v", err)
	}
	h.t.Cleanup(guest.Unmount)
	return guest
}

// settle waits until both loops have drained what is queued so far.
func (h *harness) settle() {
	for i := 0; i < 3; i++ {
		h.host.Loop().Do(func() {})
		h.frame.Loop().Do(func() {})
	}
}

func (h *harness) logCount(level zapcore.Level, msg string) int {
	return h.logs.FilterLevelExact(level).FilterMessage(msg).Len()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
