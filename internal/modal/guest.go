package modal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/transport"
)

// ErrNotLoaded is returned when reading parent state before it has arrived.
var ErrNotLoaded = errors.New("parent state not loaded")

// GuestConfig describes the modal side of a channel.
type GuestConfig struct {
	ID    string
	Route string

	OnPrimaryAction   func()
	OnSecondaryAction func()
	// OnReply receives messages the host sends with Controls.Reply.
	OnReply func(data json.RawMessage)
	// OnLoad fires each time the host's initial state arrives.
	OnLoad   func(sharedState json.RawMessage, titleBar envelope.TitleBarState)
	Handlers Handlers
}

// Guest is the modal side of a channel. It waits for the host's handshake,
// claims the transferred port and requests the host's initial state.
type Guest struct {
	endpoint

	cfg      GuestConfig
	handlers Handlers
	stop     func()

	mu         sync.Mutex
	port       transport.Port
	generation uint64
	unmounted  bool
	loaded     bool
	loadedCh   chan struct{}
	shared     json.RawMessage
	titleBar   *envelope.TitleBarState
}

// NewGuest starts listening in local for the host's handshake.
func NewGuest(local transport.Context, cfg GuestConfig, opts ...Option) (*Guest, error) {
	if cfg.Route == "" {
		return nil, fmt.Errorf("new guest: route is required")
	}
	o := applyOptions(opts)
	id := modalid.NewMount(o.alloc).Resolve(cfg.ID, cfg.Route).String()

	g := &Guest{
		endpoint: newEndpoint(id, events.SideGuest, o),
		cfg:      cfg,
		loadedCh: make(chan struct{}),
	}
	g.handlers = merge(g.defaultHandlers(), cfg.Handlers)
	g.stop = local.Listen(g.onWindowMessage)

	g.emit(events.ModalMounted, "", "")
	return g, nil
}

// ID returns the resolved modal id.
func (g *Guest) ID() string { return g.id }

// Loaded reports whether the host's initial state has arrived on the current channel.
func (g *Guest) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// Connected reports whether a channel port has been claimed.
func (g *Guest) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.port != nil
}

// WaitLoaded blocks until the initial state arrives or ctx is done.
func (g *Guest) WaitLoaded(ctx context.Context) error {
	g.mu.Lock()
	ch := g.loadedCh
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParentState returns the host's shared state, or nil before it has loaded.
func (g *Guest) ParentState() json.RawMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shared == nil {
		return nil
	}
	return append(json.RawMessage(nil), g.shared...)
}

// DecodeParentState unmarshals the host's shared state into v.
func (g *Guest) DecodeParentState(v any) error {
	state := g.ParentState()
	if state == nil {
		return ErrNotLoaded
	}
	if err := json.Unmarshal(state, v); err != nil {
		return fmt.Errorf("decode parent state: %w", err)
	}
	return nil
}

// TitleBarState returns the last title bar state received from the host.
func (g *Guest) TitleBarState() (envelope.TitleBarState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.titleBar == nil {
		return envelope.TitleBarState{}, false
	}
	return g.titleBar.Clone(), true
}

// SendMessage wraps data as a free-form message to the host.
func (g *Guest) SendMessage(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return g.Send(envelope.MessageFromPortal{Data: b})
}

// RequestClose asks the host to hide the modal.
func (g *Guest) RequestClose(message string, isError bool) error {
	return g.Send(envelope.Close{Message: message, Error: isError})
}

// Toast asks the host to show a toast.
func (g *Guest) Toast(message string, isError bool) error {
	return g.Send(envelope.Toast{Message: message, Error: isError})
}

// ReloadParent asks the host to reload its data.
func (g *Guest) ReloadParent(closeAfterReload bool) error {
	return g.Send(envelope.ReloadParent{CloseAfterReload: closeAfterReload})
}

// Send posts p to the host. Without a claimed port the message is dropped
// with a warning.
func (g *Guest) Send(p envelope.Payload) error {
	b, err := g.encode(p)
	if err != nil {
		return err
	}

	g.mu.Lock()
	port := g.port
	g.mu.Unlock()

	if port == nil {
		g.logger.Warn("attempted to send message without active port", zap.String("kind", string(p.Kind())))
		g.emit(events.ModalDropped, p.Kind(), "no channel")
		return nil
	}
	if err := port.PostMessage(b); err != nil {
		g.logger.Warn("failed to post message", zap.String("kind", string(p.Kind())), zap.Error(err))
		g.emit(events.ModalDropped, p.Kind(), err.Error())
		return nil
	}
	g.emit(events.ModalSent, p.Kind(), "")
	return nil
}

// Unmount stops listening for handshakes and closes the claimed port.
func (g *Guest) Unmount() {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		return
	}
	g.unmounted = true
	g.generation++
	port := g.port
	g.port = nil
	g.mu.Unlock()

	g.stop()
	if port != nil {
		port.SetHandler(nil)
		_ = port.Close()
	}
	g.emit(events.ModalUnmounted, "", "")
}

func (g *Guest) onWindowMessage(msg transport.Message) {
	if !envelope.MatchHandshake(msg.Data, g.id) {
		return
	}
	if len(msg.Ports) == 0 {
		g.logger.Warn("handshake without a port")
		return
	}
	g.claim(msg.Ports[0])
}

// claim adopts port, retiring any port from an earlier handshake first.
func (g *Guest) claim(port transport.Port) {
	g.mu.Lock()
	if g.unmounted {
		g.mu.Unlock()
		_ = port.Close()
		return
	}
	previous := g.port
	g.generation++
	gen := g.generation
	g.port = port
	g.loaded = false
	g.shared = nil
	g.titleBar = nil
	select {
	case <-g.loadedCh:
		g.loadedCh = make(chan struct{})
	default:
	}
	g.mu.Unlock()

	if previous != nil {
		previous.SetHandler(nil)
		_ = previous.Close()
		g.logger.Debug("replaced channel from earlier handshake", zap.String("port", previous.ID()))
	}

	port.SetHandler(func(data []byte) { g.receive(gen, data) })
	port.Start()
	g.emit(events.ModalHandshake, "", port.ID())

	_ = g.Send(envelope.RequestParentState{})
}

func (g *Guest) receive(gen uint64, data []byte) {
	g.mu.Lock()
	current := gen == g.generation
	g.mu.Unlock()
	if !current {
		return
	}

	env, ok := g.decode(data)
	if !ok {
		return
	}
	g.dispatch(g.handlers, env)
}

func (g *Guest) defaultHandlers() Handlers {
	return Handlers{
		envelope.KindSendParentState: On(func(p envelope.SendParentState) {
			state := p.TitleBarState.Clone()
			g.mu.Lock()
			g.shared = append(json.RawMessage(nil), p.SharedState...)
			g.titleBar = &state
			first := !g.loaded
			g.loaded = true
			if first {
				close(g.loadedCh)
			}
			g.mu.Unlock()

			if first {
				g.emit(events.ModalLoaded, "", "")
			}
			if g.cfg.OnLoad != nil {
				g.cfg.OnLoad(p.SharedState, p.TitleBarState.Clone())
			}
		}),
		envelope.KindTitleBarState: On(func(p envelope.TitleBarState) {
			state := p.Clone()
			g.mu.Lock()
			g.titleBar = &state
			g.mu.Unlock()
			g.emit(events.ModalTitleBar, envelope.KindTitleBarState, p.Title)
		}),
		envelope.KindTitleBarAction: On(func(p envelope.TitleBarAction) {
			switch p.Action {
			case envelope.ActionPrimary:
				g.guard("OnPrimaryAction", g.cfg.OnPrimaryAction)
			case envelope.ActionSecondary:
				g.guard("OnSecondaryAction", g.cfg.OnSecondaryAction)
			default:
				g.logger.Warn("unknown title bar action", zap.String("action", string(p.Action)))
			}
		}),
		envelope.KindMessageFromParent: On(func(p envelope.MessageFromParent) {
			if g.cfg.OnReply == nil {
				g.logger.Debug("reply from host ignored, no reply handler registered")
				return
			}
			g.cfg.OnReply(p.Data)
		}),
	}
}
