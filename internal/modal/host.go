package modal

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/transport"
)

// Hooks are the lifecycle callbacks a host registers with the platform.
type Hooks struct {
	// OnShow fires once the modal's frame is attached and visible.
	OnShow func()
	OnHide func()
}

// Platform is the application shell that renders named modals.
type Platform interface {
	Mount(id string, variant envelope.Variant, hooks Hooks) (unmount func())
	Show(id string)
	Hide(id string)
	// Frame returns the modal's browsing context once it has been loaded.
	Frame(id string) (transport.Window, bool)
	Toast(id, message string, isError bool)
}

// MessageFunc receives free-form messages from the modal.
type MessageFunc func(data json.RawMessage, c Controls)

// HostConfig describes a modal owned by a host page.
type HostConfig struct {
	ID       string
	Route    string
	Variant  envelope.Variant
	TitleBar TitleBar
	// SharedState is delivered to the modal once, when it asks for it.
	SharedState any
	Handlers    Handlers

	OnMessage         MessageFunc
	OnPrimaryAction   func()
	OnSecondaryAction func()
	OnShow            func()
	OnHide            func()
	// OnTitleBarChange fires after every local title bar change.
	OnTitleBarChange func(envelope.TitleBarState)
}

// Controls lets a message handler close the modal or reply to it.
type Controls struct {
	host *Host
}

// Close hides the modal.
func (c Controls) Close() { c.host.Close() }

// Reply sends data back to the modal.
func (c Controls) Reply(data any) error { return c.host.Reply(data) }

// Host is the parent side of a modal channel. It creates the channel when
// constructed, hands one port to the modal on the first show, and keeps the
// title bar state the modal mirrors.
type Host struct {
	endpoint

	local    transport.Context
	platform Platform
	cfg      HostConfig
	handlers Handlers
	shared   json.RawMessage

	// titleMu orders title bar merges with their broadcasts so the modal
	// always ends on the latest state. OnTitleBarChange runs under it and
	// must not update the title bar itself.
	titleMu sync.Mutex

	mu        sync.Mutex
	port      transport.Port
	remote    transport.Port
	posted    bool
	unmounted bool
	titleBar  envelope.TitleBarState
	unmount   func()
}

// NewHost mounts a modal on platform and opens its channel in local.
func NewHost(local transport.Context, platform Platform, cfg HostConfig, opts ...Option) (*Host, error) {
	o := applyOptions(opts)

	if cfg.Variant == "" {
		cfg.Variant = envelope.VariantBase
	}
	if !cfg.Variant.Valid() {
		return nil, fmt.Errorf("new host: unknown variant %q", cfg.Variant)
	}
	if cfg.Route == "" {
		return nil, fmt.Errorf("new host: route is required")
	}

	shared := json.RawMessage("{}")
	if cfg.SharedState != nil {
		b, err := json.Marshal(cfg.SharedState)
		if err != nil {
			return nil, fmt.Errorf("new host: encode shared state: %w", err)
		}
		shared = b
	}

	id := modalid.NewMount(o.alloc).Resolve(cfg.ID, cfg.Route).String()

	port, remote, err := local.NewChannel()
	if err != nil {
		return nil, fmt.Errorf("new host %s: %w", id, err)
	}

	h := &Host{
		endpoint: newEndpoint(id, events.SideHost, o),
		local:    local,
		platform: platform,
		cfg:      cfg,
		shared:   shared,
		port:     port,
		remote:   remote,
		titleBar: cfg.TitleBar.state(cfg.Variant),
	}
	h.handlers = merge(h.defaultHandlers(), cfg.Handlers)

	port.SetHandler(h.receive)
	port.Start()

	h.unmount = platform.Mount(id, cfg.Variant, Hooks{OnShow: h.onShow, OnHide: h.onHide})
	h.emit(events.ModalMounted, "", string(cfg.Variant))
	return h, nil
}

// ID returns the resolved modal id.
func (h *Host) ID() string { return h.id }

// Variant returns the fixed variant of the modal.
func (h *Host) Variant() envelope.Variant { return h.cfg.Variant }

// Open asks the platform to show the modal.
func (h *Host) Open() {
	h.platform.Show(h.id)
}

// Close asks the platform to hide the modal.
func (h *Host) Close() {
	h.platform.Hide(h.id)
}

// TitleBar returns a copy of the current title bar state.
func (h *Host) TitleBar() envelope.TitleBarState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.titleBar.Clone()
}

// Connected reports whether the port has been handed to the modal.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.posted && !h.unmounted
}

// SendMessage posts p to the modal. Before the port has been handed over, or
// after unmount, the message is dropped with a warning.
func (h *Host) SendMessage(p envelope.Payload) error {
	b, err := h.encode(p)
	if err != nil {
		return err
	}

	h.mu.Lock()
	live := h.posted && !h.unmounted
	port := h.port
	h.mu.Unlock()

	if !live {
		h.logger.Warn("no live channel, dropping message", zap.String("kind", string(p.Kind())))
		h.emit(events.ModalDropped, p.Kind(), "no channel")
		return nil
	}
	if err := port.PostMessage(b); err != nil {
		h.logger.Warn("failed to post message", zap.String("kind", string(p.Kind())), zap.Error(err))
		h.emit(events.ModalDropped, p.Kind(), err.Error())
		return nil
	}
	h.emit(events.ModalSent, p.Kind(), "")
	return nil
}

// Reply sends a free-form message to the modal.
func (h *Host) Reply(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return h.SendMessage(envelope.MessageFromParent{Data: b})
}

// TriggerAction forwards a click on a host-rendered title bar button to the modal.
func (h *Host) TriggerAction(action envelope.Action) error {
	return h.SendMessage(envelope.TitleBarAction{Action: action})
}

// UpdateTitleBar merges u into the title bar, then sends the full result to
// the modal. Invalid button slots are logged and left unchanged.
func (h *Host) UpdateTitleBar(u TitleBarUpdate) envelope.TitleBarState {
	h.titleMu.Lock()
	defer h.titleMu.Unlock()

	h.mu.Lock()
	next, errs := MergeTitleBar(h.titleBar, u)
	h.titleBar = next
	h.mu.Unlock()

	for _, err := range errs {
		h.logger.Error("invalid title bar update", zap.Error(err))
	}
	h.publishTitleBar(next, true)
	return next.Clone()
}

func (h *Host) setTitleBar(s envelope.TitleBarState, broadcast bool) envelope.TitleBarState {
	if h.cfg.Variant == envelope.VariantMax && s.Variant != envelope.VariantMax {
		h.logger.Warn("received title bar state for a non-max modal on a max modal; " +
			"the platform limits customization of max modals so the change may not be visible",
			zap.String("variant", string(s.Variant)))
	}

	next := s.Clone()
	next.Variant = h.cfg.Variant

	h.titleMu.Lock()
	defer h.titleMu.Unlock()

	h.mu.Lock()
	h.titleBar = next
	h.mu.Unlock()

	h.publishTitleBar(next, broadcast)
	return next.Clone()
}

func (h *Host) publishTitleBar(state envelope.TitleBarState, broadcast bool) {
	h.emit(events.ModalTitleBar, envelope.KindTitleBarState, state.Title)
	if h.cfg.OnTitleBarChange != nil {
		h.guard("OnTitleBarChange", func() { h.cfg.OnTitleBarChange(state.Clone()) })
	}
	if broadcast && h.Connected() {
		_ = h.SendMessage(state)
	}
}

// Unmount closes the channel and removes the modal from the platform.
// It is safe to call more than once.
func (h *Host) Unmount() {
	h.mu.Lock()
	if h.unmounted {
		h.mu.Unlock()
		return
	}
	h.unmounted = true
	port, remote, posted, unmount := h.port, h.remote, h.posted, h.unmount
	h.mu.Unlock()

	port.SetHandler(nil)
	_ = port.Close()
	if !posted {
		_ = remote.Close()
	}
	if unmount != nil {
		unmount()
	}
	h.emit(events.ModalUnmounted, "", "")
}

// onShow hands the port to the modal the first time it is shown. The
// platform calls it after the frame is attached, so the modal's listener is
// already in place.
func (h *Host) onShow() {
	h.mu.Lock()
	shouldPost := !h.posted && !h.unmounted
	remote := h.remote
	h.mu.Unlock()

	if shouldPost {
		h.postPort(remote)
	}
	h.emit(events.ModalShown, "", "")
	h.guard("OnShow", h.cfg.OnShow)
}

func (h *Host) postPort(remote transport.Port) {
	frame, ok := h.platform.Frame(h.id)
	if !ok {
		h.logger.Warn("modal frame not found, channel not established")
		return
	}
	err := frame.PostMessage(transport.Message{
		Data:   envelope.EncodeHandshake(h.id),
		Ports:  []transport.Port{remote},
		Origin: h.local.Name(),
	})
	if err != nil {
		h.logger.Warn("failed to hand channel to modal", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.posted = true
	h.mu.Unlock()
	h.emit(events.ModalHandshake, "", frame.Name())
}

func (h *Host) onHide() {
	h.emit(events.ModalHidden, "", "")
	h.guard("OnHide", h.cfg.OnHide)
}

func (h *Host) receive(data []byte) {
	env, ok := h.decode(data)
	if !ok {
		return
	}
	h.dispatch(h.handlers, env)
}

func (h *Host) defaultHandlers() Handlers {
	return Handlers{
		envelope.KindClose: On(func(p envelope.Close) {
			h.Close()
			if p.Message == "" {
				return
			}
			if p.Error {
				h.logger.Error("modal closed with error", zap.String("message", p.Message))
			} else {
				h.logger.Info("modal closed", zap.String("message", p.Message))
			}
		}),
		envelope.KindToast: On(func(p envelope.Toast) {
			h.platform.Toast(h.id, p.Message, p.Error)
		}),
		envelope.KindTitleBarAction: On(func(p envelope.TitleBarAction) {
			switch p.Action {
			case envelope.ActionPrimary:
				h.guard("OnPrimaryAction", h.cfg.OnPrimaryAction)
			case envelope.ActionSecondary:
				h.guard("OnSecondaryAction", h.cfg.OnSecondaryAction)
			default:
				h.logger.Warn("unknown title bar action", zap.String("action", string(p.Action)))
			}
		}),
		envelope.KindRequestParentState: On(func(envelope.RequestParentState) {
			_ = h.SendMessage(envelope.SendParentState{
				SharedState:   h.shared,
				TitleBarState: h.TitleBar(),
			})
		}),
		envelope.KindMessageFromPortal: On(func(p envelope.MessageFromPortal) {
			if h.cfg.OnMessage == nil {
				h.logger.Error("received message from modal but no message handler is registered")
				return
			}
			h.cfg.OnMessage(p.Data, Controls{host: h})
		}),
		envelope.KindTitleBarState: On(func(p envelope.TitleBarState) {
			h.setTitleBar(p, false)
		}),
	}
}
