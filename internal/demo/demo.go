// Package demo wires a host page, the application shell and the products
// modal into one runnable session for the CLI and TUI.
package demo

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/appbridge"
	"github.com/sadsciencee/modalkit/internal/config"
	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/modal"
	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
	"github.com/sadsciencee/modalkit/internal/transport/memory"
	"github.com/sadsciencee/modalkit/internal/transport/wsrelay"
)

// HostContextName names the host page's browsing context.
const HostContextName = "host"

// Options configures a Demo.
type Options struct {
	Config config.DemoConfig
	Logger *zap.Logger
	Hub    *pubsub.Hub
	// Relay, when set, is the host's relay connection and the modal is
	// expected to run in another process. Otherwise it runs in-process.
	Relay *wsrelay.Client
}

// Demo is a host page with one modal.
type Demo struct {
	cfg     config.DemoConfig
	variant envelope.Variant
	logger  *zap.Logger
	hub     *pubsub.Hub

	env   *memory.Environment
	local transport.Context
	shell *appbridge.Shell

	mu     sync.Mutex
	host   *modal.Host
	mounts  int
	saved   int
	reloads int
}

// New builds the demo and mounts its modal.
func New(opts Options) (*Demo, error) {
	variant, ok := envelope.ParseVariant(opts.Config.Variant)
	if !ok {
		return nil, fmt.Errorf("demo: unknown variant %q", opts.Config.Variant)
	}
	if opts.Relay != nil && modalid.IsAuto(opts.Config.ID) {
		return nil, fmt.Errorf("demo: modal id %q cannot be shared with a guest process", opts.Config.ID)
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.Hub == nil {
		opts.Hub = pubsub.NewHub()
	}

	d := &Demo{
		cfg:     opts.Config,
		variant: variant,
		logger:  opts.Logger,
		hub:     opts.Hub,
	}

	var loader appbridge.FrameLoader
	if opts.Relay != nil {
		d.local = opts.Relay
		loader = appbridge.RemoteFrames(opts.Relay)
	} else {
		d.env = memory.NewEnvironment(memory.WithLogger(opts.Logger), memory.WithRegistry(opts.Hub.Registry()))
		local, err := d.env.NewContext(HostContextName)
		if err != nil {
			d.env.Close()
			return nil, fmt.Errorf("demo: %w", err)
		}
		d.local = local
		loader = appbridge.LocalFrames(d.env, map[string]appbridge.Page{
			opts.Config.Route: ProductsPage(opts.Config.Route, opts.Logger, modal.WithEvents(opts.Hub.ModalPublisher())),
		})
	}
	d.shell = appbridge.New(loader, appbridge.WithLogger(opts.Logger), appbridge.WithToasts(opts.Hub.Toast))

	if err := d.mount(); err != nil {
		d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Demo) mount() error {
	host, err := modal.NewHost(d.local, d.shell, modal.HostConfig{
		ID:      d.cfg.ID,
		Route:   d.cfg.Route,
		Variant: d.variant,
		TitleBar: modal.TitleBar{
			Title:           d.cfg.Title,
			PrimaryButton:   &envelope.Button{Label: "Save"},
			SecondaryButton: &envelope.Button{Label: "Cancel"},
		},
		SharedState: DefaultSharedState(),
		OnMessage:   d.onMessage,
		Handlers: modal.Handlers{
			envelope.KindReloadParent: modal.On(d.onReload),
		},
	}, modal.WithLogger(d.logger), modal.WithEvents(d.hub.ModalPublisher()))
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}

	d.mu.Lock()
	d.host = host
	d.mounts++
	d.mu.Unlock()
	return nil
}

func (d *Demo) onMessage(data json.RawMessage, c modal.Controls) {
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil || sel.Action != ActionSave {
		d.logger.Warn("demo host ignored modal message", zap.ByteString("data", data))
		return
	}

	d.mu.Lock()
	d.saved += len(sel.ProductIDs)
	d.mu.Unlock()

	if err := c.Reply(SaveResult{Saved: len(sel.ProductIDs)}); err != nil {
		d.logger.Warn("demo host failed to reply", zap.Error(err))
	}
}

// onReload refreshes the page's data after the modal changed it.
func (d *Demo) onReload(p envelope.ReloadParent) {
	d.mu.Lock()
	d.reloads++
	n := d.reloads
	d.mu.Unlock()

	d.logger.Info("host page reloaded", zap.Int("reloads", n), zap.Bool("close_after_reload", p.CloseAfterReload))
	if p.CloseAfterReload {
		d.current().Close()
	}
}

func (d *Demo) current() *modal.Host {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.host
}

// ID returns the modal id.
func (d *Demo) ID() string { return d.current().ID() }

// Variant returns the modal variant.
func (d *Demo) Variant() envelope.Variant { return d.variant }

// Remote reports whether the modal runs in another process.
func (d *Demo) Remote() bool { return d.env == nil }

// Open shows the modal.
func (d *Demo) Open() { d.current().Open() }

// Close hides the modal.
func (d *Demo) Close() { d.current().Close() }

// Visible reports whether the shell shows the modal.
func (d *Demo) Visible() bool { return d.shell.Visible(d.ID()) }

// Connected reports whether the host handed its port to the modal.
func (d *Demo) Connected() bool { return d.current().Connected() }

// TitleBar returns the host's title bar.
func (d *Demo) TitleBar() envelope.TitleBarState { return d.current().TitleBar() }

// TriggerAction clicks a host-rendered title bar button.
func (d *Demo) TriggerAction(action envelope.Action) error {
	return d.current().TriggerAction(action)
}

// TogglePrimaryDisabled flips the primary button's disabled state.
func (d *Demo) TogglePrimaryDisabled() envelope.TitleBarState {
	h := d.current()
	disabled := false
	if b := h.TitleBar().PrimaryButton; b != nil {
		disabled = b.Disabled
	}
	return h.UpdateTitleBar(modal.TitleBarUpdate{PrimaryButton: modal.SetDisabled(!disabled)})
}

// Remount unmounts the host and mounts a fresh one against the same frame.
func (d *Demo) Remount() error {
	d.current().Unmount()
	return d.mount()
}

// Mounts reports how many times the host has been mounted.
func (d *Demo) Mounts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounts
}

// Saved reports how many products the modal has saved.
func (d *Demo) Saved() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved
}

// Reloads reports how many times the modal asked the page to reload.
func (d *Demo) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// Frames lists the modals known to the shell.
func (d *Demo) Frames() []appbridge.ModalInfo { return d.shell.Modals() }

// Shutdown unmounts the host and unloads every frame. Broker state is
// logged at debug level first, while the window buses are still registered.
func (d *Demo) Shutdown() {
	if d.logger.Core().Enabled(zap.DebugLevel) {
		d.logger.Debug("broker state",
			zap.Strings("brokers", d.hub.Registry().List()),
			zap.String("detail", d.hub.DebugString()))
	}
	if h := d.current(); h != nil {
		h.Unmount()
	}
	d.shell.Close()
	if d.env != nil {
		d.env.Close()
	}
}
