// Package appbridge simulates the application shell that hosts embedded
// pages: it mounts named modals, loads their frames on first show and
// raises toasts.
package appbridge

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/modal"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
)

// FrameLoader loads the browsing context a modal renders in.
type FrameLoader interface {
	// Load returns the modal's window and a func that unloads it.
	Load(id string) (transport.Window, func(), error)
}

// FrameLoaderFunc adapts a function to FrameLoader.
type FrameLoaderFunc func(id string) (transport.Window, func(), error)

// Load calls f.
func (f FrameLoaderFunc) Load(id string) (transport.Window, func(), error) { return f(id) }

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the shell logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Shell) {
		s.logger = logger
	}
}

// WithToasts publishes toasts to broker.
func WithToasts(broker pubsub.Publisher[events.ToastEvent]) Option {
	return func(s *Shell) {
		s.toasts = broker
	}
}

type mount struct {
	token   uint64
	variant envelope.Variant
	hooks   modal.Hooks
}

type entry struct {
	mount   *mount
	visible bool
	frame   transport.Window
	unload  func()
}

// ModalInfo describes a modal known to the shell.
type ModalInfo struct {
	ID      string
	Variant envelope.Variant
	Mounted bool
	Visible bool
	Loaded  bool
}

// Shell is an in-process application shell. Frames outlive the host mounts
// that show them, so a remounted host hands a new channel to the same frame.
type Shell struct {
	loader FrameLoader
	logger *zap.Logger
	toasts pubsub.Publisher[events.ToastEvent]

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry
}

var _ modal.Platform = (*Shell)(nil)

// New creates a shell that loads frames with loader.
func New(loader FrameLoader, opts ...Option) *Shell {
	s := &Shell{
		loader:  loader,
		logger:  zap.L(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount registers a modal. The returned func removes this registration; a
// later Mount of the same id replaces it.
func (s *Shell) Mount(id string, variant envelope.Variant, hooks modal.Hooks) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	m := &mount{token: s.seq, variant: variant, hooks: hooks}

	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	if e.mount != nil && e.mount.variant != variant {
		s.logger.Warn("modal remounted with a different variant; the platform keeps the first one",
			zap.String("modal_id", id), zap.String("variant", string(variant)))
	}
	e.mount = m

	var once sync.Once
	return func() {
		once.Do(func() { s.unmount(id, m.token) })
	}
}

func (s *Shell) unmount(id string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.mount == nil || e.mount.token != token {
		return
	}
	e.mount = nil
	e.visible = false
}

// Show loads the modal's frame if needed, marks it visible and fires OnShow.
func (s *Shell) Show(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.mount == nil {
		s.mu.Unlock()
		s.logger.Warn("show called for a modal that is not mounted", zap.String("modal_id", id))
		return
	}
	needsFrame := e.frame == nil
	s.mu.Unlock()

	if needsFrame {
		frame, unload, err := s.loader.Load(id)
		if err != nil {
			s.logger.Error("failed to load modal frame", zap.String("modal_id", id), zap.Error(err))
			return
		}
		s.mu.Lock()
		if e.frame == nil {
			e.frame, e.unload = frame, unload
		} else if unload != nil {
			defer unload()
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if e.mount == nil {
		s.mu.Unlock()
		return
	}
	e.visible = true
	onShow := e.mount.hooks.OnShow
	s.mu.Unlock()

	if onShow != nil {
		onShow()
	}
}

// Hide marks the modal hidden and fires OnHide. Hiding a hidden modal is a no-op.
func (s *Shell) Hide(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || !e.visible || e.mount == nil {
		s.mu.Unlock()
		return
	}
	e.visible = false
	onHide := e.mount.hooks.OnHide
	s.mu.Unlock()

	if onHide != nil {
		onHide()
	}
}

// Frame returns the modal's loaded window.
func (s *Shell) Frame(id string) (transport.Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.frame == nil {
		return nil, false
	}
	return e.frame, true
}

// Toast publishes a toast raised by modal id.
func (s *Shell) Toast(id, message string, isError bool) {
	if isError {
		s.logger.Warn("toast", zap.String("modal_id", id), zap.String("message", message))
	} else {
		s.logger.Info("toast", zap.String("modal_id", id), zap.String("message", message))
	}
	if s.toasts != nil {
		s.toasts.Publish(pubsub.EventToast, events.NewToastEvent(id, message, isError))
	}
}

// Visible reports whether the modal is shown.
func (s *Shell) Visible(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.visible
}

// Modals lists known modals sorted by id.
func (s *Shell) Modals() []ModalInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ModalInfo, 0, len(s.entries))
	for id, e := range s.entries {
		info := ModalInfo{ID: id, Visible: e.visible, Loaded: e.frame != nil}
		if e.mount != nil {
			info.Mounted = true
			info.Variant = e.mount.variant
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unload destroys the modal's frame. The next Show loads a fresh one.
func (s *Shell) Unload(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.frame == nil {
		s.mu.Unlock()
		return fmt.Errorf("unload %s: no frame loaded", id)
	}
	unload := e.unload
	e.frame, e.unload, e.visible = nil, nil, false
	if e.mount == nil {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if unload != nil {
		unload()
	}
	return nil
}

// Close unloads every frame.
func (s *Shell) Close() {
	s.mu.Lock()
	var unloads []func()
	for id, e := range s.entries {
		if e.unload != nil {
			unloads = append(unloads, e.unload)
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, unload := range unloads {
		unload()
	}
}
