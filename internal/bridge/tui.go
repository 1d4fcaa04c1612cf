package bridge

import (
	"context"
	"sync"

	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// Sender receives Bubble Tea messages. *tea.Program satisfies it.
type Sender interface {
	Send(tea.Msg)
}

// TUIBridge subscribes to the hub brokers and forwards events to a program.
type TUIBridge struct { //nolint:govet // fieldalignment: preserving logical field order
	hub     *pubsub.Hub
	program Sender
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.RWMutex
	modalFilter  string
	stoppedNoted sync.Once
}

// TUIBridgeOption configures the TUIBridge.
type TUIBridgeOption func(*TUIBridge)

// WithModalFilter only forwards events for the given modal id.
func WithModalFilter(modalID string) TUIBridgeOption {
	return func(b *TUIBridge) {
		b.modalFilter = modalID
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger *zap.Logger) TUIBridgeOption {
	return func(b *TUIBridge) {
		b.logger = logger
	}
}

// NewTUIBridge creates a new TUI bridge.
func NewTUIBridge(hub *pubsub.Hub, program Sender, opts ...TUIBridgeOption) *TUIBridge {
	b := &TUIBridge{
		hub:     hub,
		program: program,
		logger:  zap.L(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start begins forwarding events. Call Stop to shut down.
func (b *TUIBridge) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)

	modalEvents := b.hub.Modal.Subscribe(b.ctx)
	toastEvents := b.hub.Toast.Subscribe(b.ctx)

	b.wg.Add(2)
	go forward(b, modalEvents, func(e pubsub.Event[events.ModalEvent]) (string, tea.Msg) {
		return e.Payload.SessionID, ModalEventMsg{Event: e}
	})
	go forward(b, toastEvents, func(e pubsub.Event[events.ToastEvent]) (string, tea.Msg) {
		return e.Payload.SessionID, ToastEventMsg{Event: e}
	})

	b.logger.Debug("tui bridge started")
}

// Stop shuts the bridge down and waits for its goroutines.
func (b *TUIBridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.logger.Debug("tui bridge stopped")
}

// SetModalFilter updates the modal filter at runtime.
func (b *TUIBridge) SetModalFilter(modalID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modalFilter = modalID
}

// ClearModalFilter removes the modal filter.
func (b *TUIBridge) ClearModalFilter() {
	b.SetModalFilter("")
}

func (b *TUIBridge) accepts(modalID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.modalFilter == "" || b.modalFilter == modalID
}

func forward[T any](b *TUIBridge, ch <-chan pubsub.Event[T], wrap func(pubsub.Event[T]) (string, tea.Msg)) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				if b.ctx.Err() == nil {
					b.stoppedNoted.Do(func() { b.program.Send(StoppedMsg{}) })
				}
				return
			}
			id, msg := wrap(event)
			if !b.accepts(id) {
				continue
			}
			b.program.Send(msg)
		}
	}
}
