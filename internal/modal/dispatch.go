package modal

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// Handler reacts to an inbound envelope.
type Handler func(env envelope.Envelope)

// Handlers maps kinds to reactions. Entries replace the built-in reaction
// for the same kind.
type Handlers map[envelope.Kind]Handler

// On adapts a typed function to a Handler. Envelopes whose payload is not a
// P are ignored.
func On[P envelope.Payload](fn func(P)) Handler {
	return func(env envelope.Envelope) {
		if p, ok := env.Data.(P); ok {
			fn(p)
		}
	}
}

func merge(defaults, overrides Handlers) Handlers {
	out := make(Handlers, len(defaults)+len(overrides))
	for k, h := range defaults {
		out[k] = h
	}
	for k, h := range overrides {
		if h != nil {
			out[k] = h
		}
	}
	return out
}

// endpoint is the state shared by host and guest: identity, codec, logging
// and event publication.
type endpoint struct {
	id     string
	side   events.Side
	codec  *envelope.Codec
	logger *zap.Logger
	events pubsub.Publisher[events.ModalEvent]
}

func newEndpoint(id string, side events.Side, o options) endpoint {
	return endpoint{
		id:     id,
		side:   side,
		codec:  o.codec,
		logger: o.logger.With(zap.String("modal_id", id), zap.String("side", string(side))),
		events: o.events,
	}
}

func (e *endpoint) emit(typ events.ModalEventType, kind envelope.Kind, detail string) {
	if e.events == nil {
		return
	}
	e.events.Publish(pubsub.EventModal, events.NewModalMessageEvent(e.id, e.side, typ, string(kind), detail))
}

// decode parses an inbound frame, logging and reporting frames that cannot
// be dispatched.
func (e *endpoint) decode(data []byte) (envelope.Envelope, bool) {
	env, err := e.codec.Decode(data)
	switch {
	case errors.Is(err, envelope.ErrUnknownKind):
		e.logger.Warn("received message of unknown kind",
			zap.String("kind", string(env.Kind)), zap.String("message_modal_id", env.SessionID))
		e.emit(events.ModalDropped, env.Kind, "unknown kind")
		return env, false
	case err != nil:
		e.logger.Warn("received malformed message", zap.Error(err))
		e.emit(events.ModalDropped, "", "malformed")
		return env, false
	}
	if env.SessionID != "" && env.SessionID != e.id {
		e.logger.Warn("received message for another modal",
			zap.String("kind", string(env.Kind)), zap.String("message_modal_id", env.SessionID))
		e.emit(events.ModalDropped, env.Kind, "session mismatch")
		return env, false
	}
	e.emit(events.ModalReceived, env.Kind, "")
	return env, true
}

func (e *endpoint) dispatch(handlers Handlers, env envelope.Envelope) {
	h, ok := handlers[env.Kind]
	if !ok {
		e.logger.Debug("no handler registered", zap.String("kind", string(env.Kind)))
		return
	}
	e.guard(fmt.Sprintf("%s handler", env.Kind), func() { h(env) })
}

// guard runs a caller callback, logging a panic instead of letting it
// escape into the transport's event loop.
func (e *endpoint) guard(what string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panicked", zap.String("callback", what), zap.Any("panic", r))
		}
	}()
	fn()
}

func (e *endpoint) encode(p envelope.Payload) ([]byte, error) {
	b, err := e.codec.Encode(envelope.New(e.id, p))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Kind(), err)
	}
	return b, nil
}
