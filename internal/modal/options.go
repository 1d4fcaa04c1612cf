// Package modal implements both ends of the host/modal messaging channel:
// the handshake that hands a port to the modal, typed dispatch of inbound
// envelopes, and the title bar state the host mirrors into its modal.
package modal

import (
	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/modalid"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// Option configures a Host or Guest.
type Option func(*options)

type options struct {
	logger *zap.Logger
	codec  *envelope.Codec
	alloc  modalid.Allocator
	events pubsub.Publisher[events.ModalEvent]
}

func defaultOptions() options {
	return options{
		logger: zap.L(),
		codec:  envelope.DefaultCodec(),
		alloc:  modalid.UUIDAllocator{},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCodec replaces the envelope codec, e.g. one extended with custom kinds.
func WithCodec(codec *envelope.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithAllocator sets the allocator used to resolve the auto id.
func WithAllocator(alloc modalid.Allocator) Option {
	return func(o *options) {
		if alloc != nil {
			o.alloc = alloc
		}
	}
}

// WithEvents publishes lifecycle events to p.
func WithEvents(p pubsub.Publisher[events.ModalEvent]) Option {
	return func(o *options) {
		o.events = p
	}
}
