package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnknownKind is returned when a message names a kind the codec does not know.
	ErrUnknownKind = errors.New("unknown envelope kind")
	// ErrMalformed is returned for frames that are not envelopes.
	ErrMalformed = errors.New("malformed envelope")
)

// Envelope wraps a payload with its kind and the modal session id.
type Envelope struct {
	Kind      Kind
	SessionID string
	Data      Payload
}

// New builds an envelope for payload p.
func New(sessionID string, p Payload) Envelope {
	return Envelope{Kind: p.Kind(), SessionID: sessionID, Data: p}
}

type wire struct {
	Type    Kind            `json:"type"`
	ModalID string          `json:"modalId,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Factory returns a pointer to a zero payload to decode into.
type Factory func() Payload

// Codec encodes and decodes envelopes for a closed set of kinds.
// It is immutable; With returns an extended copy.
type Codec struct {
	kinds map[Kind]Factory
}

// DefaultCodec knows every built-in kind.
func DefaultCodec() *Codec {
	return &Codec{kinds: map[Kind]Factory{
		KindClose:              func() Payload { return &Close{} },
		KindToast:              func() Payload { return &Toast{} },
		KindReloadParent:       func() Payload { return &ReloadParent{} },
		KindTitleBarAction:     func() Payload { return &TitleBarAction{} },
		KindTitleBarState:      func() Payload { return &TitleBarState{} },
		KindRequestParentState: func() Payload { return &RequestParentState{} },
		KindSendParentState:    func() Payload { return &SendParentState{} },
		KindMessageFromPortal:  func() Payload { return &MessageFromPortal{} },
		KindMessageFromParent:  func() Payload { return &MessageFromParent{} },
	}}
}

// With returns a codec that also accepts kind, decoding it with f.
// Registering a built-in kind replaces its payload type.
func (c *Codec) With(kind Kind, f Factory) *Codec {
	kinds := make(map[Kind]Factory, len(c.kinds)+1)
	for k, v := range c.kinds {
		kinds[k] = v
	}
	kinds[kind] = f
	return &Codec{kinds: kinds}
}

// Knows reports whether kind is registered.
func (c *Codec) Knows(kind Kind) bool {
	_, ok := c.kinds[kind]
	return ok
}

// Encode serializes env to its wire form.
func (c *Codec) Encode(env Envelope) ([]byte, error) {
	if env.Data == nil {
		return nil, fmt.Errorf("encode %q: %w: nil payload", env.Kind, ErrMalformed)
	}
	kind := env.Kind
	if kind == "" {
		kind = env.Data.Kind()
	}
	if !c.Knows(kind) {
		return nil, fmt.Errorf("encode %q: %w", kind, ErrUnknownKind)
	}
	data, err := json.Marshal(env.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", kind, err)
	}
	return json.Marshal(wire{Type: kind, ModalID: env.SessionID, Data: data})
}

// Decode parses a wire frame. For unknown kinds it returns an envelope with
// Kind and SessionID set, nil Data, and ErrUnknownKind.
func (c *Codec) Decode(b []byte) (Envelope, error) {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	env := Envelope{Kind: w.Type, SessionID: w.ModalID}
	factory, ok := c.kinds[w.Type]
	if !ok {
		return env, fmt.Errorf("decode %q: %w", w.Type, ErrUnknownKind)
	}

	p := factory()
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, p); err != nil {
			return env, fmt.Errorf("decode %q: %w: %v", w.Type, ErrMalformed, err)
		}
	}
	env.Data = deref(p)
	return env, nil
}

// deref turns the built-in pointer payloads into values so handlers can
// type-switch on plain structs.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Close:
		return *v
	case *Toast:
		return *v
	case *ReloadParent:
		return *v
	case *TitleBarAction:
		return *v
	case *TitleBarState:
		return *v
	case *RequestParentState:
		return *v
	case *SendParentState:
		return *v
	case *MessageFromPortal:
		return *v
	case *MessageFromParent:
		return *v
	}
	return p
}

// Peek reads the kind and session id of a frame without decoding the payload.
func Peek(b []byte) (kind Kind, sessionID string, ok bool) {
	if !gjson.ValidBytes(b) {
		return "", "", false
	}
	res := gjson.GetManyBytes(b, "type", "modalId")
	if res[0].Type != gjson.String {
		return "", "", false
	}
	return Kind(res[0].String()), res[1].String(), true
}
