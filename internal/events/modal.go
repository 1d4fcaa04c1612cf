// Package events defines the events published by modal sessions and the shell.
package events

import "time"

// Side identifies which end of a modal channel produced an event.
type Side string

// Channel sides.
const (
	SideHost  Side = "host"
	SideGuest Side = "guest"
)

// ModalEventType represents modal lifecycle event types.
type ModalEventType string

// Modal event type constants.
const (
	ModalMounted   ModalEventType = "mounted"
	ModalHandshake ModalEventType = "handshake"
	ModalShown     ModalEventType = "shown"
	ModalHidden    ModalEventType = "hidden"
	ModalReceived  ModalEventType = "received"
	ModalSent      ModalEventType = "sent"
	ModalDropped   ModalEventType = "dropped"
	ModalTitleBar  ModalEventType = "title_bar"
	ModalLoaded    ModalEventType = "loaded"
	ModalUnmounted ModalEventType = "unmounted"
)

// ModalEvent is published by host and guest sessions as the channel changes.
type ModalEvent struct {
	SessionID string
	Side      Side
	Type      ModalEventType
	Timestamp time.Time

	// Optional fields
	Kind   string // envelope kind for received/sent/dropped
	Detail string // free-form context, e.g. a title or drop reason
}

// NewModalEvent creates a modal event stamped with the current time.
func NewModalEvent(sessionID string, side Side, typ ModalEventType) ModalEvent {
	return ModalEvent{
		SessionID: sessionID,
		Side:      side,
		Type:      typ,
		Timestamp: time.Now(),
	}
}

// NewModalMessageEvent creates a received, sent or dropped event for an envelope kind.
func NewModalMessageEvent(sessionID string, side Side, typ ModalEventType, kind, detail string) ModalEvent {
	e := NewModalEvent(sessionID, side, typ)
	e.Kind = kind
	e.Detail = detail
	return e
}

// WithDetail returns a copy of e with Detail set.
func (e ModalEvent) WithDetail(detail string) ModalEvent {
	e.Detail = detail
	return e
}
