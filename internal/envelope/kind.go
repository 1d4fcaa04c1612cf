// Package envelope defines the typed messages exchanged between a host page
// and its modal, and their wire encoding.
package envelope

// Kind names a message type on the wire.
type Kind string

// Message kinds understood by both sides of a modal channel.
const (
	KindClose              Kind = "close"
	KindToast              Kind = "toast"
	KindReloadParent       Kind = "reloadParent"
	KindTitleBarAction     Kind = "titleBarAction"
	KindTitleBarState      Kind = "titleBarState"
	KindRequestParentState Kind = "requestParentState"
	KindSendParentState    Kind = "sendParentState"
	KindMessageFromPortal  Kind = "messageFromPortal"
	KindMessageFromParent  Kind = "messageFromParent"
)

// HandshakeType marks the window message that carries a channel port to the modal.
const HandshakeType = "__MODAL_CHANNEL_INIT__"

// Variant is the size mode of a modal. It cannot change after mount.
type Variant string

// Modal variants.
const (
	VariantSmall Variant = "small"
	VariantBase  Variant = "base"
	VariantLarge Variant = "large"
	VariantMax   Variant = "max"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantSmall, VariantBase, VariantLarge, VariantMax:
		return true
	}
	return false
}

// ParseVariant converts s to a Variant, falling back to VariantBase.
func ParseVariant(s string) (Variant, bool) {
	v := Variant(s)
	if !v.Valid() {
		return VariantBase, false
	}
	return v, true
}

// Action identifies a title bar button.
type Action string

// Title bar actions.
const (
	ActionPrimary   Action = "primary"
	ActionSecondary Action = "secondary"
)
