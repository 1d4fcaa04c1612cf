package envelope

import "encoding/json"

// Payload is implemented by every message body. The set of payloads a
// Codec accepts is fixed at construction.
type Payload interface {
	Kind() Kind
}

// Button is a title bar action button.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Close asks the host to hide the modal.
type Close struct {
	Error   bool   `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Toast asks the host to show a toast notification.
type Toast struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// ReloadParent asks the host page to reload its data.
type ReloadParent struct {
	CloseAfterReload bool `json:"closeAfterReload"`
}

// TitleBarAction reports a click on a title bar button.
type TitleBarAction struct {
	Action Action `json:"action"`
}

// TitleBarState is the full title bar descriptor owned by the host.
type TitleBarState struct {
	Variant         Variant `json:"variant"`
	Title           string  `json:"title"`
	PrimaryButton   *Button `json:"primaryButton,omitempty"`
	SecondaryButton *Button `json:"secondaryButton,omitempty"`
}

// Clone returns a deep copy of s.
func (s TitleBarState) Clone() TitleBarState {
	out := s
	if s.PrimaryButton != nil {
		b := *s.PrimaryButton
		out.PrimaryButton = &b
	}
	if s.SecondaryButton != nil {
		b := *s.SecondaryButton
		out.SecondaryButton = &b
	}
	return out
}

// RequestParentState is sent by the modal once its port is started.
type RequestParentState struct{}

// SendParentState answers RequestParentState with the host's initial snapshot.
type SendParentState struct {
	SharedState   json.RawMessage `json:"sharedState"`
	TitleBarState TitleBarState   `json:"titleBarState"`
}

// MessageFromPortal carries a free-form payload from the modal to the host.
type MessageFromPortal struct {
	Data json.RawMessage
}

// MessageFromParent carries a free-form reply from the host to the modal.
type MessageFromParent struct {
	Data json.RawMessage
}

// Kind implementations.

func (Close) Kind() Kind              { return KindClose }
func (Toast) Kind() Kind              { return KindToast }
func (ReloadParent) Kind() Kind       { return KindReloadParent }
func (TitleBarAction) Kind() Kind     { return KindTitleBarAction }
func (TitleBarState) Kind() Kind      { return KindTitleBarState }
func (RequestParentState) Kind() Kind { return KindRequestParentState }
func (SendParentState) Kind() Kind    { return KindSendParentState }
func (MessageFromPortal) Kind() Kind  { return KindMessageFromPortal }
func (MessageFromParent) Kind() Kind  { return KindMessageFromParent }

// MarshalJSON encodes the free-form data as the payload itself.
func (m MessageFromPortal) MarshalJSON() ([]byte, error) {
	return rawOrNull(m.Data), nil
}

// UnmarshalJSON stores the payload verbatim.
func (m *MessageFromPortal) UnmarshalJSON(b []byte) error {
	m.Data = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON encodes the free-form data as the payload itself.
func (m MessageFromParent) MarshalJSON() ([]byte, error) {
	return rawOrNull(m.Data), nil
}

// UnmarshalJSON stores the payload verbatim.
func (m *MessageFromParent) UnmarshalJSON(b []byte) error {
	m.Data = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes null shared state as an empty object.
func (s SendParentState) MarshalJSON() ([]byte, error) {
	type alias SendParentState
	a := alias(s)
	if len(a.SharedState) == 0 {
		a.SharedState = json.RawMessage("{}")
	}
	return json.Marshal(a)
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
