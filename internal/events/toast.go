package events

import "time"

// ToastEvent is a notification raised through the application shell.
type ToastEvent struct {
	SessionID string
	Message   string
	IsError   bool
	Timestamp time.Time
}

// NewToastEvent creates a toast event.
func NewToastEvent(sessionID, message string, isError bool) ToastEvent {
	return ToastEvent{
		SessionID: sessionID,
		Message:   message,
		IsError:   isError,
		Timestamp: time.Now(),
	}
}
