// Package bridge provides the connection between the pub/sub system and Bubble Tea.
package bridge

import (
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
)

// ModalEventMsg wraps a modal lifecycle event for the TUI.
type ModalEventMsg struct {
	Event pubsub.Event[events.ModalEvent]
}

// ToastEventMsg wraps a toast for the TUI.
type ToastEventMsg struct {
	Event pubsub.Event[events.ToastEvent]
}

// StoppedMsg is sent once when the bridge stops forwarding because the hub
// shut down.
type StoppedMsg struct{}
