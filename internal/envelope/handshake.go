package envelope

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Handshake is the window message that accompanies a transferred port.
type Handshake struct {
	Type    string `json:"type"`
	ModalID string `json:"modalId"`
}

// EncodeHandshake builds the handshake marker for sessionID.
func EncodeHandshake(sessionID string) []byte {
	b, _ := json.Marshal(Handshake{Type: HandshakeType, ModalID: sessionID})
	return b
}

// MatchHandshake reports whether b is a handshake marker addressed to sessionID.
func MatchHandshake(b []byte, sessionID string) bool {
	if !gjson.ValidBytes(b) {
		return false
	}
	res := gjson.GetManyBytes(b, "type", "modalId")
	return res[0].String() == HandshakeType && res[1].String() == sessionID
}
