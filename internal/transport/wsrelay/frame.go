// Package wsrelay carries transport contexts across processes. A relay
// server accepts one websocket per browsing context and routes window
// messages and port traffic between them, following port transfers.
package wsrelay

// Op is a relay frame operation.
type Op string

// Frame operations. Clients send open, post, port and close; the server
// sends message, port and close.
const (
	// OpOpen registers a linked port pair owned by the sender.
	OpOpen Op = "open"
	// OpPost sends a window message to Target, transferring Ports.
	OpPost Op = "post"
	// OpMessage delivers a window message from Origin.
	OpMessage Op = "message"
	// OpPort carries data on a port.
	OpPort Op = "port"
	// OpClose disentangles a port.
	OpClose Op = "close"
)

// Frame is the JSON unit exchanged over a relay websocket.
type Frame struct {
	Op     Op       `json:"op"`
	Target string   `json:"target,omitempty"`
	Port   string   `json:"port,omitempty"`
	Ports  []string `json:"ports,omitempty"`
	Origin string   `json:"origin,omitempty"`
	Data   []byte   `json:"data,omitempty"`
}
