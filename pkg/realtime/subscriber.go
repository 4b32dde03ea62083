// Package realtime is the client side of the relay: a subscription manager
// that ref-counts channels over one shared connection, and an in-process
// relay with the same surface.
package realtime

import "encoding/json"

// Handler receives the payload of one event. Handlers bound to the same
// channel run one at a time, in the order events arrived.
type Handler func(payload json.RawMessage)

// Token identifies one binding. The zero Token is never issued.
type Token struct {
	id string
}

func (t Token) IsZero() bool { return t.id == "" }

// Subscriber is what views depend on to listen to named events on channels.
type Subscriber interface {
	Subscribe(channel, event string, h Handler) (Token, error)
	// Cancel releases a binding. Once it returns the handler is not started
	// again. Unknown or already cancelled tokens are ignored.
	Cancel(t Token)
}
