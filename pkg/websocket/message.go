package websocket

import "encoding/json"

// Frame types exchanged over the relay socket.
const (
	FrameSubscribe             = "subscribe"
	FrameUnsubscribe           = "unsubscribe"
	FrameSubscriptionSucceeded = "subscription_succeeded"
	FrameSubscriptionError     = "subscription_error"
	FrameEvent                 = "event"
	FrameError                 = "error"
)

// Frame is the single envelope for both directions. Since is only set on
// subscribe frames and asks the relay to replay events with a greater seq.
type Frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Since   int64           `json:"since,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
