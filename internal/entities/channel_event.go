package entities

import (
	"encoding/json"
	"time"

	"github.com/aarondl/null/v8"
)

// ChannelEvent is one published event as kept in the event log.
type ChannelEvent struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Seq       int64           `json:"seq"`
	Data      json.RawMessage `json:"data"`
	ActorID   null.String     `json:"actorId"`
	CreatedAt time.Time       `json:"createdAt"`
}
