package events

import "portal-realtime/internal/entities"

const (
	EventPublishedName = "relay.event.published"
	EventDeliveredName = "relay.event.delivered"
)

// EventPublished fires on the node that accepted a publish request.
type EventPublished struct {
	Event entities.ChannelEvent
}

func (e EventPublished) Name() string { return EventPublishedName }

// EventDelivered fires on every node when the broker hands it an event.
type EventDelivered struct {
	Event entities.ChannelEvent
}

func (e EventDelivered) Name() string { return EventDeliveredName }
