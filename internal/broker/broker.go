package broker

import (
	"context"

	"portal-realtime/internal/entities"
)

// Handler receives every event published through the broker, in publish order.
type Handler func(ctx context.Context, event entities.ChannelEvent)

// Broker carries published events to every relay node, including this one.
type Broker interface {
	Publish(ctx context.Context, event entities.ChannelEvent) error
	// Run delivers events to handler until ctx is done.
	Run(ctx context.Context, handler Handler) error
}
