package listeners

import (
	"context"

	"go.uber.org/zap"

	"portal-realtime/internal/events"
	"portal-realtime/pkg/eventbus"
	"portal-realtime/pkg/websocket"
)

type Broadcaster interface {
	Broadcast(frame websocket.Frame)
}

// DeliveryListener pushes broker deliveries into the local hub and keeps an
// audit line for every accepted publish.
type DeliveryListener struct {
	hub    Broadcaster
	logger *zap.Logger
}

func NewDeliveryListener(hub Broadcaster, logger *zap.Logger) *DeliveryListener {
	return &DeliveryListener{hub: hub, logger: logger}
}

func (l *DeliveryListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.EventDeliveredName, l.handleDelivered)
	bus.Subscribe(events.EventPublishedName, l.handlePublished)
	l.logger.Info("DeliveryListener subscribed",
		zap.Strings("events", []string{events.EventDeliveredName, events.EventPublishedName}))
}

func (l *DeliveryListener) handleDelivered(_ context.Context, event eventbus.Event) error {
	e, ok := event.(events.EventDelivered)
	if !ok {
		return nil
	}
	l.hub.Broadcast(websocket.Frame{
		Type:    websocket.FrameEvent,
		Channel: e.Event.Channel,
		Event:   e.Event.Event,
		Seq:     e.Event.Seq,
		Data:    e.Event.Data,
	})
	return nil
}

func (l *DeliveryListener) handlePublished(_ context.Context, event eventbus.Event) error {
	e, ok := event.(events.EventPublished)
	if !ok {
		return nil
	}
	l.logger.Info("event published",
		zap.String("id", e.Event.ID),
		zap.String("channel", e.Event.Channel),
		zap.String("event", e.Event.Event),
		zap.Int64("seq", e.Event.Seq),
		zap.String("actor", e.Event.ActorID.String),
	)
	return nil
}
