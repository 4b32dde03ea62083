package broker

import (
	"context"

	"portal-realtime/internal/entities"
)

// Memory is the single-node broker used when Redis is disabled.
type Memory struct {
	queue chan entities.ChannelEvent
}

func NewMemory(buffer int) *Memory {
	return &Memory{queue: make(chan entities.ChannelEvent, buffer)}
}

func (m *Memory) Publish(ctx context.Context, event entities.ChannelEvent) error {
	select {
	case m.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-m.queue:
			handler(ctx, event)
		}
	}
}
