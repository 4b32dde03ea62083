package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is anything that can travel over the bus.
type Event interface {
	Name() string
}

type Listener func(ctx context.Context, event Event) error

const listenerTimeout = time.Minute

type Bus struct {
	listeners map[string][]Listener
	mu        sync.RWMutex
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
}

func (b *Bus) Subscribe(eventName string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventName] = append(b.listeners[eventName], listener)
}

func (b *Bus) snapshot(eventName string) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Listener(nil), b.listeners[eventName]...)
}

// Publish runs every listener of the event in its own goroutine.
func (b *Bus) Publish(ctx context.Context, event Event) {
	for _, listener := range b.snapshot(event.Name()) {
		go func(l Listener) {
			ctxWithTimeout, cancel := context.WithTimeout(context.WithoutCancel(ctx), listenerTimeout)
			defer cancel()
			b.run(ctxWithTimeout, l, event)
		}(listener)
	}
}

// PublishSync runs listeners one after another on the caller's goroutine,
// so events published in order are handled in order.
func (b *Bus) PublishSync(ctx context.Context, event Event) {
	for _, listener := range b.snapshot(event.Name()) {
		b.run(ctx, listener, event)
	}
}

func (b *Bus) run(ctx context.Context, l Listener, event Event) {
	if err := l(ctx, event); err != nil {
		b.logger.Error("event listener failed",
			zap.String("event", event.Name()),
			zap.Error(err),
		)
	}
}
