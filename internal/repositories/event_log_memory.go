package repositories

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"portal-realtime/internal/entities"
)

// MemoryEventLog keeps the newest capacity events per channel.
type MemoryEventLog struct {
	mu       sync.RWMutex
	capacity int
	channels map[string][]entities.ChannelEvent
}

func NewMemoryEventLog(capacity int) *MemoryEventLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryEventLog{capacity: capacity, channels: make(map[string][]entities.ChannelEvent)}
}

func (m *MemoryEventLog) Append(_ context.Context, _ pgx.Tx, e entities.ChannelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := append(m.channels[e.Channel], e)
	if len(events) > m.capacity {
		events = append([]entities.ChannelEvent(nil), events[len(events)-m.capacity:]...)
	}
	m.channels[e.Channel] = events
	return nil
}

func (m *MemoryEventLog) After(_ context.Context, channel string, after int64, limit int) ([]entities.ChannelEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.ChannelEvent, 0)
	for _, e := range m.channels[channel] {
		if e.Seq <= after {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryEventLog) LastSeq(_ context.Context, channel string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.channels[channel]
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}
