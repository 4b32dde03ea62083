package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
)

type noopLink struct{}

func (noopLink) Join(string, int64) {}
func (noopLink) Leave(string)       {}

// Local is an in-process relay. Events published on it reach the bindings of
// its own Manager with a per-channel seq, the way the networked relay does.
type Local struct {
	*Manager

	mu  sync.Mutex
	seq map[string]int64
}

func NewLocal(logger *zap.Logger) *Local {
	return &Local{
		Manager: NewManager(noopLink{}, logger),
		seq:     make(map[string]int64),
	}
}

// Publish marshals payload and delivers it on channel. It does not wait for
// handlers; call Sync for that.
func (l *Local) Publish(channelName, event string, payload interface{}) error {
	if !channel.Valid(channelName) {
		return fmt.Errorf("publish %q: %w", channelName, apperrors.ErrInvalidChannel)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s/%s: %w", channelName, event, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq[channelName]++
	l.Deliver(channelName, event, l.seq[channelName], data)
	return nil
}
