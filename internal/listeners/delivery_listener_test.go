package listeners

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/internal/entities"
	"portal-realtime/internal/events"
	"portal-realtime/pkg/eventbus"
	"portal-realtime/pkg/websocket"
)

type recordingHub struct{ frames []websocket.Frame }

func (r *recordingHub) Broadcast(f websocket.Frame) { r.frames = append(r.frames, f) }

func TestDeliveryListener_BroadcastsDeliveredEvents(t *testing.T) {
	hub := &recordingHub{}
	bus := eventbus.New(zap.NewNop())
	NewDeliveryListener(hub, zap.NewNop()).Register(bus)

	bus.PublishSync(context.Background(), events.EventDelivered{Event: entities.ChannelEvent{
		Channel: "business-3",
		Event:   "new-notification",
		Seq:     9,
		Data:    json.RawMessage(`{"userId":"u-1"}`),
	}})

	require.Len(t, hub.frames, 1)
	f := hub.frames[0]
	assert.Equal(t, websocket.FrameEvent, f.Type)
	assert.Equal(t, "business-3", f.Channel)
	assert.Equal(t, "new-notification", f.Event)
	assert.Equal(t, int64(9), f.Seq)
	assert.JSONEq(t, `{"userId":"u-1"}`, string(f.Data))
}
