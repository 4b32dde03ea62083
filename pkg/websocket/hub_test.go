package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/service"
)

type allowAll struct{ denied map[string]bool }

func (a allowAll) Authorize(_ context.Context, _ *service.JwtCustomClaim, channel string) error {
	if a.denied[channel] {
		return apperrors.ErrForbidden
	}
	return nil
}

type fixedHistory struct{ frames []Frame }

func (f fixedHistory) After(_ context.Context, channel string, since int64, limit int) ([]Frame, error) {
	var out []Frame
	for _, fr := range f.frames {
		if fr.Channel == channel && fr.Seq > since && len(out) < limit {
			out = append(out, fr)
		}
	}
	return out, nil
}

func startHub(t *testing.T, auth Authorizer, history History) *Hub {
	t.Helper()
	h := NewHub(auth, history, 100, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func newTestClient(h *Hub) *Client {
	c := NewClient(h, nil, &service.JwtCustomClaim{UserID: "u-1"})
	h.Register(c)
	return c
}

func next(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var f Frame
		require.NoError(t, json.Unmarshal(payload, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	return Frame{}
}

func TestHub_BroadcastReachesOnlySubscribers(t *testing.T) {
	h := startHub(t, allowAll{}, fixedHistory{})
	c := newTestClient(h)

	c.handleSubscribe(Frame{Type: FrameSubscribe, Channel: "project-1"})
	assert.Equal(t, FrameSubscriptionSucceeded, next(t, c).Type)
	assert.Equal(t, 1, h.ChannelCount("project-1"))

	h.Broadcast(Frame{Channel: "project-2", Event: "comment.added", Seq: 1})
	h.Broadcast(Frame{Channel: "project-1", Event: "comment.added", Seq: 7, Data: json.RawMessage(`{"id":"c-1"}`)})

	got := next(t, c)
	assert.Equal(t, FrameEvent, got.Type)
	assert.Equal(t, "project-1", got.Channel)
	assert.Equal(t, int64(7), got.Seq)
	assert.JSONEq(t, `{"id":"c-1"}`, string(got.Data))
}

func TestHub_SubscriptionRefused(t *testing.T) {
	h := startHub(t, allowAll{denied: map[string]bool{"business-9": true}}, fixedHistory{})
	c := newTestClient(h)

	c.handleSubscribe(Frame{Type: FrameSubscribe, Channel: "business-9"})
	got := next(t, c)
	assert.Equal(t, FrameSubscriptionError, got.Type)
	assert.Equal(t, "business-9", got.Channel)
	assert.NotEmpty(t, got.Error)
	assert.Equal(t, 0, h.ChannelCount("business-9"))
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	h := startHub(t, allowAll{}, fixedHistory{})
	c := newTestClient(h)
	other := newTestClient(h)

	c.handleSubscribe(Frame{Channel: "project-1"})
	other.handleSubscribe(Frame{Channel: "project-1"})
	next(t, c)
	next(t, other)

	h.leave(c, "project-1")
	assert.Equal(t, 1, h.ChannelCount("project-1"))

	h.Broadcast(Frame{Channel: "project-1", Seq: 1})
	assert.Equal(t, int64(1), next(t, other).Seq)
	assert.Empty(t, c.send)
}

func TestHub_ReplayFillsGapWithoutDuplicates(t *testing.T) {
	history := fixedHistory{frames: []Frame{
		{Type: FrameEvent, Channel: "project-1", Seq: 3},
		{Type: FrameEvent, Channel: "project-1", Seq: 4},
		{Type: FrameEvent, Channel: "project-1", Seq: 5},
	}}
	h := startHub(t, allowAll{}, history)
	c := newTestClient(h)

	c.handleSubscribe(Frame{Channel: "project-1", Since: 3})
	assert.Equal(t, FrameSubscriptionSucceeded, next(t, c).Type)
	assert.Equal(t, int64(4), next(t, c).Seq)
	assert.Equal(t, int64(5), next(t, c).Seq)
}

func TestClient_FinishReplaySkipsCoveredFrames(t *testing.T) {
	c := NewClient(nil, nil, nil)
	c.beginReplay("project-1")

	require.True(t, c.deliver(Frame{Type: FrameEvent, Channel: "project-1", Seq: 5}))
	require.True(t, c.deliver(Frame{Type: FrameEvent, Channel: "project-1", Seq: 6}))
	assert.Empty(t, c.send)

	require.True(t, c.finishReplay("project-1", 5))
	assert.Equal(t, int64(6), next(t, c).Seq)
	assert.Empty(t, c.send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := startHub(t, allowAll{}, fixedHistory{})
	c := newTestClient(h)
	c.handleSubscribe(Frame{Channel: "project-1"})
	next(t, c)

	h.Unregister(c)
	h.Unregister(c)

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ChannelCount("project-1"))
}
