package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/internal/broker"
	"portal-realtime/internal/dto"
	"portal-realtime/internal/entities"
	"portal-realtime/internal/events"
	"portal-realtime/internal/repositories"
	"portal-realtime/pkg/eventbus"
	apperrors "portal-realtime/pkg/errors"
)

type relayFixture struct {
	svc       *RelayService
	cache     *repositories.MemoryCacheRepository
	log       *repositories.MemoryEventLog
	delivered chan entities.ChannelEvent
}

func newRelayFixture(t *testing.T) relayFixture {
	t.Helper()
	cache := repositories.NewMemoryCacheRepository()
	eventLog := repositories.NewMemoryEventLog(100)
	b := broker.NewMemory(16)
	bus := eventbus.New(zap.NewNop())
	svc := NewRelayService(cache, eventLog, repositories.NewLocalTxManager(), b, bus, 2, zap.NewNop())

	delivered := make(chan entities.ChannelEvent, 16)
	bus.Subscribe(events.EventDeliveredName, func(_ context.Context, e eventbus.Event) error {
		delivered <- e.(events.EventDelivered).Event
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx, svc.Deliver) }()

	return relayFixture{svc: svc, cache: cache, log: eventLog, delivered: delivered}
}

func (f relayFixture) nextDelivered(t *testing.T) entities.ChannelEvent {
	t.Helper()
	select {
	case e := <-f.delivered:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	return entities.ChannelEvent{}
}

func TestRelayService_PublishAssignsSeqPerChannel(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()

	first, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added", Data: json.RawMessage(`{"id":"c-1"}`)})
	require.NoError(t, err)
	second, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added", ActorID: null.StringFrom("u-1")})
	require.NoError(t, err)
	other, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "business-1", Event: "new-notification"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, int64(1), other.Seq)
	assert.NotEmpty(t, first.ID)

	d1 := f.nextDelivered(t)
	assert.Equal(t, "project-1", d1.Channel)
	assert.Equal(t, int64(1), d1.Seq)
	assert.JSONEq(t, `{"id":"c-1"}`, string(d1.Data))
	d2 := f.nextDelivered(t)
	assert.Equal(t, int64(2), d2.Seq)
	assert.Equal(t, "u-1", d2.ActorID.String)
	assert.JSONEq(t, `{}`, string(d2.Data))
}

func TestRelayService_PublishRejectsBadNames(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "team-1", Event: "comment.added"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidChannel)
	assert.Equal(t, 400, apperrors.StatusCode(err))

	_, err = f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "Bad Event"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidEvent)
}

func TestRelayService_SeqContinuesAfterCounterLoss(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added"})
		require.NoError(t, err)
	}
	require.NoError(t, f.cache.Del(ctx, seqKeyPrefix+"project-1"))

	next, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.Seq)

	again, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), again.Seq)
}

func TestRelayService_HistoryIsCappedByReplayLimit(t *testing.T) {
	f := newRelayFixture(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := f.svc.Publish(ctx, dto.PublishEventDTO{Channel: "project-1", Event: "comment.added"})
		require.NoError(t, err)
	}

	list, err := f.svc.History(ctx, "project-1", 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Seq)
	assert.Equal(t, int64(3), list[1].Seq)

	frames, err := f.svc.After(ctx, "project-1", 3, 10)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, int64(4), frames[0].Seq)
	assert.Equal(t, "event", frames[0].Type)

	_, err = f.svc.History(ctx, "nope", 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidChannel)
}
