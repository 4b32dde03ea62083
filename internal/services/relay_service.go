package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"portal-realtime/internal/broker"
	"portal-realtime/internal/dto"
	"portal-realtime/internal/entities"
	"portal-realtime/internal/events"
	"portal-realtime/internal/repositories"
	"portal-realtime/pkg/channel"
	"portal-realtime/pkg/eventbus"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/websocket"
)

const seqKeyPrefix = "relay:seq:"

type RelayServiceInterface interface {
	Publish(ctx context.Context, in dto.PublishEventDTO) (*dto.PublishedEventDTO, error)
	History(ctx context.Context, channelName string, after int64, limit int) ([]entities.ChannelEvent, error)
	Export(ctx context.Context, channelName string) ([]entities.ChannelEvent, error)
	After(ctx context.Context, channelName string, since int64, limit int) ([]websocket.Frame, error)
	Deliver(ctx context.Context, event entities.ChannelEvent)
}

type RelayService struct {
	cache       repositories.CacheRepositoryInterface
	eventLog    repositories.EventLogRepositoryInterface
	txManager   repositories.TxManagerInterface
	broker      broker.Broker
	bus         *eventbus.Bus
	replayLimit int
	logger      *zap.Logger
	now         func() time.Time
}

func NewRelayService(
	cache repositories.CacheRepositoryInterface,
	eventLog repositories.EventLogRepositoryInterface,
	txManager repositories.TxManagerInterface,
	b broker.Broker,
	bus *eventbus.Bus,
	replayLimit int,
	logger *zap.Logger,
) *RelayService {
	return &RelayService{
		cache:       cache,
		eventLog:    eventLog,
		txManager:   txManager,
		broker:      b,
		bus:         bus,
		replayLimit: replayLimit,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish assigns the next seq of the channel, records the event and hands it
// to the broker. Publishes on one channel are serialized by the tx manager so
// seq order matches broker order.
func (s *RelayService) Publish(ctx context.Context, in dto.PublishEventDTO) (*dto.PublishedEventDTO, error) {
	if !channel.Valid(in.Channel) {
		return nil, apperrors.NewHttpError(http.StatusBadRequest, "invalid channel", apperrors.ErrInvalidChannel, nil)
	}
	if !channel.ValidEvent(in.Event) {
		return nil, apperrors.NewHttpError(http.StatusBadRequest, "invalid event name", apperrors.ErrInvalidEvent, nil)
	}
	data := in.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	var event entities.ChannelEvent
	err := s.txManager.RunInChannelTx(ctx, in.Channel, func(tx pgx.Tx) error {
		seq, err := s.nextSeq(ctx, in.Channel)
		if err != nil {
			return err
		}

		event = entities.ChannelEvent{
			ID:        uuid.NewString(),
			Channel:   in.Channel,
			Event:     in.Event,
			Seq:       seq,
			Data:      data,
			ActorID:   in.ActorID,
			CreatedAt: s.now().UTC(),
		}

		if err := s.eventLog.Append(ctx, tx, event); err != nil {
			s.logger.Error("event log append failed", zap.String("channel", event.Channel), zap.Int64("seq", seq), zap.Error(err))
			return err
		}
		if err := s.broker.Publish(ctx, event); err != nil {
			s.logger.Error("broker publish failed", zap.String("channel", event.Channel), zap.Int64("seq", seq), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, events.EventPublished{Event: event})

	return &dto.PublishedEventDTO{ID: event.ID, Channel: event.Channel, Event: event.Event, Seq: event.Seq}, nil
}

// nextSeq increments the channel counter. A counter that restarts below the
// event log's last seq (cache flushed) is moved past it.
func (s *RelayService) nextSeq(ctx context.Context, channelName string) (int64, error) {
	key := seqKeyPrefix + channelName
	seq, err := s.cache.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("allocate seq for %s: %w", channelName, err)
	}
	if seq != 1 {
		return seq, nil
	}
	last, err := s.eventLog.LastSeq(ctx, channelName)
	if err != nil {
		return 0, fmt.Errorf("last seq for %s: %w", channelName, err)
	}
	if last == 0 {
		return seq, nil
	}
	seq = last + 1
	if err := s.cache.Set(ctx, key, strconv.FormatInt(seq, 10), 0); err != nil {
		return 0, fmt.Errorf("reset seq for %s: %w", channelName, err)
	}
	return seq, nil
}

func (s *RelayService) clampLimit(limit int) int {
	if limit <= 0 || limit > s.replayLimit {
		return s.replayLimit
	}
	return limit
}

func (s *RelayService) History(ctx context.Context, channelName string, after int64, limit int) ([]entities.ChannelEvent, error) {
	if !channel.Valid(channelName) {
		return nil, apperrors.ErrInvalidChannel
	}
	return s.eventLog.After(ctx, channelName, after, s.clampLimit(limit))
}

// Export returns the whole retained log of a channel.
func (s *RelayService) Export(ctx context.Context, channelName string) ([]entities.ChannelEvent, error) {
	if !channel.Valid(channelName) {
		return nil, apperrors.ErrInvalidChannel
	}
	return s.eventLog.After(ctx, channelName, 0, 0)
}

// After serves socket replays.
func (s *RelayService) After(ctx context.Context, channelName string, since int64, limit int) ([]websocket.Frame, error) {
	list, err := s.History(ctx, channelName, since, limit)
	if err != nil {
		return nil, err
	}
	frames := make([]websocket.Frame, 0, len(list))
	for _, e := range list {
		frames = append(frames, websocket.Frame{
			Type:    websocket.FrameEvent,
			Channel: e.Channel,
			Event:   e.Event,
			Seq:     e.Seq,
			Data:    e.Data,
		})
	}
	return frames, nil
}

// Deliver is the broker handler: it hands the event to local listeners in order.
func (s *RelayService) Deliver(ctx context.Context, event entities.ChannelEvent) {
	s.bus.PublishSync(ctx, events.EventDelivered{Event: event})
}
