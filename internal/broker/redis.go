package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"portal-realtime/internal/entities"
)

const DefaultTopic = "relay:events"

// Redis fans events out to every relay node subscribed to the same topic.
type Redis struct {
	client *redis.Client
	topic  string
	logger *zap.Logger
}

func NewRedis(client *redis.Client, topic string, logger *zap.Logger) *Redis {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Redis{client: client, topic: topic, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, event entities.ChannelEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Run(ctx context.Context, handler Handler) error {
	sub := r.client.Subscribe(ctx, r.topic)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.topic, err)
	}
	r.logger.Info("broker subscribed", zap.String("topic", r.topic))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event entities.ChannelEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("broker dropped malformed message", zap.Error(err))
				continue
			}
			handler(ctx, event)
		}
	}
}
