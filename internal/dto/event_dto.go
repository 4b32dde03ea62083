package dto

import (
	"encoding/json"
	"time"

	"github.com/aarondl/null/v8"

	"portal-realtime/internal/entities"
)

type PublishEventDTO struct {
	Channel string          `json:"channel" validate:"required,channel_name"`
	Event   string          `json:"event" validate:"required,event_name"`
	Data    json.RawMessage `json:"data"`
	ActorID null.String     `json:"actorId" validate:"omitempty,max=128"`
}

type PublishedEventDTO struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Seq     int64  `json:"seq"`
}

type HistoryQueryDTO struct {
	Channel string `param:"channel" validate:"required,channel_name"`
	After   int64  `query:"after" validate:"gte=0"`
	Limit   int    `query:"limit" validate:"gte=0"`
}

type ChannelEventDTO struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Seq       int64           `json:"seq"`
	Data      json.RawMessage `json:"data"`
	ActorID   null.String     `json:"actorId"`
	CreatedAt string          `json:"createdAt"`
}

func ChannelEventToDTO(e entities.ChannelEvent) ChannelEventDTO {
	return ChannelEventDTO{
		ID:        e.ID,
		Channel:   e.Channel,
		Event:     e.Event,
		Seq:       e.Seq,
		Data:      e.Data,
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
