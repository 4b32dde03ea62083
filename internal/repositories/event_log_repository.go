package repositories

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal-realtime/internal/entities"
)

const (
	channelEventsTable  = "channel_events"
	channelEventsFields = "id, channel, event, seq, data, actor_id, created_at"
)

type EventLogRepositoryInterface interface {
	Append(ctx context.Context, tx pgx.Tx, event entities.ChannelEvent) error
	// After returns events of channel with seq > after, ascending. limit <= 0 means no cap.
	After(ctx context.Context, channel string, after int64, limit int) ([]entities.ChannelEvent, error)
	LastSeq(ctx context.Context, channel string) (int64, error)
}

type eventLogRepository struct {
	storage *pgxpool.Pool
}

func NewEventLogRepository(storage *pgxpool.Pool) EventLogRepositoryInterface {
	return &eventLogRepository{storage: storage}
}

func (r *eventLogRepository) getQuerier(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.storage
}

func (r *eventLogRepository) Append(ctx context.Context, tx pgx.Tx, e entities.ChannelEvent) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Insert(channelEventsTable).
		Columns("id", "channel", "event", "seq", "data", "actor_id", "created_at").
		Values(e.ID, e.Channel, e.Event, e.Seq, []byte(e.Data), e.ActorID, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append query: %w", err)
	}
	if _, err := r.getQuerier(tx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append event %s/%d: %w", e.Channel, e.Seq, err)
	}
	return nil
}

func (r *eventLogRepository) After(ctx context.Context, channel string, after int64, limit int) ([]entities.ChannelEvent, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(channelEventsFields).
		From(channelEventsTable).
		Where(sq.Eq{"channel": channel}).
		Where(sq.Gt{"seq": after}).
		OrderBy("seq ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", channel, err)
	}
	defer rows.Close()

	events := make([]entities.ChannelEvent, 0)
	for rows.Next() {
		var e entities.ChannelEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.Channel, &e.Event, &e.Seq, &data, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Data = data
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventLogRepository) LastSeq(ctx context.Context, channel string) (int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Select("COALESCE(MAX(seq), 0)").
		From(channelEventsTable).
		Where(sq.Eq{"channel": channel}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build last seq query: %w", err)
	}
	var seq int64
	if err := r.storage.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq of %s: %w", channel, err)
	}
	return seq, nil
}
