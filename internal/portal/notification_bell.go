package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/realtime"
)

type NotificationAPI interface {
	ListNotifications(ctx context.Context) ([]apiclient.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationBell tracks the signed-in user's notifications and their read state.
// New pushes go first; a read notification never becomes unread again.
type NotificationBell struct {
	api       NotificationAPI
	sub       realtime.Subscriber
	session   *session.Session
	notifier  Notifier
	validator apiclient.Validator
	logger    *zap.Logger

	mu            sync.Mutex
	mounted       bool
	epoch         uint64
	token         realtime.Token
	notifications *Collection[apiclient.Notification]
}

func NewNotificationBell(
	api NotificationAPI,
	sub realtime.Subscriber,
	sess *session.Session,
	notifier Notifier,
	validator apiclient.Validator,
	logger *zap.Logger,
) *NotificationBell {
	return &NotificationBell{
		api:           api,
		sub:           sub,
		session:       sess,
		notifier:      notifier,
		validator:     validator,
		logger:        logger,
		notifications: NewCollection[apiclient.Notification](),
	}
}

// Mount binds the business channel of the signed-in user and loads the
// notifications. Each mount starts from the fetched list plus what was pushed
// during the fetch. Users without a business only get the fetched list.
func (b *NotificationBell) Mount(ctx context.Context) error {
	user, ok := b.session.User()
	if !ok {
		return apperrors.ErrNoSession
	}

	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return nil
	}
	b.mounted = true
	b.epoch++
	epoch := b.epoch
	b.notifications = NewCollection[apiclient.Notification]()
	if user.BusinessID != "" {
		token, err := b.sub.Subscribe(channel.Business(user.BusinessID), channel.EventNewNotification, b.onNotification(epoch, user.ID))
		if err != nil {
			b.logger.Warn("live notifications unavailable", zap.String("business", user.BusinessID), zap.Error(err))
		} else {
			b.token = token
		}
	}
	b.mu.Unlock()

	list, err := b.api.ListNotifications(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.epoch != epoch {
		return nil
	}
	if err != nil {
		b.logger.Error("failed to fetch notifications", zap.String("user", user.ID), zap.Error(err))
		return fmt.Errorf("fetch notifications: %w", err)
	}
	pushed := b.notifications.Items()
	b.notifications.Reset(list)
	for i := len(pushed) - 1; i >= 0; i-- {
		b.notifications.Prepend(pushed[i])
	}
	return nil
}

func (b *NotificationBell) Unmount() {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = false
	b.epoch++
	token := b.token
	b.token = realtime.Token{}
	b.mu.Unlock()

	if !token.IsZero() {
		b.sub.Cancel(token)
	}
}

func (b *NotificationBell) onNotification(epoch uint64, userID string) realtime.Handler {
	return func(payload json.RawMessage) {
		n, err := apiclient.Decode[apiclient.Notification]("notification", payload, b.validator)
		if err != nil {
			b.logger.Warn("dropping malformed notification push", zap.Error(err))
			return
		}
		if n.UserID != userID {
			return
		}

		b.mu.Lock()
		if b.epoch != epoch {
			b.mu.Unlock()
			return
		}
		added := b.notifications.Prepend(n)
		b.mu.Unlock()

		if added {
			b.notifier.Info(n.Message)
		}
	}
}

// MarkRead marks one notification read locally, then confirms with the
// backend. A failed confirmation is logged and returned but the local flag
// stays set. Unknown or already read ids are left alone.
func (b *NotificationBell) MarkRead(ctx context.Context, id string) error {
	b.mu.Lock()
	n, ok := b.notifications.Get(id)
	if !ok || n.Read {
		b.mu.Unlock()
		return nil
	}
	b.notifications.Update(id, func(n *apiclient.Notification) { n.Read = true })
	b.mu.Unlock()

	if err := b.api.MarkNotificationRead(ctx, id); err != nil {
		b.logger.Warn("failed to confirm notification read", zap.String("notification", id), zap.Error(err))
		return fmt.Errorf("mark notification %q read: %w", id, err)
	}
	return nil
}

// MarkAllRead flips every local flag and sends one bulk confirmation.
func (b *NotificationBell) MarkAllRead(ctx context.Context) error {
	b.mu.Lock()
	for _, n := range b.notifications.Items() {
		if !n.Read {
			b.notifications.Update(n.ID, func(n *apiclient.Notification) { n.Read = true })
		}
	}
	b.mu.Unlock()

	if err := b.api.MarkAllNotificationsRead(ctx); err != nil {
		b.logger.Warn("failed to confirm all notifications read", zap.Error(err))
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// UnreadCount is computed from the list on every call.
func (b *NotificationBell) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, n := range b.notifications.Items() {
		if !n.Read {
			count++
		}
	}
	return count
}

func (b *NotificationBell) Items() []apiclient.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notifications.Items()
}

func (b *NotificationBell) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}
