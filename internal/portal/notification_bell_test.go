package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/realtime"
)

func mountedBell(t *testing.T, api *fakeAPI, local *realtime.Local, sess *session.Session, notifier Notifier) *NotificationBell {
	t.Helper()
	b := NewNotificationBell(api, local, sess, notifier, testValidator, zap.NewNop())
	require.NoError(t, b.Mount(context.Background()))
	t.Cleanup(b.Unmount)
	return b
}

func TestNotificationBell_UnreadCountIsDerived(t *testing.T) {
	local := newLocal(t)
	api := &fakeAPI{notifications: []apiclient.Notification{
		notification("n-1", "u-1", "Invoice paid", false),
		notification("n-2", "u-1", "Project approved", true),
		notification("n-3", "u-1", "New comment", false),
	}}
	b := mountedBell(t, api, local, signedIn(t, ann), &recordingNotifier{})

	assert.Equal(t, []string{"n-1", "n-2", "n-3"}, ids(b.Items()))
	assert.Equal(t, 2, b.UnreadCount())

	require.NoError(t, b.MarkAllRead(context.Background()))
	assert.Equal(t, 0, b.UnreadCount())
	assert.Equal(t, 1, api.readAllCalls)
	assert.Empty(t, api.readCalls)
	for _, n := range b.Items() {
		assert.True(t, n.Read)
	}
}

func TestNotificationBell_MarkReadIsIdempotentAndNeverRollsBack(t *testing.T) {
	local := newLocal(t)
	api := &fakeAPI{notifications: []apiclient.Notification{
		notification("n-1", "u-1", "Invoice paid", false),
		notification("n-2", "u-1", "New comment", false),
	}}
	b := mountedBell(t, api, local, signedIn(t, ann), &recordingNotifier{})

	require.NoError(t, b.MarkRead(context.Background(), "n-1"))
	before := b.Items()
	require.NoError(t, b.MarkRead(context.Background(), "n-1"))
	require.NoError(t, b.MarkRead(context.Background(), "missing"))
	assert.Equal(t, before, b.Items())
	assert.Equal(t, []string{"n-1"}, api.readCalls)
	assert.Equal(t, 1, b.UnreadCount())

	api.readErr = errors.New("backend down")
	assert.Error(t, b.MarkRead(context.Background(), "n-2"))
	assert.Equal(t, 0, b.UnreadCount())
}

func TestNotificationBell_PushFiltersByRecipient(t *testing.T) {
	local := newLocal(t)
	notifier := &recordingNotifier{}
	api := &fakeAPI{notifications: []apiclient.Notification{notification("n-1", "u-1", "Invoice paid", true)}}
	b := mountedBell(t, api, local, signedIn(t, ann), notifier)

	business := channel.Business("b-1")
	require.NoError(t, local.Publish(business, channel.EventNewNotification, notification("n-2", "u-1", "Project approved", false)))
	require.NoError(t, local.Publish(business, channel.EventNewNotification, notification("n-3", "u-2", "Not for ann", false)))
	require.NoError(t, local.Publish(business, channel.EventNewNotification, notification("n-2", "u-1", "Project approved", false)))
	local.Sync()

	assert.Equal(t, []string{"n-2", "n-1"}, ids(b.Items()))
	assert.Equal(t, 1, b.UnreadCount())
	infos, _ := notifier.snapshot()
	assert.Equal(t, []string{"Project approved"}, infos)
}

func TestNotificationBell_TwoBellsOnOneChannelAreIndependent(t *testing.T) {
	local := newLocal(t)
	sess := signedIn(t, ann)
	dashboard := mountedBell(t, &fakeAPI{}, local, sess, &recordingNotifier{})
	portal := mountedBell(t, &fakeAPI{}, local, sess, &recordingNotifier{})
	business := channel.Business("b-1")
	assert.Equal(t, 2, local.Bindings(business))

	require.NoError(t, local.Publish(business, channel.EventNewNotification, notification("n-1", "u-1", "first", false)))
	local.Sync()
	assert.Equal(t, []string{"n-1"}, ids(dashboard.Items()))
	assert.Equal(t, []string{"n-1"}, ids(portal.Items()))

	dashboard.Unmount()
	assert.Equal(t, 1, local.Bindings(business))
	assert.False(t, dashboard.Mounted())

	require.NoError(t, local.Publish(business, channel.EventNewNotification, notification("n-2", "u-1", "second", false)))
	local.Sync()
	assert.Equal(t, []string{"n-1"}, ids(dashboard.Items()))
	assert.Equal(t, []string{"n-2", "n-1"}, ids(portal.Items()))
}

func TestNotificationBell_RemountTakesFetchedList(t *testing.T) {
	local := newLocal(t)
	api := &fakeAPI{notifications: []apiclient.Notification{notification("n-1", "u-1", "Invoice paid", false)}}
	b := mountedBell(t, api, local, signedIn(t, ann), &recordingNotifier{})

	require.NoError(t, local.Publish(channel.Business("b-1"), channel.EventNewNotification, notification("n-2", "u-1", "pushed", false)))
	local.Sync()
	assert.Equal(t, []string{"n-2", "n-1"}, ids(b.Items()))

	b.Unmount()
	api.mu.Lock()
	api.notifications = []apiclient.Notification{notification("n-3", "u-1", "Project approved", false)}
	api.mu.Unlock()

	require.NoError(t, b.Mount(context.Background()))
	assert.Equal(t, []string{"n-3"}, ids(b.Items()))
	assert.Equal(t, 1, b.UnreadCount())
}

func TestNotificationBell_RequiresSession(t *testing.T) {
	s, err := session.New(session.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	b := NewNotificationBell(&fakeAPI{}, newLocal(t), s, &recordingNotifier{}, testValidator, zap.NewNop())

	assert.ErrorIs(t, b.Mount(context.Background()), apperrors.ErrNoSession)
	assert.False(t, b.Mounted())
}
