package portal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
	"portal-realtime/pkg/realtime"
	"portal-realtime/pkg/validation"
)

var (
	ann = apiclient.User{ID: "u-1", Email: "ann@example.com", Role: session.RoleClient, BusinessID: "b-1"}
	bob = apiclient.User{ID: "u-2", Email: "bob@example.com", Role: session.RoleAdmin, BusinessID: "b-1"}
)

type fakeAPI struct {
	mu sync.Mutex

	comments    []apiclient.Comment
	listErr     error
	listStarted chan struct{}
	listGate    chan struct{}

	created     apiclient.Comment
	createErr   error
	createGate  chan struct{}
	createCalls []string

	notifications []apiclient.Notification
	readErr       error
	readCalls     []string
	readAllCalls  int

	profileErr error
}

func (f *fakeAPI) ListComments(ctx context.Context, projectID string) ([]apiclient.Comment, error) {
	if f.listStarted != nil {
		f.listStarted <- struct{}{}
	}
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.Comment(nil), f.comments...), f.listErr
}

func (f *fakeAPI) CreateComment(ctx context.Context, projectID, content string) (apiclient.Comment, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, projectID+":"+content)
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.created, f.createErr
}

func (f *fakeAPI) ListNotifications(ctx context.Context) ([]apiclient.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.Notification(nil), f.notifications...), nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, id)
	return f.readErr
}

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readAllCalls++
	return nil
}

func (f *fakeAPI) BusinessProfile(ctx context.Context) (apiclient.BusinessProfile, error) {
	if f.profileErr != nil {
		return apiclient.BusinessProfile{}, f.profileErr
	}
	return apiclient.BusinessProfile{ID: "b-1", Name: "Acme Studio"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) snapshot() (infos, errs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...), append([]string(nil), n.errors...)
}

func signedIn(t *testing.T, user apiclient.User) *session.Session {
	t.Helper()
	s, err := session.New(session.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Set(session.State{Token: "tok-" + user.ID, User: user}))
	return s
}

func newLocal(t *testing.T) *realtime.Local {
	t.Helper()
	l := realtime.NewLocal(zap.NewNop())
	t.Cleanup(l.Close)
	return l
}

func comment(id, content string, author apiclient.User) apiclient.Comment {
	return apiclient.Comment{
		ID:        id,
		Content:   content,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		User:      apiclient.CommentAuthor{ID: author.ID, Email: author.Email, Role: author.Role},
	}
}

func notification(id, userID, message string, read bool) apiclient.Notification {
	return apiclient.Notification{
		ID:        id,
		UserID:    userID,
		Message:   message,
		Read:      read,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func ids[T Keyed](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Key())
	}
	return out
}

var testValidator = validation.New()
