package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"portal-realtime/internal/session"
	"portal-realtime/pkg/apiclient"
	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/realtime"
)

const (
	placeholderPrefix = "tmp-"
	msgSendFailed     = "Failed to send comment"
)

type CommentAPI interface {
	ListComments(ctx context.Context, projectID string) ([]apiclient.Comment, error)
	CreateComment(ctx context.Context, projectID, content string) (apiclient.Comment, error)
}

// CommentThread is the discussion of one project: fetched history, live
// comment.added pushes and a single-flight submit with an optimistic entry.
type CommentThread struct {
	api       CommentAPI
	sub       realtime.Subscriber
	session   *session.Session
	notifier  Notifier
	validator apiclient.Validator
	logger    *zap.Logger
	onChange  func()

	mu         sync.Mutex
	projectID  string
	mounted    bool
	epoch      uint64
	token      realtime.Token
	comments   *Collection[apiclient.Comment]
	draft      string
	submitting bool
	nextTmp    int
}

func NewCommentThread(
	projectID string,
	api CommentAPI,
	sub realtime.Subscriber,
	sess *session.Session,
	notifier Notifier,
	validator apiclient.Validator,
	logger *zap.Logger,
) *CommentThread {
	return &CommentThread{
		api:       api,
		sub:       sub,
		session:   sess,
		notifier:  notifier,
		validator: validator,
		logger:    logger,
		projectID: projectID,
		comments:  NewCollection[apiclient.Comment](),
	}
}

// OnChange registers fn to run after the comment list changes. Set it before Mount.
func (t *CommentThread) OnChange(fn func()) {
	t.onChange = fn
}

func (t *CommentThread) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// Mount binds the project channel and loads the existing comments. A fetch
// failure is logged and returned; the binding stays so pushes still arrive.
// Each mount starts from the fetched list plus what was pushed during the
// fetch. Mounting a mounted thread does nothing.
func (t *CommentThread) Mount(ctx context.Context) error {
	t.mu.Lock()
	if t.mounted {
		t.mu.Unlock()
		return nil
	}
	t.mounted = true
	t.epoch++
	epoch := t.epoch
	projectID := t.projectID
	t.comments = NewCollection[apiclient.Comment]()

	token, err := t.sub.Subscribe(channel.Project(projectID), channel.EventCommentAdded, t.onComment(epoch))
	switch {
	case errors.Is(err, apperrors.ErrInvalidChannel):
		t.mounted = false
		t.mu.Unlock()
		return fmt.Errorf("mount comments of project %q: %w", projectID, err)
	case err != nil:
		t.logger.Warn("live comments unavailable", zap.String("project", projectID), zap.Error(err))
	default:
		t.token = token
	}
	t.mu.Unlock()

	list, err := t.api.ListComments(ctx, projectID)

	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		t.mu.Unlock()
		t.logger.Error("failed to fetch comments", zap.String("project", projectID), zap.Error(err))
		return fmt.Errorf("fetch comments of project %q: %w", projectID, err)
	}
	// Everything collected so far arrived during this epoch's fetch.
	pushed := t.comments.Items()
	t.comments.Reset(list)
	for _, c := range pushed {
		t.comments.Ingest(c)
	}
	t.mu.Unlock()

	t.changed()
	return nil
}

// Unmount releases the binding. Results of calls started before it are dropped.
func (t *CommentThread) Unmount() {
	t.mu.Lock()
	if !t.mounted {
		t.mu.Unlock()
		return
	}
	t.mounted = false
	t.epoch++
	t.submitting = false
	token := t.token
	t.token = realtime.Token{}
	t.mu.Unlock()

	if !token.IsZero() {
		t.sub.Cancel(token)
	}
}

// SetProject moves the thread to another project: the old binding is released
// before the new one is made.
func (t *CommentThread) SetProject(ctx context.Context, projectID string) error {
	t.mu.Lock()
	same := t.projectID == projectID && t.mounted
	t.mu.Unlock()
	if same {
		return nil
	}

	t.Unmount()

	t.mu.Lock()
	t.projectID = projectID
	t.mu.Unlock()

	return t.Mount(ctx)
}

func (t *CommentThread) onComment(epoch uint64) realtime.Handler {
	return func(payload json.RawMessage) {
		c, err := apiclient.Decode[apiclient.Comment]("comment", payload, t.validator)
		if err != nil {
			t.logger.Warn("dropping malformed comment push", zap.Error(err))
			return
		}
		t.mu.Lock()
		added := t.epoch == epoch && t.comments.Ingest(c)
		t.mu.Unlock()

		if added {
			t.changed()
		}
	}
}

// Submit posts content. While the call is in flight a placeholder entry is
// shown and further submits fail with ErrSubmitInFlight. On success the
// confirmed comment replaces the placeholder and the draft is cleared; on
// failure the placeholder is removed and the user is told.
func (t *CommentThread) Submit(ctx context.Context, content string) (apiclient.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return apiclient.Comment{}, apperrors.ErrEmptyContent
	}

	t.mu.Lock()
	if !t.mounted {
		t.mu.Unlock()
		return apiclient.Comment{}, apperrors.ErrNotMounted
	}
	if t.submitting {
		t.mu.Unlock()
		return apiclient.Comment{}, apperrors.ErrSubmitInFlight
	}
	t.submitting = true
	epoch := t.epoch
	projectID := t.projectID
	placeholder := t.placeholderLocked(content)
	t.comments.Ingest(placeholder)
	t.mu.Unlock()
	t.changed()

	created, err := t.api.CreateComment(ctx, projectID, content)

	t.mu.Lock()
	if t.epoch != epoch {
		removed := t.comments.Remove(placeholder.ID)
		t.mu.Unlock()
		if removed {
			t.changed()
		}
		return created, err
	}
	t.submitting = false
	t.comments.Remove(placeholder.ID)
	if err == nil {
		t.comments.ReplaceOrAppend(created)
		t.draft = ""
	}
	t.mu.Unlock()
	t.changed()

	if err != nil {
		t.logger.Error("failed to send comment", zap.String("project", projectID), zap.Error(err))
		t.notifier.Error(msgSendFailed)
		return apiclient.Comment{}, fmt.Errorf("send comment: %w", err)
	}
	return created, nil
}

// SubmitDraft submits the current draft.
func (t *CommentThread) SubmitDraft(ctx context.Context) (apiclient.Comment, error) {
	return t.Submit(ctx, t.Draft())
}

func (t *CommentThread) placeholderLocked(content string) apiclient.Comment {
	t.nextTmp++
	c := apiclient.Comment{
		ID:        fmt.Sprintf("%s%d", placeholderPrefix, t.nextTmp),
		Content:   content,
		CreatedAt: time.Now(),
		ProjectID: t.projectID,
	}
	if user, ok := t.session.User(); ok {
		c.User = apiclient.CommentAuthor{ID: user.ID, Email: user.Email, Role: user.Role}
	}
	return c
}

// CanSubmit reports whether the send action is enabled.
func (t *CommentThread) CanSubmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mounted && !t.submitting && strings.TrimSpace(t.draft) != ""
}

func (t *CommentThread) Draft() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft
}

func (t *CommentThread) SetDraft(s string) {
	t.mu.Lock()
	t.draft = s
	t.mu.Unlock()
}

func (t *CommentThread) Comments() []apiclient.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.comments.Items()
}

func (t *CommentThread) ProjectID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.projectID
}

// IsMine reports whether c was written by the signed-in user.
func (t *CommentThread) IsMine(c apiclient.Comment) bool {
	user, ok := t.session.User()
	return ok && c.User.ID == user.ID
}

// IsPending reports whether c is a placeholder still waiting for the backend.
func IsPending(c apiclient.Comment) bool {
	return strings.HasPrefix(c.ID, placeholderPrefix)
}

// AuthorName is the local part of the author's email.
func AuthorName(c apiclient.Comment) string {
	name, _, _ := strings.Cut(c.User.Email, "@")
	if name == "" {
		return "Unknown"
	}
	return name
}
