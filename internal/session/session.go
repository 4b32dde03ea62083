// Package session holds who is signed in. It is built once at startup and
// handed to every view; Logout is the only way to invalidate it and views
// learn about it through Observe.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"portal-realtime/pkg/apiclient"
	apperrors "portal-realtime/pkg/errors"
)

const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// State is the signed-in identity. The zero State is anonymous.
type State struct {
	Token string         `json:"token"`
	User  apiclient.User `json:"user"`
}

func (s State) SignedIn() bool { return s.Token != "" && s.User.ID != "" }

// Authenticator exchanges credentials for a token; *apiclient.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (apiclient.AuthResult, error)
}

type Observer func(State)

type Session struct {
	store  Store
	logger *zap.Logger

	mu        sync.RWMutex
	state     State
	observers map[int]Observer
	nextID    int
}

// New restores a stored session if there is one.
func New(store Store, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{store: store, logger: logger, observers: make(map[int]Observer)}
	st, err := store.Load()
	switch {
	case errors.Is(err, apperrors.ErrNoSession):
	case err != nil:
		return nil, fmt.Errorf("restoring session: %w", err)
	default:
		s.state = st
	}
	return s, nil
}

func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the bearer token; it fits apiclient.TokenFunc.
func (s *Session) Token() string {
	return s.Current().Token
}

func (s *Session) User() (apiclient.User, bool) {
	st := s.Current()
	return st.User, st.SignedIn()
}

func (s *Session) Login(ctx context.Context, auth Authenticator, email, password string) (State, error) {
	res, err := auth.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return State{}, fmt.Errorf("login: %w", err)
	}
	st := State{Token: res.AccessToken, User: res.User}
	if err := s.Set(st); err != nil {
		return State{}, err
	}
	s.logger.Info("signed in", zap.String("user", st.User.ID), zap.String("role", st.User.Role))
	return st, nil
}

// Set replaces the signed-in state, e.g. after registering.
func (s *Session) Set(st State) error {
	if !st.SignedIn() {
		return apperrors.ErrNoSession
	}
	if err := s.store.Save(st); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify(st)
	return nil
}

// Logout clears the stored session and tells every observer. The in-memory
// state is cleared even if the store fails.
func (s *Session) Logout() error {
	s.mu.Lock()
	wasSignedIn := s.state.SignedIn()
	s.state = State{}
	s.mu.Unlock()

	err := s.store.Clear()
	if wasSignedIn {
		s.notify(State{})
	}
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Observe calls fn after every login and logout until the returned func is called.
func (s *Session) Observe(fn Observer) (stop func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notify(st State) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(st)
	}
}
