package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"

	apperrors "portal-realtime/pkg/errors"
)

const (
	serviceName = "portal-watch"
	itemKey     = "session"
)

// Store persists the signed-in state between runs.
type Store interface {
	// Load returns apperrors.ErrNoSession when nothing is stored.
	Load() (State, error)
	Save(State) error
	Clear() error
}

// KeyringStore keeps the session in the OS keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under fileDir when no native backend is available.
func OpenKeyring(fileDir, filePassword string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Load() (State, error) {
	item, err := s.ring.Get(itemKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return State{}, apperrors.ErrNoSession
	}
	if err != nil {
		return State{}, fmt.Errorf("getting session: %w", err)
	}
	var st State
	if err := json.Unmarshal(item.Data, &st); err != nil {
		return State{}, fmt.Errorf("decoding stored session: %w", err)
	}
	return st, nil
}

func (s *KeyringStore) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.ring.Set(keyring.Item{Key: itemKey, Data: data, Label: "portal session"}); err != nil {
		return fmt.Errorf("setting session: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	err := s.ring.Remove(itemKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return State{}, apperrors.ErrNoSession
	}
	return *s.state, nil
}

func (s *MemoryStore) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &st
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}
