// Package client provides the authenticated HTTP pipeline for the MDD API.
// It includes bearer token storage, a coordinated token refresh, and an
// http.RoundTripper that wires the two into every outgoing API call.
package client

import (
	"log/slog"
	"sync"
)

// DefaultTokenKey is the storage key holding the bearer token
const DefaultTokenKey = "access_token"

// Storage is a durable key-value store that may fail (restricted or
// unavailable backing storage). A missing key returns ok == false and no error.
type Storage interface {
	// GetItem returns the value stored under key
	GetItem(key string) (value string, ok bool, err error)

	// SetItem stores value under key
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error
}

// TokenStore holds the single bearer token for this process.
// None of its methods fail: storage errors read as absence or are ignored.
type TokenStore interface {
	// Get returns the stored token, or ok == false if there is none
	Get() (token string, ok bool)

	// Set persists token (best effort)
	Set(token string)

	// Clear removes the token (best effort)
	Clear()
}

// TokenStoreOption configures the store returned by NewTokenStore
type TokenStoreOption func(*storageTokenStore)

// WithTokenKey overrides the storage key (defaults to DefaultTokenKey)
func WithTokenKey(key string) TokenStoreOption {
	return func(s *storageTokenStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStoreLogger sets the logger used to report swallowed storage failures
func WithStoreLogger(logger *slog.Logger) TokenStoreOption {
	return func(s *storageTokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// storageTokenStore keeps the token under a fixed key of a Storage
type storageTokenStore struct {
	storage Storage
	key     string
	logger  *slog.Logger
}

// NewTokenStore creates a TokenStore on top of storage
func NewTokenStore(storage Storage, opts ...TokenStoreOption) TokenStore {
	s := &storageTokenStore{
		storage: storage,
		key:     DefaultTokenKey,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *storageTokenStore) Get() (string, bool) {
	if s.storage == nil {
		return "", false
	}
	value, ok, err := s.storage.GetItem(s.key)
	if err != nil {
		s.logger.Debug("token storage read failed", "key", s.key, "err", err)
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (s *storageTokenStore) Set(token string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SetItem(s.key, token); err != nil {
		s.logger.Debug("token storage write failed", "key", s.key, "err", err)
	}
}

func (s *storageTokenStore) Clear() {
	if s.storage == nil {
		return
	}
	if err := s.storage.RemoveItem(s.key); err != nil {
		s.logger.Debug("token storage clear failed", "key", s.key, "err", err)
	}
}

// MemoryStorage is an in-process Storage. It never fails.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem implements Storage
func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok, nil
}

// SetItem implements Storage
func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem implements Storage
func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// NewMemoryTokenStore is shorthand for a TokenStore over a fresh MemoryStorage
func NewMemoryTokenStore() TokenStore {
	return NewTokenStore(NewMemoryStorage())
}
