package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"zeroauth/internal/sentinel"
	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
	psync "zeroauth/pkg/platform/sync"
)

type memoryEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// InMemoryStore is a process-local test double for the Redis store. TTLs are honoured on read; records are copied in and out so
// callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	keyLocks *psync.ShardedMutex
	clock    clock.Clock
	entries  map[string]memoryEntry
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock injects the time source used for TTL checks.
func WithClock(c clock.Clock) InMemoryOption {
	return func(s *InMemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		keyLocks: psync.NewShardedMutex(),
		clock:    clock.New(),
		entries:  make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Put(_ context.Context, sessionID id.SessionID, session *models.Session, ttl time.Duration) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	key := sessionKey(sessionID)
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{session: session.Clone(), expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	entry, ok := s.live(sessionKey(sessionID))
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return entry.session.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	key := sessionKey(sessionID)
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// ListKeys returns the IDs of live sessions whose ID starts with prefix.
// Entries past their TTL are evicted as they are encountered.
func (s *InMemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			continue
		}
		sid := idFromKey(key)
		if strings.HasPrefix(sid, prefix) {
			ids = append(ids, sid)
		}
	}
	return ids, nil
}

// Execute atomically validates and mutates a session while holding its key lock.
// The entry's expiry is left unchanged.
func (s *InMemoryStore) Execute(_ context.Context, sessionID id.SessionID, validate ValidateFunc, mutate MutateFunc) (*models.Session, error) {
	key := sessionKey(sessionID)
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	entry, ok := s.live(key)
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	session := entry.session.Clone()
	if err := validate(session); err != nil {
		return nil, err
	}
	mutate(session)

	s.mu.Lock()
	s.entries[key] = memoryEntry{session: session.Clone(), expiresAt: entry.expiresAt}
	s.mu.Unlock()
	return session, nil
}

func (s *InMemoryStore) live(key string) (memoryEntry, bool) {
	now := s.clock.Now()
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !now.Before(entry.expiresAt) {
		return memoryEntry{}, false
	}
	return entry, true
}
