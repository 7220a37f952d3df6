package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"zeroauth/internal/sentinel"
	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
)

const (
	// maxExecuteAttempts bounds optimistic-lock retries when a watched key
	// changes between read and commit.
	maxExecuteAttempts = 5

	scanBatchSize = 100
)

// RedisStore persists sessions in Redis.
// This is the production implementation: records are shared by every relay
// instance and expire through native key TTLs.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Put writes the full record, replacing any prior value, with the given TTL.
func (s *RedisStore) Put(ctx context.Context, sessionID id.SessionID, session *models.Session, ttl time.Duration) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(data)
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListKeys returns the IDs of stored sessions whose ID starts with prefix.
// SCAN is used instead of KEYS so a large keyspace never blocks the server.
func (s *RedisStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	pattern := KeyPrefix + escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	var ids []string
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			sid := idFromKey(key)
			if _, dup := seen[sid]; dup {
				continue
			}
			seen[sid] = struct{}{}
			ids = append(ids, sid)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// Execute atomically validates and mutates a session under optimistic lock.
// The key is WATCHed; if another writer commits first the transaction aborts
// and the read-validate-mutate cycle is retried against the committed value.
// The key's remaining TTL is preserved.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, validate ValidateFunc, mutate MutateFunc) (*models.Session, error) {
	key := sessionKey(sessionID)
	var result *models.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session for execute: %w", err)
		}

		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err // Domain error from callback - passed through unchanged
		}
		mutate(session)

		newData, err := encodeSession(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}

	for range maxExecuteAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("execute session update: %w", sentinel.ErrConflict)
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
