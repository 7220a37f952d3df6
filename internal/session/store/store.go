// Package store persists verification sessions with a per-record time-to-live.
//
// Error contract:
//   - Get and Execute return sentinel.ErrNotFound (wrapped) when the record is
//     absent or its TTL has elapsed.
//   - Delete is idempotent.
//   - Validation errors returned from an Execute callback are passed through unchanged.
//   - Infrastructure failures are wrapped with context.
package store

import (
	"strings"

	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
)

// KeyPrefix namespaces session records from any other stored entity.
const KeyPrefix = "session:"

// ValidateFunc inspects the current record inside the atomic section.
type ValidateFunc = func(*models.Session) error

// MutateFunc changes the record inside the atomic section.
type MutateFunc = func(*models.Session)

func sessionKey(sessionID id.SessionID) string {
	return KeyPrefix + sessionID.String()
}

func idFromKey(key string) string {
	return strings.TrimPrefix(key, KeyPrefix)
}
