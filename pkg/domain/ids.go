// Package domain provides type-safe identifiers for relay sessions.
package domain

import (
	"github.com/google/uuid"

	dErrors "zeroauth/pkg/domain-errors"
)

// SessionID is the public handle shared by verifier and holder.
type SessionID uuid.UUID

// Nonce is the single-use challenge embedded in a session's QR payload.
type Nonce string

// NewSessionID returns a fresh random (v4) session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// NewNonce returns a fresh random nonce.
func NewNonce() Nonce {
	return Nonce(uuid.NewString())
}

// ParseSessionID validates a session identifier at a trust boundary (path params).
func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (n Nonce) String() string { return string(n) }

// parseUUID is the shared validation logic. The nil UUID is never issued,
// so it is rejected along with malformed input.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
