package models

import "slices"

// SessionStatus represents the lifecycle state of a verification session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusRevoked   SessionStatus = "REVOKED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusCompleted, SessionStatusRevoked, SessionStatusExpired:
		return true
	default:
		return false
	}
}

func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no transition is defined out of s.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusRevoked || s == SessionStatusExpired
}

// CanTransitionTo checks if a transition from the current status to the target is valid.
// Valid transitions:
// - PENDING -> COMPLETED (accepted proof)
// - PENDING -> REVOKED (verifier cancellation)
// - PENDING -> EXPIRED (validity window closed)
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	if s != SessionStatusPending {
		return false
	}
	return target == SessionStatusCompleted || target == SessionStatusRevoked || target == SessionStatusExpired
}

// CredentialType selects the verification-key family that applies to a session.
type CredentialType string

const (
	CredentialTypeAge     CredentialType = "Age Verification"
	CredentialTypeStudent CredentialType = "Student ID"

	DefaultCredentialType = CredentialTypeAge
)

// SupportedCredentialTypes lists every credential type with a verification key.
var SupportedCredentialTypes = []CredentialType{CredentialTypeAge, CredentialTypeStudent}

func (c CredentialType) IsValid() bool {
	return slices.Contains(SupportedCredentialTypes, c)
}

func (c CredentialType) String() string {
	return string(c)
}
