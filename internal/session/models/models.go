package models

import (
	"slices"
	"time"

	id "zeroauth/pkg/domain"
	dErrors "zeroauth/pkg/domain-errors"
)

// This file contains the pure domain model of a verification session.
// Wire shapes live in requests.go and responses.go.

// Session is a single verification handshake between a verifier and a holder.
type Session struct {
	ID             id.SessionID
	Nonce          id.Nonce
	VerifierName   string
	RequiredClaims []string
	CredentialType CredentialType
	Status         SessionStatus
	Proof          *ProofPayload // set iff Status == COMPLETED

	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession builds a fresh PENDING session valid for the given window.
func NewSession(sessionID id.SessionID, nonce id.Nonce, verifierName string, claims []string,
	credentialType CredentialType, now time.Time, validity time.Duration,
) *Session {
	if claims == nil {
		claims = []string{}
	}
	return &Session{
		ID:             sessionID,
		Nonce:          nonce,
		VerifierName:   verifierName,
		RequiredClaims: claims,
		CredentialType: credentialType,
		Status:         SessionStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(validity),
	}
}

func (s *Session) IsPending() bool { return s.Status == SessionStatusPending }

// IsTerminal reports whether the stored status admits no further transition.
func (s *Session) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// IsExpired reports whether the validity window has closed at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// EffectiveStatus is the status observed at now: a PENDING session whose
// window has closed reads as EXPIRED without the stored record being rewritten.
func (s *Session) EffectiveStatus(now time.Time) SessionStatus {
	if s.IsPending() && s.IsExpired(now) {
		return SessionStatusExpired
	}
	return s.Status
}

// ValidateForSubmit checks that the session can accept a proof at now.
func (s *Session) ValidateForSubmit(now time.Time) error {
	switch s.EffectiveStatus(now) {
	case SessionStatusPending:
		return nil
	case SessionStatusRevoked:
		return dErrors.New(dErrors.CodeInvalidState, "session revoked")
	case SessionStatusExpired:
		return dErrors.New(dErrors.CodeInvalidState, "session expired")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "session already completed")
	}
}

// Complete transitions PENDING to COMPLETED and attaches the accepted proof.
// Returns false if the session was not pending.
func (s *Session) Complete(proof *ProofPayload) bool {
	if proof == nil || !s.Status.CanTransitionTo(SessionStatusCompleted) {
		return false
	}
	s.Status = SessionStatusCompleted
	s.Proof = proof.Clone()
	return true
}

// Revoke transitions PENDING to REVOKED.
// Returns false if the session was already terminal.
func (s *Session) Revoke() bool {
	if !s.Status.CanTransitionTo(SessionStatusRevoked) {
		return false
	}
	s.Status = SessionStatusRevoked
	return true
}

// IsReapable reports whether the reaper should delete the record at now.
// REVOKED and EXPIRED records go immediately; anything else once grace has
// elapsed past expiry.
func (s *Session) IsReapable(now time.Time, grace time.Duration) bool {
	if s.Status == SessionStatusRevoked || s.Status == SessionStatusExpired {
		return true
	}
	return now.After(s.ExpiresAt.Add(grace))
}

// Clone returns a deep copy so callers never share mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.RequiredClaims = slices.Clone(s.RequiredClaims)
	if c.RequiredClaims == nil {
		c.RequiredClaims = []string{}
	}
	c.Proof = s.Proof.Clone()
	return &c
}

// ProofPayload is a Groth16 proof as produced by the holder's wallet.
// The relay passes it to the verifier engine without interpreting it.
type ProofPayload struct {
	PiA           []string   `json:"pi_a" validate:"required"`
	PiB           [][]string `json:"pi_b" validate:"required"`
	PiC           []string   `json:"pi_c" validate:"required"`
	Protocol      string     `json:"protocol" validate:"required"`
	Curve         string     `json:"curve" validate:"required"`
	PublicSignals []string   `json:"publicSignals" validate:"required"`
}

// Clone returns a deep copy of the payload.
func (p *ProofPayload) Clone() *ProofPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.PiA = slices.Clone(p.PiA)
	c.PiC = slices.Clone(p.PiC)
	c.PublicSignals = slices.Clone(p.PublicSignals)
	if p.PiB != nil {
		c.PiB = make([][]string, len(p.PiB))
		for i, row := range p.PiB {
			c.PiB[i] = slices.Clone(row)
		}
	}
	return &c
}
