package store

import (
	"encoding/json"
	"fmt"
	"time"

	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
)

// sessionJSON is the stored representation of a Session.
// Timestamps are unix milliseconds.
type sessionJSON struct {
	SessionID      string               `json:"session_id"`
	Nonce          string               `json:"nonce"`
	VerifierName   string               `json:"verifier_name"`
	RequiredClaims []string             `json:"required_claims"`
	CredentialType string               `json:"credential_type"`
	Status         string               `json:"status"`
	Proof          *models.ProofPayload `json:"proof"`
	ExpiresAt      int64                `json:"expires_at"`
	CreatedAt      int64                `json:"created_at,omitempty"`
}

func encodeSession(s *models.Session) ([]byte, error) {
	claims := s.RequiredClaims
	if claims == nil {
		claims = []string{}
	}
	j := sessionJSON{
		SessionID:      s.ID.String(),
		Nonce:          s.Nonce.String(),
		VerifierName:   s.VerifierName,
		RequiredClaims: claims,
		CredentialType: s.CredentialType.String(),
		Status:         s.Status.String(),
		Proof:          s.Proof,
		ExpiresAt:      s.ExpiresAt.UnixMilli(),
	}
	if !s.CreatedAt.IsZero() {
		j.CreatedAt = s.CreatedAt.UnixMilli()
	}
	data, err := json.Marshal(&j)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (*models.Session, error) {
	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	sessionID, err := id.ParseSessionID(j.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	status := models.SessionStatus(j.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown session status %q", j.Status)
	}
	claims := j.RequiredClaims
	if claims == nil {
		claims = []string{}
	}
	s := &models.Session{
		ID:             sessionID,
		Nonce:          id.Nonce(j.Nonce),
		VerifierName:   j.VerifierName,
		RequiredClaims: claims,
		CredentialType: models.CredentialType(j.CredentialType),
		Status:         status,
		Proof:          j.Proof,
		ExpiresAt:      time.UnixMilli(j.ExpiresAt),
	}
	if j.CreatedAt != 0 {
		s.CreatedAt = time.UnixMilli(j.CreatedAt)
	}
	return s, nil
}
