package models

import "time"

// This file contains transport-layer response models for JSON output.

const (
	QRPayloadVersion = 1
	QRActionVerify   = "verify"
)

// VerifierInfo identifies the requesting party and where the wallet posts its proof.
type VerifierInfo struct {
	Name     string `json:"name"`
	DID      string `json:"did"`
	Callback string `json:"callback"`
}

// QRPayload is encoded into the QR code scanned by the holder's wallet.
type QRPayload struct {
	V              int          `json:"v"`
	Action         string       `json:"action"`
	SessionID      string       `json:"session_id"`
	Nonce          string       `json:"nonce"`
	Verifier       VerifierInfo `json:"verifier"`
	RequiredClaims []string     `json:"required_claims"`
	CredentialType string       `json:"credential_type"`
	ExpiresAt      int64        `json:"expires_at"` // unix seconds
}

// CreateSessionResult is the response payload for POST /api/v1/sessions.
type CreateSessionResult struct {
	SessionID string    `json:"session_id"`
	Nonce     string    `json:"nonce"`
	QRPayload QRPayload `json:"qr_payload"`
}

// SessionResult is the full session record returned by GET /api/v1/sessions/{id}.
type SessionResult struct {
	SessionID      string        `json:"session_id"`
	Nonce          string        `json:"nonce"`
	VerifierName   string        `json:"verifier_name"`
	RequiredClaims []string      `json:"required_claims"`
	CredentialType string        `json:"credential_type"`
	Status         string        `json:"status"`
	Proof          *ProofPayload `json:"proof"`
	ExpiresAt      int64         `json:"expires_at"` // unix milliseconds
}

// SuccessResult acknowledges proof submission and revocation.
type SuccessResult struct {
	Success bool `json:"success"`
}

// NewQRPayload builds the wallet-facing payload for a freshly created session.
func NewQRPayload(s *Session, relayDID, callback string) QRPayload {
	return QRPayload{
		V:         QRPayloadVersion,
		Action:    QRActionVerify,
		SessionID: s.ID.String(),
		Nonce:     s.Nonce.String(),
		Verifier: VerifierInfo{
			Name:     s.VerifierName,
			DID:      relayDID,
			Callback: callback,
		},
		RequiredClaims: s.RequiredClaims,
		CredentialType: s.CredentialType.String(),
		ExpiresAt:      s.ExpiresAt.Unix(),
	}
}

// ToResult renders the session as observed at now.
func (s *Session) ToResult(now time.Time) *SessionResult {
	claims := s.RequiredClaims
	if claims == nil {
		claims = []string{}
	}
	return &SessionResult{
		SessionID:      s.ID.String(),
		Nonce:          s.Nonce.String(),
		VerifierName:   s.VerifierName,
		RequiredClaims: claims,
		CredentialType: s.CredentialType.String(),
		Status:         s.EffectiveStatus(now).String(),
		Proof:          s.Proof,
		ExpiresAt:      s.ExpiresAt.UnixMilli(),
	}
}
