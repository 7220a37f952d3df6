package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zeroauth/pkg/domain"
	dErrors "zeroauth/pkg/domain-errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPending() *Session {
	return NewSession(id.NewSessionID(), id.NewNonce(), "Acme Bar", []string{"age_over_18"},
		CredentialTypeAge, testNow, 5*time.Minute)
}

func testProof() *ProofPayload {
	return &ProofPayload{
		PiA:           []string{"1", "2", "1"},
		PiB:           [][]string{{"1", "2"}, {"3", "4"}, {"1", "0"}},
		PiC:           []string{"5", "6", "1"},
		Protocol:      "groth16",
		Curve:         "bn128",
		PublicSignals: []string{"1"},
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession(id.NewSessionID(), id.NewNonce(), "Acme", nil, CredentialTypeStudent, testNow, 5*time.Minute)

	assert.Equal(t, SessionStatusPending, s.Status)
	assert.Nil(t, s.Proof)
	assert.NotNil(t, s.RequiredClaims, "claims are never nil")
	assert.Equal(t, testNow.Add(5*time.Minute), s.ExpiresAt)
	assert.Equal(t, testNow, s.CreatedAt)
}

func TestSession_Complete(t *testing.T) {
	t.Run("pending session completes with a copy of the proof", func(t *testing.T) {
		s := newPending()
		p := testProof()

		require.True(t, s.Complete(p))
		assert.Equal(t, SessionStatusCompleted, s.Status)
		assert.Equal(t, p, s.Proof)

		p.PiA[0] = "mutated"
		assert.Equal(t, "1", s.Proof.PiA[0], "stored proof must not alias caller input")
	})

	t.Run("second proof never replaces the first", func(t *testing.T) {
		s := newPending()
		first := testProof()
		require.True(t, s.Complete(first))

		second := testProof()
		second.PublicSignals = []string{"0"}
		assert.False(t, s.Complete(second))
		assert.Equal(t, []string{"1"}, s.Proof.PublicSignals)
	})

	t.Run("revoked session cannot complete", func(t *testing.T) {
		s := newPending()
		s.Revoke()
		assert.False(t, s.Complete(testProof()))
		assert.Nil(t, s.Proof)
	})

	t.Run("nil proof rejected", func(t *testing.T) {
		s := newPending()
		assert.False(t, s.Complete(nil))
		assert.True(t, s.IsPending())
	})
}

func TestSession_Revoke(t *testing.T) {
	s := newPending()
	assert.True(t, s.Revoke())
	assert.Equal(t, SessionStatusRevoked, s.Status)
	assert.False(t, s.Revoke(), "revoking twice is a no-op")

	completed := newPending()
	completed.Complete(testProof())
	assert.False(t, completed.Revoke())
	assert.Equal(t, SessionStatusCompleted, completed.Status)
}

func TestSession_EffectiveStatus(t *testing.T) {
	s := newPending()

	assert.Equal(t, SessionStatusPending, s.EffectiveStatus(testNow))
	assert.Equal(t, SessionStatusPending, s.EffectiveStatus(s.ExpiresAt), "boundary is still valid")
	assert.Equal(t, SessionStatusExpired, s.EffectiveStatus(s.ExpiresAt.Add(time.Millisecond)))
	assert.Equal(t, SessionStatusPending, s.Status, "projection never rewrites the record")

	s.Complete(testProof())
	assert.Equal(t, SessionStatusCompleted, s.EffectiveStatus(s.ExpiresAt.Add(time.Hour)))
}

func TestSession_ValidateForSubmit(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Session)
		at      func(*Session) time.Time
		wantMsg string
	}{
		{"pending", func(*Session) {}, func(*Session) time.Time { return testNow }, ""},
		{"completed", func(s *Session) { s.Complete(testProof()) }, func(*Session) time.Time { return testNow }, "session already completed"},
		{"revoked", func(s *Session) { s.Revoke() }, func(*Session) time.Time { return testNow }, "session revoked"},
		{"expired", func(*Session) {}, func(s *Session) time.Time { return s.ExpiresAt.Add(time.Second) }, "session expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPending()
			tt.setup(s)
			err := s.ValidateForSubmit(tt.at(s))
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestSession_IsReapable(t *testing.T) {
	grace := time.Hour

	pending := newPending()
	assert.False(t, pending.IsReapable(testNow, grace), "pending within window is kept")
	assert.False(t, pending.IsReapable(pending.ExpiresAt.Add(30*time.Minute), grace), "stale pending inside grace is kept")
	assert.True(t, pending.IsReapable(pending.ExpiresAt.Add(grace+time.Second), grace))

	revoked := newPending()
	revoked.Revoke()
	assert.True(t, revoked.IsReapable(testNow, grace), "revoked goes regardless of expiry")

	expired := newPending()
	expired.Status = SessionStatusExpired
	assert.True(t, expired.IsReapable(testNow, grace))

	completed := newPending()
	completed.Complete(testProof())
	assert.False(t, completed.IsReapable(completed.ExpiresAt.Add(grace), grace))
	assert.True(t, completed.IsReapable(completed.ExpiresAt.Add(grace+time.Minute), grace))
}

func TestSession_Clone(t *testing.T) {
	s := newPending()
	s.Complete(testProof())

	c := s.Clone()
	require.Equal(t, s, c)

	c.RequiredClaims[0] = "changed"
	c.Proof.PiB[0][0] = "changed"
	assert.Equal(t, "age_over_18", s.RequiredClaims[0])
	assert.Equal(t, "1", s.Proof.PiB[0][0])

	var nilSession *Session
	assert.Nil(t, nilSession.Clone())
}

func TestSessionStatus(t *testing.T) {
	assert.True(t, SessionStatusPending.CanTransitionTo(SessionStatusCompleted))
	assert.True(t, SessionStatusPending.CanTransitionTo(SessionStatusRevoked))
	assert.True(t, SessionStatusPending.CanTransitionTo(SessionStatusExpired))
	for _, terminal := range []SessionStatus{SessionStatusCompleted, SessionStatusRevoked, SessionStatusExpired} {
		assert.True(t, terminal.IsTerminal())
		for _, target := range []SessionStatus{SessionStatusPending, SessionStatusCompleted, SessionStatusRevoked, SessionStatusExpired} {
			assert.False(t, terminal.CanTransitionTo(target), "%s -> %s", terminal, target)
		}
	}
	assert.False(t, SessionStatus("DONE").IsValid())
}

func TestQRPayloadAndResult(t *testing.T) {
	s := newPending()
	qr := NewQRPayload(s, "did:web:relay.zeroauth.app", "https://relay.example/api/v1/sessions/"+s.ID.String()+"/proof")

	assert.Equal(t, 1, qr.V)
	assert.Equal(t, "verify", qr.Action)
	assert.Equal(t, s.ID.String(), qr.SessionID)
	assert.Equal(t, s.Nonce.String(), qr.Nonce)
	assert.Equal(t, "Acme Bar", qr.Verifier.Name)
	assert.Equal(t, s.ExpiresAt.Unix(), qr.ExpiresAt, "QR expiry is in seconds")

	res := s.ToResult(testNow)
	assert.Equal(t, "PENDING", res.Status)
	assert.Nil(t, res.Proof)
	assert.Equal(t, s.ExpiresAt.UnixMilli(), res.ExpiresAt, "record expiry is in milliseconds")
	assert.Equal(t, "EXPIRED", s.ToResult(s.ExpiresAt.Add(time.Second)).Status)
}
