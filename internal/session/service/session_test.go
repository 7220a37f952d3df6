package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/mock/gomock"

	"zeroauth/internal/sentinel"
	"zeroauth/internal/session/models"
	"zeroauth/internal/session/verifier"
	id "zeroauth/pkg/domain"
	dErrors "zeroauth/pkg/domain-errors"
)

func (s *ServiceSuite) TestCreateSession() {
	s.Run("stores a pending session and builds the QR payload", func() {
		var stored *models.Session
		s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), DefaultValidity).
			DoAndReturn(func(_ any, sessionID id.SessionID, session *models.Session, _ time.Duration) error {
				s.Equal(session.ID, sessionID)
				stored = session
				return nil
			})

		res, err := s.service.CreateSession(s.ctx, &models.CreateSessionRequest{
			VerifierName:   "Acme Bar",
			RequiredClaims: []string{"age_over_18"},
		}, "https://relay.example/")
		s.Require().NoError(err)
		s.Require().NotNil(stored)

		s.Equal(models.SessionStatusPending, stored.Status)
		s.Nil(stored.Proof)
		s.Equal(models.CredentialTypeAge, stored.CredentialType, "credential type defaults")
		s.Equal(s.clock.Now().Add(5*time.Minute), stored.ExpiresAt)

		s.Equal(stored.ID.String(), res.SessionID)
		s.Equal(stored.Nonce.String(), res.Nonce)
		qr := res.QRPayload
		s.Equal(1, qr.V)
		s.Equal("verify", qr.Action)
		s.Equal(res.SessionID, qr.SessionID)
		s.Equal(res.Nonce, qr.Nonce)
		s.Equal("did:web:relay.test", qr.Verifier.DID)
		s.Equal("https://relay.example/api/v1/sessions/"+res.SessionID+"/proof", qr.Verifier.Callback)
		s.Equal([]string{"age_over_18"}, qr.RequiredClaims)
		s.Equal("Age Verification", qr.CredentialType)
		s.Equal(stored.ExpiresAt.Unix(), qr.ExpiresAt)
	})

	s.Run("invalid input never reaches the store", func() {
		_, err := s.service.CreateSession(s.ctx, &models.CreateSessionRequest{
			VerifierName:   "",
			RequiredClaims: []string{},
		}, "https://relay.example")
		s.Require().Error(err)
		s.True(dErrors.IsClientError(err))

		_, err = s.service.CreateSession(s.ctx, nil, "https://relay.example")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("dial tcp: connection refused"))

		_, err := s.service.CreateSession(s.ctx, &models.CreateSessionRequest{
			VerifierName:   "Acme Bar",
			RequiredClaims: []string{},
		}, "https://relay.example")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestGetSession() {
	s.Run("returns the record", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)

		res, err := s.service.GetSession(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(session.ID.String(), res.SessionID)
		s.Equal("PENDING", res.Status)
		s.Nil(res.Proof)
	})

	s.Run("pending past expiry reads as expired", func() {
		session := s.newPendingSession()
		session.ExpiresAt = s.clock.Now().Add(-time.Second)
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session, nil)

		res, err := s.service.GetSession(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal("EXPIRED", res.Status)
	})

	s.Run("absent session is not found", func() {
		missing := id.NewSessionID()
		s.mockStore.EXPECT().Get(gomock.Any(), missing).
			Return(nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound))

		res, err := s.service.GetSession(s.ctx, missing)
		s.Nil(res)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("i/o timeout"))

		_, err := s.service.GetSession(s.ctx, id.NewSessionID())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSubmitProof() {
	s.Run("valid proof completes the session", func() {
		session := s.newPendingSession()
		proof := testProof()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), proof, models.CredentialTypeAge).Return(true, nil)
		s.mockStore.EXPECT().Execute(gomock.Any(), session.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(executeOn(session))

		s.Require().NoError(s.service.SubmitProof(s.ctx, session.ID, proof))
		s.Equal(models.SessionStatusCompleted, session.Status)
		s.Equal(proof, session.Proof)
	})

	s.Run("invalid proof leaves session pending", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)

		err := s.service.SubmitProof(s.ctx, session.ID, testProof())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
		s.Equal("invalid proof", err.Error())
	})

	s.Run("engine fault fails closed", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false, verifier.ErrTimeout)

		err := s.service.SubmitProof(s.ctx, session.ID, testProof())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeVerificationFailed))
		s.NotErrorIs(err, verifier.ErrEngine, "engine details are not surfaced")
	})

	s.Run("terminal sessions are rejected without verifying", func() {
		completed := s.newPendingSession()
		completed.Complete(testProof())
		revoked := s.newPendingSession()
		revoked.Revoke()
		expired := s.newPendingSession()
		expired.ExpiresAt = s.clock.Now().Add(-time.Minute)

		for _, tc := range []struct {
			session *models.Session
			msg     string
		}{
			{completed, "session already completed"},
			{revoked, "session revoked"},
			{expired, "session expired"},
		} {
			s.mockStore.EXPECT().Get(gomock.Any(), tc.session.ID).Return(tc.session, nil)

			err := s.service.SubmitProof(s.ctx, tc.session.ID, testProof())
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
			s.Equal(tc.msg, err.Error())
		}
	})

	s.Run("losing a commit race reports already completed", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

		winner := session.Clone()
		winner.Complete(testProof())
		s.mockStore.EXPECT().Execute(gomock.Any(), session.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(executeOn(winner))

		loserProof := testProof()
		loserProof.PublicSignals = []string{"2"}
		err := s.service.SubmitProof(s.ctx, session.ID, loserProof)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Equal([]string{"1"}, winner.Proof.PublicSignals, "winner's proof is never overwritten")
	})

	s.Run("absent session is not found", func() {
		missing := id.NewSessionID()
		s.mockStore.EXPECT().Get(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		err := s.service.SubmitProof(s.ctx, missing, testProof())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("session reaped during verification is not found", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
		s.mockStore.EXPECT().Execute(gomock.Any(), session.ID, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		err := s.service.SubmitProof(s.ctx, session.ID, testProof())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("commit failure is internal", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		s.mockVerifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
		s.mockStore.EXPECT().Execute(gomock.Any(), session.ID, gomock.Any(), gomock.Any()).
			Return(nil, errors.New("READONLY You can't write against a read only replica"))

		err := s.service.SubmitProof(s.ctx, session.ID, testProof())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("incomplete payload is a validation error after lookup", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Get(gomock.Any(), session.ID).Return(session.Clone(), nil)
		proof := testProof()
		proof.PiC = nil

		err := s.service.SubmitProof(s.ctx, session.ID, proof)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("pi_c is required", err.Error())
	})

	s.Run("incomplete payload for absent session is not found", func() {
		missing := id.NewSessionID()
		s.mockStore.EXPECT().Get(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		err := s.service.SubmitProof(s.ctx, missing, &models.ProofPayload{Protocol: "groth16"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("incomplete payload for completed session reports state", func() {
		completed := s.newPendingSession()
		completed.Complete(testProof())
		s.mockStore.EXPECT().Get(gomock.Any(), completed.ID).Return(completed, nil)

		err := s.service.SubmitProof(s.ctx, completed.ID, &models.ProofPayload{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("nil proof rejected", func() {
		err := s.service.SubmitProof(s.ctx, id.NewSessionID(), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestRevokeSession() {
	s.Run("pending becomes revoked", func() {
		session := s.newPendingSession()
		s.mockStore.EXPECT().Execute(gomock.Any(), session.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(executeOn(session))

		s.Require().NoError(s.service.RevokeSession(s.ctx, session.ID))
		s.Equal(models.SessionStatusRevoked, session.Status)
	})

	s.Run("terminal sessions are a no-op success", func() {
		completed := s.newPendingSession()
		completed.Complete(testProof())
		s.mockStore.EXPECT().Execute(gomock.Any(), completed.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(executeOn(completed))

		s.Require().NoError(s.service.RevokeSession(s.ctx, completed.ID))
		s.Equal(models.SessionStatusCompleted, completed.Status)
		s.NotNil(completed.Proof)
	})

	s.Run("absent session is not found", func() {
		missing := id.NewSessionID()
		s.mockStore.EXPECT().Execute(gomock.Any(), missing, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		err := s.service.RevokeSession(s.ctx, missing)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestTranslateStoreError() {
	domainErr := dErrors.New(dErrors.CodeInvalidState, "session revoked")
	s.Same(domainErr, translateStoreError(domainErr, "x"))
	s.True(dErrors.HasCode(translateStoreError(sentinel.ErrConflict, "x"), dErrors.CodeInvalidState))
	s.Nil(translateStoreError(nil, "x"))
}
