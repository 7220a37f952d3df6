package service

import (
	"context"
	"errors"
	"strings"

	"zeroauth/internal/session/metrics"
	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
	dErrors "zeroauth/pkg/domain-errors"
	"zeroauth/pkg/platform/tracer"
)

// CallbackPath returns the proof-submission path for a session.
func CallbackPath(sessionID id.SessionID) string {
	return "/api/v1/sessions/" + sessionID.String() + "/proof"
}

// CreateSession opens a PENDING session and returns the QR payload for the holder.
// callbackBase is the public origin the wallet posts its proof to.
func (s *Service) CreateSession(ctx context.Context, req *models.CreateSessionRequest, callbackBase string) (res *models.CreateSessionResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionCreate)
	defer func() { span.End(err) }()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session := models.NewSession(
		id.NewSessionID(),
		id.NewNonce(),
		req.VerifierName,
		req.RequiredClaims,
		models.CredentialType(req.CredentialType),
		s.clock.Now(),
		s.validity,
	)
	span.SetAttributes(
		tracer.String(tracer.AttrSessionID, session.ID.String()),
		tracer.String(tracer.AttrCredentialType, session.CredentialType.String()),
	)

	if err := s.store.Put(ctx, session.ID, session, s.validity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}

	s.metrics.IncSessionCreated(session.CredentialType.String())
	s.logInfo(ctx, "session created",
		"session_id", session.ID.String(),
		"credential_type", session.CredentialType.String(),
	)

	callback := strings.TrimRight(callbackBase, "/") + CallbackPath(session.ID)
	return &models.CreateSessionResult{
		SessionID: session.ID.String(),
		Nonce:     session.Nonce.String(),
		QRPayload: models.NewQRPayload(session, s.relayDID, callback),
	}, nil
}

// GetSession returns the session record as observed now.
func (s *Service) GetSession(ctx context.Context, sessionID id.SessionID) (res *models.SessionResult, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionGet,
		tracer.String(tracer.AttrSessionID, sessionID.String()))
	defer func() { span.End(err) }()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load session")
	}
	res = session.ToResult(s.clock.Now())
	span.SetAttributes(tracer.String(tracer.AttrStatus, res.Status))
	return res, nil
}

// SubmitProof verifies a holder's proof and completes the session at most once.
// An invalid proof or a verifier fault leaves the session PENDING so the holder
// may retry within the validity window.
func (s *Service) SubmitProof(ctx context.Context, sessionID id.SessionID, proof *models.ProofPayload) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanProofSubmit,
		tracer.String(tracer.AttrSessionID, sessionID.String()))
	defer func() { span.End(err) }()

	if proof == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "proof is required")
	}

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return translateStoreError(err, "failed to load session")
	}
	if err := session.ValidateForSubmit(s.clock.Now()); err != nil {
		s.observeVerification(metrics.OutcomeRejected, 0)
		s.logInfo(ctx, "proof submission rejected",
			"session_id", sessionID.String(),
			"status", session.EffectiveStatus(s.clock.Now()).String(),
		)
		return err
	}
	if err := proof.Validate(); err != nil {
		s.observeVerification(metrics.OutcomeMalformed, 0)
		return err
	}

	if err := s.verify(ctx, session, proof); err != nil {
		return err
	}

	// The record may have changed while the proof was being verified; re-check
	// inside the atomic section so only one submission commits.
	_, err = s.store.Execute(ctx, sessionID,
		func(current *models.Session) error {
			return current.ValidateForSubmit(s.clock.Now())
		},
		func(current *models.Session) {
			current.Complete(proof)
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			s.metrics.IncCommitConflict()
			s.logInfo(ctx, "valid proof lost commit race",
				"session_id", sessionID.String(),
				"reason", err.Error(),
			)
		}
		return translateStoreError(err, "failed to complete session")
	}

	s.metrics.IncSessionCompleted(session.CredentialType.String())
	s.logInfo(ctx, "proof validated, session completed",
		"session_id", sessionID.String(),
		"credential_type", session.CredentialType.String(),
	)
	return nil
}

func (s *Service) verify(ctx context.Context, session *models.Session, proof *models.ProofPayload) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanProofVerify,
		tracer.String(tracer.AttrCredentialType, session.CredentialType.String()))
	defer func() { span.End(err) }()

	start := s.clock.Now()
	valid, verr := s.verifier.Verify(ctx, proof, session.CredentialType)
	elapsed := s.clock.Since(start)

	switch {
	case verr != nil:
		span.SetAttributes(tracer.Bool(tracer.AttrEngineError, true))
		s.proofRejected(ctx, session.ID.String(), metrics.OutcomeEngineError, verr, elapsed)
		return errInvalidProof
	case !valid:
		span.SetAttributes(tracer.Bool(tracer.AttrProofValid, false))
		s.proofRejected(ctx, session.ID.String(), metrics.OutcomeInvalidProof, nil, elapsed)
		return errInvalidProof
	default:
		span.SetAttributes(tracer.Bool(tracer.AttrProofValid, true))
		s.observeVerification(metrics.OutcomeValid, elapsed)
		return nil
	}
}

// errAlreadyTerminal short-circuits revocation of a session that can no longer change.
var errAlreadyTerminal = errors.New("session already terminal")

// RevokeSession cancels a PENDING session. Revoking a terminal session is a
// successful no-op.
func (s *Service) RevokeSession(ctx context.Context, sessionID id.SessionID) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSessionRevoke,
		tracer.String(tracer.AttrSessionID, sessionID.String()))
	defer func() { span.End(err) }()

	_, err = s.store.Execute(ctx, sessionID,
		func(current *models.Session) error {
			if current.EffectiveStatus(s.clock.Now()).IsTerminal() {
				return errAlreadyTerminal
			}
			return nil
		},
		func(current *models.Session) {
			current.Revoke()
		},
	)
	if errors.Is(err, errAlreadyTerminal) {
		span.AddEvent("revoke.noop")
		return nil
	}
	if err != nil {
		return translateStoreError(err, "failed to revoke session")
	}

	s.metrics.IncSessionRevoked()
	s.logInfo(ctx, "session revoked", "session_id", sessionID.String())
	return nil
}
