package service

import (
	"context"
	"time"

	"zeroauth/internal/session/metrics"
	"zeroauth/pkg/requestcontext"
)

// Observability helpers for logging and metrics.

func (s *Service) logInfo(ctx context.Context, msg string, attributes ...any) {
	s.logger.InfoContext(ctx, msg, s.withRequestID(ctx, attributes)...)
}

func (s *Service) logWarn(ctx context.Context, msg string, attributes ...any) {
	s.logger.WarnContext(ctx, msg, s.withRequestID(ctx, attributes)...)
}

func (s *Service) logError(ctx context.Context, msg string, attributes ...any) {
	s.logger.ErrorContext(ctx, msg, s.withRequestID(ctx, attributes)...)
}

func (s *Service) withRequestID(ctx context.Context, attributes []any) []any {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	return attributes
}

func (s *Service) observeVerification(outcome string, elapsed time.Duration) {
	s.metrics.ObserveVerification(outcome, elapsed)
}

// proofRejected logs a failed verification. Engine faults are logged at error
// level so they stay distinguishable from a clean invalid verdict.
func (s *Service) proofRejected(ctx context.Context, sessionID string, outcome string, err error, elapsed time.Duration) {
	s.observeVerification(outcome, elapsed)
	if outcome == metrics.OutcomeEngineError {
		s.logError(ctx, "proof verification failed",
			"session_id", sessionID,
			"reason", outcome,
			"error", err,
		)
		return
	}
	s.logWarn(ctx, "proof rejected",
		"session_id", sessionID,
		"reason", outcome,
	)
}
