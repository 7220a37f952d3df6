package service

import (
	"errors"

	"zeroauth/internal/sentinel"
	dErrors "zeroauth/pkg/domain-errors"
)

// Store error handling: translates sentinel errors into domain errors exactly once.

var (
	errSessionNotFound = dErrors.New(dErrors.CodeNotFound, "session not found")
	errInvalidProof    = dErrors.New(dErrors.CodeVerificationFailed, "invalid proof")
)

// translateStoreError maps a store failure to a domain error. Domain errors
// raised inside an atomic section pass through unchanged.
func translateStoreError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return errSessionNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
