// Package verifier checks holder proofs against per-credential-type Groth16
// verification keys. Every engine fault, including timeouts, is reported as
// an error wrapping ErrEngine so callers can fail closed.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zeroauth/internal/session/models"
	"zeroauth/pkg/platform/circuit"
)

const DefaultTimeout = 10 * time.Second

// KeySource resolves the verification key for a credential type.
type KeySource interface {
	Key(credentialType models.CredentialType) (*VerificationKey, error)
}

// Verifier bounds each engine call by a timeout and guards the engine with a
// circuit breaker. While the circuit is open calls fail fast with ErrCircuitOpen.
type Verifier struct {
	keys    KeySource
	engine  Engine
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTimeout sets the upper bound on a single verification.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(v *Verifier) {
		if b != nil {
			v.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Verifier backed by the given key source and engine.
func New(keys KeySource, engine Engine, opts ...Option) *Verifier {
	v := &Verifier{
		keys:    keys,
		engine:  engine,
		timeout: DefaultTimeout,
		breaker: circuit.New("proof_engine"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verdict struct {
	valid bool
	err   error
}

// Verify reports whether proof is valid for the credential type.
func (v *Verifier) Verify(ctx context.Context, proof *models.ProofPayload, credentialType models.CredentialType) (bool, error) {
	if !v.breaker.Allow() {
		return false, ErrCircuitOpen
	}

	key, err := v.keys.Key(credentialType)
	if err != nil {
		v.recordFault(ctx, err)
		return false, err
	}
	if err := CheckShape(key, proof); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// buffered so the engine goroutine never blocks after a timeout
	done := make(chan verdict, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- verdict{err: fmt.Errorf("engine panic: %v: %w", r, ErrEngine)}
			}
		}()
		valid, err := v.engine.Verify(key, proof)
		if err != nil && !errors.Is(err, ErrEngine) {
			err = fmt.Errorf("%w: %w", ErrEngine, err)
		}
		done <- verdict{valid: valid, err: err}
	}()

	select {
	case <-ctx.Done():
		v.recordFault(ctx, ErrTimeout)
		return false, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case res := <-done:
		if res.err != nil {
			v.recordFault(ctx, res.err)
			return false, res.err
		}
		if change := v.breaker.RecordSuccess(); change.Closed {
			v.logger.InfoContext(ctx, "circuit breaker closed", "circuit", v.breaker.Name())
		}
		return res.valid, nil
	}
}

func (v *Verifier) recordFault(ctx context.Context, err error) {
	if change := v.breaker.RecordFailure(); change.Opened {
		v.logger.ErrorContext(ctx, "circuit breaker opened",
			"circuit", v.breaker.Name(),
			"error", err,
		)
	}
}
