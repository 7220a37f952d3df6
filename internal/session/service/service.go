package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"zeroauth/internal/session/metrics"
	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
	"zeroauth/pkg/platform/tracer"
)

// Store defines the persistence interface for session records.
// Error Contract: Get and Execute return sentinel.ErrNotFound when the session
// is absent or its TTL has elapsed; validate errors pass through unchanged.
type Store interface {
	Put(ctx context.Context, sessionID id.SessionID, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
}

// ProofVerifier checks a proof against the key for a credential type.
// A non-nil error is an engine fault; the service treats it as a failed proof.
type ProofVerifier interface {
	Verify(ctx context.Context, proof *models.ProofPayload, credentialType models.CredentialType) (bool, error)
}

const (
	DefaultValidity = 5 * time.Minute
	DefaultRelayDID = "did:web:relay.zeroauth.app"
)

// Service owns the session lifecycle: creation, proof submission and revocation.
type Service struct {
	store    Store
	verifier ProofVerifier
	clock    clock.Clock
	validity time.Duration
	relayDID string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithValidity configures how long a new session accepts a proof.
// If not set or set to zero/negative, defaults to 5 minutes.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithRelayDID sets the relay identity published in QR payloads.
func WithRelayDID(did string) Option {
	return func(s *Service) {
		if did != "" {
			s.relayDID = did
		}
	}
}

func New(store Store, verifier ProofVerifier, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		verifier: verifier,
		validity: DefaultValidity,
		relayDID: DefaultRelayDID,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.clock == nil {
		svc.clock = clock.New()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	return svc
}
