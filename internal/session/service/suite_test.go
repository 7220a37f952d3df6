package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,ProofVerifier

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"zeroauth/internal/session/models"
	"zeroauth/internal/session/service/mocks"
	id "zeroauth/pkg/domain"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockVerifier *mocks.MockProofVerifier
	clock        *clock.Mock
	service      *Service
	ctx          context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockVerifier = mocks.NewMockProofVerifier(s.ctrl)
	s.clock = clock.NewMock()
	s.clock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.ctx = context.Background()
	s.service = New(s.mockStore, s.mockVerifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(s.clock),
		WithRelayDID("did:web:relay.test"),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// Shared test fixture builders

func (s *ServiceSuite) newPendingSession() *models.Session {
	return models.NewSession(id.NewSessionID(), id.NewNonce(), "Acme Bar", []string{"age_over_18"},
		models.CredentialTypeAge, s.clock.Now(), DefaultValidity)
}

func testProof() *models.ProofPayload {
	return &models.ProofPayload{
		PiA:           []string{"1", "2", "1"},
		PiB:           [][]string{{"1", "2"}, {"3", "4"}, {"1", "0"}},
		PiC:           []string{"5", "6", "1"},
		Protocol:      "groth16",
		Curve:         "bn128",
		PublicSignals: []string{"1"},
	}
}

// executeOn simulates the store's atomic section against a copy of session.
func executeOn(session *models.Session) func(context.Context, id.SessionID, func(*models.Session) error, func(*models.Session)) (*models.Session, error) {
	return func(_ context.Context, _ id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
		current := session.Clone()
		if err := validate(current); err != nil {
			return nil, err
		}
		mutate(current)
		*session = *current
		return current, nil
	}
}
