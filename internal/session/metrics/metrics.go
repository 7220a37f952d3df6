package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification outcome labels.
const (
	OutcomeValid        = "valid"
	OutcomeInvalidProof = "invalid_proof"
	OutcomeEngineError  = "engine_error"
	OutcomeRejected     = "rejected_state"
	OutcomeMalformed    = "malformed_payload"
)

// Metrics holds Prometheus collectors for session operations.
type Metrics struct {
	SessionsCreated       *prometheus.CounterVec
	SessionsCompleted     *prometheus.CounterVec
	SessionsRevoked       prometheus.Counter
	ProofVerifications    *prometheus.CounterVec
	VerifyDurationMs      prometheus.Histogram
	CommitConflicts       prometheus.Counter
	ReaperSweeps          prometheus.Counter
	ReaperDeleted         prometheus.Counter
	ReaperFailures        prometheus.Counter
	ReaperSweepDurationMs prometheus.Histogram
}

// New registers and returns session metrics collectors on reg.
// A nil reg uses the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zeroauth_sessions_created_total",
			Help: "Total number of verification sessions created",
		}, []string{"credential_type"}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zeroauth_sessions_completed_total",
			Help: "Total number of sessions completed with an accepted proof",
		}, []string{"credential_type"}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_sessions_revoked_total",
			Help: "Total number of sessions revoked by verifiers",
		}),
		ProofVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zeroauth_proof_verifications_total",
			Help: "Total number of proof submissions by outcome",
		}, []string{"outcome"}),
		VerifyDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "zeroauth_proof_verify_duration_ms",
			Help:    "Duration of proof verification in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
		}),
		CommitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_proof_commit_conflicts_total",
			Help: "Total number of valid proofs rejected because another submission committed first",
		}),
		ReaperSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_reaper_sweeps_total",
			Help: "Total number of stale-session sweeps",
		}),
		ReaperDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_reaper_deleted_total",
			Help: "Total number of session records deleted by the reaper",
		}),
		ReaperFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "zeroauth_reaper_failures_total",
			Help: "Total number of per-record reaper failures",
		}),
		ReaperSweepDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "zeroauth_reaper_sweep_duration_ms",
			Help:    "Duration of stale-session sweeps in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
		}),
	}
}

func (m *Metrics) IncSessionCreated(credentialType string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(credentialType).Inc()
}

func (m *Metrics) IncSessionCompleted(credentialType string) {
	if m == nil {
		return
	}
	m.SessionsCompleted.WithLabelValues(credentialType).Inc()
}

func (m *Metrics) IncSessionRevoked() {
	if m == nil {
		return
	}
	m.SessionsRevoked.Inc()
}

func (m *Metrics) IncCommitConflict() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}

// ObserveVerification records one verification with its outcome label.
func (m *Metrics) ObserveVerification(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProofVerifications.WithLabelValues(outcome).Inc()
	m.VerifyDurationMs.Observe(float64(elapsed.Milliseconds()))
}

// ObserveSweep records a completed reaper sweep.
func (m *Metrics) ObserveSweep(deleted, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReaperSweeps.Inc()
	m.ReaperDeleted.Add(float64(deleted))
	m.ReaperFailures.Add(float64(failed))
	m.ReaperSweepDurationMs.Observe(float64(elapsed.Milliseconds()))
}
