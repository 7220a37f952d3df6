// Package reaper periodically deletes session records that are terminal or
// stale, independent of any request.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"zeroauth/internal/sentinel"
	"zeroauth/internal/session/metrics"
	"zeroauth/internal/session/models"
	id "zeroauth/pkg/domain"
	"zeroauth/pkg/platform/tracer"
)

const (
	DefaultInterval = 30 * time.Minute
	DefaultGrace    = time.Hour
)

// SessionStore exposes the reads and deletes a sweep needs.
type SessionStore interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// Result summarizes a single sweep.
type Result struct {
	Scanned int
	Deleted int
	Failed  int
}

// Reaper removes REVOKED and EXPIRED records outright and any other record
// once its expiry is more than the grace period in the past. It never
// modifies a record, only deletes.
type Reaper struct {
	store    SessionStore
	interval time.Duration
	grace    time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(r *Reaper) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithGrace overrides how long past expiry a record is kept when greater than zero.
func WithGrace(grace time.Duration) Option {
	return func(r *Reaper) {
		if grace > 0 {
			r.grace = grace
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Reaper) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(r *Reaper) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New constructs a Reaper over store with options applied.
func New(store SessionStore, opts ...Option) (*Reaper, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	r := &Reaper{
		store:    store,
		interval: DefaultInterval,
		grace:    DefaultGrace,
		clock:    clock.New(),
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Start runs a sweep every interval until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "session reaper started",
		"interval", r.interval.String(),
		"grace", r.grace.String(),
	)
	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep over a snapshot of the stored keys.
// Per-record failures are logged, counted and aggregated without aborting
// the sweep; only a failure to list keys or cancellation ends it early.
func (r *Reaper) RunOnce(ctx context.Context) (res Result, err error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanReaperSweep)
	start := r.clock.Now()
	defer func() {
		span.SetAttributes(
			tracer.Int64(tracer.AttrScanned, int64(res.Scanned)),
			tracer.Int64(tracer.AttrDeleted, int64(res.Deleted)),
		)
		span.End(err)
		r.metrics.ObserveSweep(res.Deleted, res.Failed, r.clock.Since(start))
	}()

	keys, err := r.store.ListKeys(ctx, "")
	if err != nil {
		return res, fmt.Errorf("list session keys: %w", err)
	}
	r.logger.InfoContext(ctx, "scanning for stale sessions", "keys_count", len(keys))

	var errs []error
	for _, key := range keys {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res.Scanned++
		deleted, rerr := r.reap(ctx, key)
		if rerr != nil {
			res.Failed++
			errs = append(errs, rerr)
			r.logger.WarnContext(ctx, "failed to reap session", "session_id", key, "error", rerr)
			continue
		}
		if deleted {
			res.Deleted++
		}
	}

	if res.Deleted > 0 || res.Failed > 0 {
		r.logger.InfoContext(ctx, "stale session sweep finished",
			"scanned", res.Scanned,
			"deleted", res.Deleted,
			"failed", res.Failed,
		)
	}
	return res, errors.Join(errs...)
}

func (r *Reaper) reap(ctx context.Context, key string) (bool, error) {
	sessionID, err := id.ParseSessionID(key)
	if err != nil {
		return false, fmt.Errorf("parse session key %q: %w", key, err)
	}
	session, err := r.store.Get(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// expired or deleted since the listing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session %s: %w", key, err)
	}
	if !session.IsReapable(r.clock.Now(), r.grace) {
		return false, nil
	}
	if err := r.store.Delete(ctx, sessionID); err != nil {
		return false, fmt.Errorf("delete session %s: %w", key, err)
	}
	r.logger.InfoContext(ctx, "cleaned up stale session",
		"session_id", key,
		"status", session.Status.String(),
	)
	return true, nil
}
