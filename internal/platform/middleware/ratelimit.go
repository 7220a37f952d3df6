package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"zeroauth/internal/platform/metrics"
	"zeroauth/internal/platform/privacy"
	"zeroauth/pkg/platform/httputil"
	"zeroauth/pkg/requestcontext"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// limiterIdleCleanup is how often idle per-key limiters are dropped.
const limiterIdleCleanup = 5 * time.Minute

// RateLimitConfig allows Requests per Window, all of them usable as a burst.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RateLimiter is a per-client-IP token bucket limiter.
type RateLimiter struct {
	cfg     RateLimitConfig
	limit   rate.Limit
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.HTTP

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

type RateLimitOption func(*RateLimiter)

func WithRateLimitClock(c clock.Clock) RateLimitOption {
	return func(rl *RateLimiter) { rl.clock = c }
}

func WithRateLimitLogger(logger *slog.Logger) RateLimitOption {
	return func(rl *RateLimiter) { rl.logger = logger }
}

func WithRateLimitMetrics(m *metrics.HTTP) RateLimitOption {
	return func(rl *RateLimiter) { rl.metrics = m }
}

// NewRateLimiter builds a limiter refilling cfg.Requests tokens per cfg.Window.
func NewRateLimiter(cfg RateLimitConfig, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		cfg:      cfg,
		limit:    rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		clock:    clock.New(),
		logger:   slog.Default(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.lastCleanup = rl.clock.Now()
	return rl
}

// allow consumes a token for key and reports the wait until the next one when denied.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.clock.Now()

	rl.mu.Lock()
	rl.maybeCleanupLocked(now)
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.cfg.Requests)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	if limiter.AllowN(now, 1) {
		return true, 0
	}
	r := limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// maybeCleanupLocked drops limiters whose bucket has refilled completely.
func (rl *RateLimiter) maybeCleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < limiterIdleCleanup {
		return
	}
	rl.lastCleanup = now
	for key, limiter := range rl.limiters {
		if limiter.TokensAt(now) >= float64(rl.cfg.Requests) {
			delete(rl.limiters, key)
		}
	}
}

// Handler enforces the limit keyed by requestcontext.ClientIP. It must run
// after ClientIP.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := requestcontext.ClientIP(ctx)
		if key == "" {
			key = "unknown"
		}

		allowed, delay := rl.allow(key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
		w.Header().Set("X-RateLimit-Window", rl.cfg.Window.String())
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := max(int(math.Ceil(delay.Seconds())), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		rl.metrics.IncRateLimited()
		rl.logger.WarnContext(ctx, "rate limit exceeded",
			"ip_prefix", privacy.AnonymizeIP(key),
			"path", r.URL.Path,
			"retry_after", retryAfter,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
			Error:            "rate_limit_exceeded",
			ErrorDescription: "Too many requests. Please try again later.",
		})
	})
}
