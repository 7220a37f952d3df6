package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Port               int
	PublicBaseURL      string
	Environment        string
	LogLevel           string
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For. Empty means RemoteAddr is always used.
	TrustedProxies    []netip.Prefix
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Addr is the listen address for the HTTP server.
func (s Server) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// DefaultRedisURL is used when REDIS_URL is unset.
const DefaultRedisURL = "redis://localhost:6379"

// RedisConfig configures the session store connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Relay holds the session lifecycle and verification settings.
type Relay struct {
	DID             string
	VKeyDir         string
	SessionValidity time.Duration
	VerifyTimeout   time.Duration
	ReaperInterval  time.Duration
	ReaperGrace     time.Duration
}

// Config is the full process configuration.
type Config struct {
	Server Server
	Redis  RedisConfig
	Relay  Relay
}

// IsProduction reports whether the relay runs with production settings.
func (c Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
func FromEnv() (Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg := Config{
		Server: Server{
			PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
			Environment:        firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), EnvDevelopment),
			LogLevel:           firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			CORSAllowedOrigins: splitList(firstNonEmpty(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		},
		Redis: RedisConfig{
			URL:          firstNonEmpty(os.Getenv("REDIS_URL"), DefaultRedisURL),
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Relay: Relay{
			DID:     firstNonEmpty(os.Getenv("RELAY_DID"), "did:web:relay.zeroauth.app"),
			VKeyDir: firstNonEmpty(os.Getenv("VKEY_DIR"), "./circuits"),
		},
	}

	var errs []string
	intVar := func(dst *int, key string, def int) {
		*dst = def
		raw := os.Getenv(key)
		if raw == "" {
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
			return
		}
		*dst = v
	}
	durationVar := func(dst *time.Duration, key string, def time.Duration) {
		*dst = def
		raw := os.Getenv(key)
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
			return
		}
		*dst = d
	}

	intVar(&cfg.Server.Port, "PORT", 3000)
	intVar(&cfg.Server.RateLimitRequests, "RATE_LIMIT_REQUESTS", 100)
	durationVar(&cfg.Server.RateLimitWindow, "RATE_LIMIT_WINDOW", 15*time.Minute)
	intVar(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE", 10)
	durationVar(&cfg.Relay.SessionValidity, "SESSION_VALIDITY", 5*time.Minute)
	durationVar(&cfg.Relay.VerifyTimeout, "VERIFY_TIMEOUT", 10*time.Second)
	durationVar(&cfg.Relay.ReaperInterval, "REAPER_INTERVAL", 30*time.Minute)
	durationVar(&cfg.Relay.ReaperGrace, "REAPER_GRACE", time.Hour)

	for _, raw := range splitList(os.Getenv("TRUSTED_PROXIES")) {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not a CIDR prefix", raw))
			continue
		}
		cfg.Server.TrustedProxies = append(cfg.Server.TrustedProxies, prefix)
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
