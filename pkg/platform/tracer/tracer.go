// Package tracer provides a lightweight tracing abstraction for relay operations.
//
// Callers depend on the Tracer interface rather than on OpenTelemetry directly.
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the session module.
const (
	SpanSessionCreate = "session.create"
	SpanSessionGet    = "session.get"
	SpanProofSubmit   = "session.proof.submit"
	SpanProofVerify   = "session.proof.verify"
	SpanSessionRevoke = "session.revoke"
	SpanReaperSweep   = "session.reaper.sweep"
)

// Attribute keys used by the session module.
const (
	AttrSessionID      = "session.id"
	AttrCredentialType = "session.credential_type"
	AttrStatus         = "session.status"
	AttrProofValid     = "proof.valid"
	AttrEngineError    = "proof.engine_error"
	AttrDeleted        = "reaper.deleted"
	AttrScanned        = "reaper.scanned"
)
