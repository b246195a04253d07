package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the API.
type ContextKey string

// Context keys for various values
const (
	// OwnerRefContextKey holds the authenticated owner reference.
	OwnerRefContextKey ContextKey = "ownerRef"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID.
	TraceIDLength = 16
)

// SetTraceID adds a new trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithOwnerRef stores the authenticated owner reference in the context.
func WithOwnerRef(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerRefContextKey, owner)
}

// OwnerRef returns the authenticated owner reference from the context.
func OwnerRef(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(OwnerRefContextKey).(string)
	return owner, ok && owner != ""
}

// generateTraceID returns 32 hex characters. If the system random source
// fails it falls back to a version 4 UUID without dashes.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b)
}
