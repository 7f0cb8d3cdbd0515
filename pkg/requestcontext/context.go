// Package requestcontext carries request-scoped values that services read
// without depending on the transport layer.
package requestcontext

import (
	"context"
	"time"
)

type nowKey struct{}

// WithNow freezes the request clock. Middleware sets it once per request so
// every record written by one operation shares a timestamp; tests use it for
// deterministic time.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the frozen request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return now
	}
	return time.Now()
}

type requestIDKey struct{}

// WithRequestID attaches the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation id, or "".
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

type deviceKey struct{}

// WithDevice attaches the parsed client device display name, used to
// attribute consent audit events.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

// Device returns the client device display name, or "".
func Device(ctx context.Context) string {
	if device, ok := ctx.Value(deviceKey{}).(string); ok {
		return device
	}
	return ""
}
