// Package shield is the HTTP middleware stack in front of the structura
// dashboard: security headers, request tracing, body limits, HEAD handling,
// upload rate limiting and optional basic auth.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.Options{MaxBody: 55 << 20}) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Options selects the optional pieces of Stack.
type Options struct {
	Headers   HeaderConfig // zero value means DefaultHeaders()
	MaxBody   int64        // 0 disables the body cap
	RateLimit *RateLimiter // nil disables rate limiting
	Auth      *BasicAuth   // nil disables auth
	Logger    *slog.Logger
}

// Stack returns the middleware in application order:
// HeadToGet, SecurityHeaders, TraceID, BasicAuth, RateLimiter, MaxBody.
func Stack(o Options) []func(http.Handler) http.Handler {
	if o.Headers == (HeaderConfig{}) {
		o.Headers = DefaultHeaders()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(o.Headers),
		TraceID(o.Logger),
	}
	if o.Auth != nil {
		stack = append(stack, o.Auth.Middleware)
	}
	if o.RateLimit != nil {
		stack = append(stack, o.RateLimit.Middleware)
	}
	if o.MaxBody > 0 {
		stack = append(stack, MaxBody(o.MaxBody))
	}
	return stack
}
