// Package kit holds the transport-agnostic endpoint shape shared by the
// dashboard API and the MCP tool server: an Endpoint takes a decoded request
// and returns a response that the transport encodes.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is one business operation, independent of its transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration, transport and trace id.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := GetTraceID(ctx); id != "" {
				attrs = append(attrs, "trace_id", id)
			}
			if err != nil {
				logger.WarnContext(ctx, "endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}
