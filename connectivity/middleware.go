package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hazyhaar/structura/observability"
)

// HandlerMiddleware wraps a Handler.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call of service with its duration.
func Logging(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			dur := time.Since(start)
			if err != nil {
				logger.ErrorContext(ctx, "call failed",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"payload_bytes", len(payload),
					"error", err)
			} else {
				logger.DebugContext(ctx, "call ok",
					"service", service,
					"duration_ms", dur.Milliseconds(),
					"response_bytes", len(resp))
			}
			return resp, err
		}
	}
}

// Timeout bounds each call. A zero duration disables it.
func Timeout(d time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if d <= 0 {
				return next(ctx, payload)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, payload)
		}
	}
}

// Recovery turns handler panics into *ErrPanic.
func Recovery(logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "handler panic recovered",
						"panic", r, "stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// Retryable is the default retry predicate: open circuits are final, errors
// exposing Temporary() are retried only when temporary, everything else is
// retried.
func Retryable(err error) bool {
	var open *ErrCircuitOpen
	if errors.As(err, &open) {
		return false
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	return true
}

// WithRetry retries failed calls up to maxRetries times with exponential
// backoff starting at baseBackoff. retryable may be nil (Retryable is used).
func WithRetry(maxRetries int, baseBackoff time.Duration, retryable func(error) bool, logger *slog.Logger) HandlerMiddleware {
	if retryable == nil {
		retryable = Retryable
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				resp, err := next(ctx, payload)
				if err == nil {
					return resp, nil
				}
				lastErr = err
				if ctx.Err() != nil || !retryable(err) || attempt == maxRetries {
					return nil, lastErr
				}
				wait := baseBackoff * (1 << uint(attempt))
				if logger != nil {
					logger.WarnContext(ctx, "retrying call",
						"attempt", attempt+1,
						"max_retries", maxRetries,
						"backoff_ms", wait.Milliseconds(),
						"error", err)
				}
				select {
				case <-ctx.Done():
					return nil, lastErr
				case <-time.After(wait):
				}
			}
			return nil, lastErr
		}
	}
}

// WithObservability records connectivity.call.duration_ms for every call
// and connectivity.call.error on failures.
func WithObservability(mm *observability.MetricsManager, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			labels := map[string]string{"service": service}
			mm.Record(&observability.Metric{
				Name:      "connectivity.call.duration_ms",
				Timestamp: start,
				Value:     float64(time.Since(start).Milliseconds()),
				Labels:    labels,
				Unit:      "milliseconds",
			})
			if err != nil {
				mm.Record(&observability.Metric{
					Name:      "connectivity.call.error",
					Timestamp: start,
					Value:     1,
					Labels:    labels,
					Unit:      "count",
				})
			}
			return resp, err
		}
	}
}
