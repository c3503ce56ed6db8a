package structurer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/observability"
)

// ServiceComplete is the connectivity service name of chat completions.
// Payload: {"system","user"}; response: {"content"}.
const ServiceComplete = "ai_complete"

type completeRequest struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type completeResponse struct {
	Content string `json:"content"`
}

// RegisterCompleter serves c as the local ai_complete handler of router.
func RegisterCompleter(router *connectivity.Router, c Completer) {
	router.RegisterLocal(ServiceComplete, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req completeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("ai_complete: decode request: %w", err)
		}
		content, err := c.Complete(ctx, req.System, req.User)
		if err != nil {
			return nil, err
		}
		return json.Marshal(completeResponse{Content: content})
	})
}

// RouteOptions configures the resilience wrapped around ai_complete.
type RouteOptions struct {
	Timeout    time.Duration // per attempt, default 60s
	MaxRetries int           // default 3, negative disables retries
	Backoff    time.Duration // first retry delay, doubled each attempt, default 1s
	Breaker    *connectivity.CircuitBreaker
	Metrics    *observability.MetricsManager
	Logger     *slog.Logger
}

func (o *RouteOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.Breaker == nil {
		o.Breaker = connectivity.NewCircuitBreaker()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// RoutedCompleter is a Completer that goes through the router, so the
// ai_complete route can be repointed to a remote endpoint at runtime while
// timeout, retry and circuit breaking stay on the calling side.
type RoutedCompleter struct {
	call    connectivity.Handler
	breaker *connectivity.CircuitBreaker
}

// NewRoutedCompleter wraps router.Call for ai_complete.
func NewRoutedCompleter(router *connectivity.Router, opts RouteOptions) *RoutedCompleter {
	opts.defaults()
	mw := connectivity.Chain(
		connectivity.Logging(opts.Logger, ServiceComplete),
		connectivity.WithObservability(opts.Metrics, ServiceComplete),
		connectivity.WithCircuitBreaker(opts.Breaker, ServiceComplete),
		connectivity.WithRetry(opts.MaxRetries, opts.Backoff, retryable, opts.Logger),
		connectivity.Timeout(opts.Timeout),
	)
	call := func(ctx context.Context, payload []byte) ([]byte, error) {
		return router.Call(ctx, ServiceComplete, payload)
	}
	return &RoutedCompleter{call: mw(call), breaker: opts.Breaker}
}

// Breaker exposes the circuit breaker state for the stats endpoint.
func (rc *RoutedCompleter) Breaker() *connectivity.CircuitBreaker { return rc.breaker }

func (rc *RoutedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(completeRequest{System: system, User: user})
	if err != nil {
		return "", err
	}
	raw, err := rc.call(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", ErrEmptyResponse
	}
	var resp completeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("ai_complete: decode response: %w", err)
	}
	if resp.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// retryable never retries configuration errors or empty answers; the rest
// follows connectivity.Retryable (ProviderError and StatusError expose
// Temporary).
func retryable(err error) bool {
	if errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var notFound *connectivity.ErrServiceNotFound
	if errors.As(err, &notFound) {
		return false
	}
	return connectivity.Retryable(err)
}
