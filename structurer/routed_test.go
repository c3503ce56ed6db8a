package structurer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/structura/connectivity"
)

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func routed(t *testing.T, c Completer, opts RouteOptions) *RoutedCompleter {
	t.Helper()
	router := connectivity.New()
	t.Cleanup(func() { router.Close() })
	RegisterCompleter(router, c)
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	return NewRoutedCompleter(router, opts)
}

func TestRoutedCompleter_PassesThrough(t *testing.T) {
	rc := routed(t, completerFunc(func(_ context.Context, system, user string) (string, error) {
		return system + "|" + user, nil
	}), RouteOptions{})

	out, err := rc.Complete(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatal(err)
	}
	if out != "sys|usr" {
		t.Errorf("got %q", out)
	}
}

func TestRoutedCompleter_RetriesTemporary(t *testing.T) {
	var calls atomic.Int32
	rc := routed(t, completerFunc(func(context.Context, string, string) (string, error) {
		if calls.Add(1) < 3 {
			return "", &ProviderError{Status: 503, Body: "busy"}
		}
		return "ok", nil
	}), RouteOptions{})

	out, err := rc.Complete(context.Background(), "s", "u")
	if err != nil || out != "ok" {
		t.Fatalf("got %q, %v", out, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRoutedCompleter_NoRetryOnFinalErrors(t *testing.T) {
	cases := map[string]error{
		"no key":       ErrNoAPIKey,
		"bad request":  &ProviderError{Status: 400, Body: "bad"},
		"empty answer": ErrEmptyResponse,
	}
	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			rc := routed(t, completerFunc(func(context.Context, string, string) (string, error) {
				calls.Add(1)
				return "", failure
			}), RouteOptions{})

			_, err := rc.Complete(context.Background(), "s", "u")
			if !errors.Is(err, failure) {
				t.Fatalf("got %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want 1", calls.Load())
			}
		})
	}
}

func TestRoutedCompleter_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	rc := routed(t, completerFunc(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "", &ProviderError{Status: 500, Body: "down"}
	}), RouteOptions{MaxRetries: 2})

	_, err := rc.Complete(context.Background(), "s", "u")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRoutedCompleter_CircuitOpens(t *testing.T) {
	cb := connectivity.NewCircuitBreaker()
	cb.Threshold = 1
	cb.ResetTimeout = time.Hour
	var calls atomic.Int32
	rc := routed(t, completerFunc(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "", &ProviderError{Status: 500}
	}), RouteOptions{MaxRetries: -1, Breaker: cb})

	_, _ = rc.Complete(context.Background(), "s", "u")
	_, err := rc.Complete(context.Background(), "s", "u")
	var open *connectivity.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if rc.Breaker().State() != connectivity.BreakerOpen {
		t.Errorf("state = %v", rc.Breaker().State())
	}
}

func TestRoutedCompleter_UnknownService(t *testing.T) {
	rc := NewRoutedCompleter(connectivity.New(), RouteOptions{Backoff: time.Millisecond})
	_, err := rc.Complete(context.Background(), "s", "u")
	var nf *connectivity.ErrServiceNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
