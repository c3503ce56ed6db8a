// Package connectivity dispatches named service calls either to an
// in-process handler or to a remote endpoint, based on a SQLite routes table
// that can be changed while the process runs.
//
//	router := connectivity.New()
//	router.RegisterTransport("http", connectivity.HTTPFactory())
//	router.RegisterLocal("ai_complete", provider.Handler())
//	go router.Watch(ctx, db, time.Second)
//
//	resp, err := router.Call(ctx, "ai_complete", payload)
//
// structura uses it for the AI provider call so completions can be moved to
// a sidecar gateway, or disabled, by updating one row.
package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint. The close func
// is called when the route is removed or replaced; it may be nil.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

// Strategy names how a service is dispatched.
type Strategy string

const (
	StrategyLocal Strategy = "local"
	StrategyHTTP  Strategy = "http"
	StrategyNoop  Strategy = "noop"
)

type route struct {
	Service  string
	Strategy Strategy
	Endpoint string
	Config   json.RawMessage
}

func (rt route) fingerprint() string {
	return string(rt.Strategy) + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Safe for concurrent use.
type Router struct {
	mu        sync.RWMutex
	local     map[string]Handler
	remote    map[string]remoteEntry
	routes    map[string]route
	factories map[string]TransportFactory
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		local:     make(map[string]Handler),
		remote:    make(map[string]remoteEntry),
		routes:    make(map[string]route),
		factories: make(map[string]TransportFactory),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers the in-process handler for a service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.local[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers the factory used for routes whose strategy
// equals protocol.
func (r *Router) RegisterTransport(protocol string, f TransportFactory) {
	r.mu.Lock()
	r.factories[protocol] = f
	r.mu.Unlock()
}

// Call dispatches a service call. Resolution order: noop route, remote
// route, local handler, ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remote[service]
	localH := r.local[service]
	rt, hasRoute := r.routes[service]
	r.mu.RUnlock()

	if hasRoute && rt.Strategy == StrategyNoop {
		r.logger.DebugContext(ctx, "routing noop", "service", service)
		return nil, nil
	}
	if hasRemote {
		r.logger.DebugContext(ctx, "routing remote",
			"service", service, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
		return entry.handler(ctx, payload)
	}
	if localH != nil {
		return localH(ctx, payload)
	}
	return nil, &ErrServiceNotFound{Service: service}
}

// Routes returns the last loaded route strategy per service.
func (r *Router) Routes() map[string]Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Strategy, len(r.routes))
	for name, rt := range r.routes {
		out[name] = rt.Strategy
	}
	return out
}

// Reload reads the routes table and rebuilds remote handlers whose
// strategy, endpoint or config changed. Unchanged handlers are reused.
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]route)
	for rows.Next() {
		var rt route
		var cfg string
		if err := rows.Scan(&rt.Service, &rt.Strategy, &rt.Endpoint, &cfg); err != nil {
			return fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfg)
		loaded[rt.Service] = rt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("connectivity: rows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]remoteEntry, len(loaded))
	for name, rt := range loaded {
		if rt.Strategy == StrategyLocal || rt.Strategy == StrategyNoop {
			continue
		}
		if old, ok := r.routes[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, ok := r.remote[name]; ok {
				next[name] = existing
				continue
			}
		}
		factory, ok := r.factories[string(rt.Strategy)]
		if !ok {
			r.logger.Warn("no transport factory for strategy", "service", name, "strategy", rt.Strategy)
			continue
		}
		h, closeFn, err := factory(rt.Endpoint, rt.Config)
		if err != nil {
			r.logger.Error("transport factory failed", "error", (&ErrFactoryFailed{
				Service: name, Strategy: string(rt.Strategy), Endpoint: rt.Endpoint, Cause: err,
			}).Error())
			continue
		}
		next[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("route built", "service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	for name, old := range r.remote {
		if old.close == nil {
			continue
		}
		if _, kept := next[name]; !kept || r.routes[name].fingerprint() != loaded[name].fingerprint() {
			old.close()
		}
	}

	r.remote = next
	r.routes = loaded
	r.logger.Info("routes reloaded", "total", len(loaded), "remote", len(next))
	return nil
}

// Watch reloads routes whenever PRAGMA data_version changes. It blocks
// until ctx is cancelled.
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.Reload(ctx, db); err != nil {
		r.logger.Error("connectivity: initial reload failed", "error", err)
	}
	var last int64
	_ = db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ver int64
			if err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&ver); err != nil {
				r.logger.Warn("connectivity: data_version poll failed", "error", err)
				continue
			}
			if ver == last {
				continue
			}
			if err := r.Reload(ctx, db); err != nil {
				r.logger.Error("connectivity: reload failed", "error", err)
			}
			last = ver
		}
	}
}

// Close releases every remote handler.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.remote {
		if e.close != nil {
			e.close()
		}
	}
	r.remote = make(map[string]remoteEntry)
	r.routes = make(map[string]route)
	return nil
}
