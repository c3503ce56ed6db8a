package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limit is a fixed-window rule for one "METHOD /path/prefix".
type Limit struct {
	Method     string
	PathPrefix string
	Max        int
	Window     time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter applies per-IP fixed-window limits to matching requests.
// AI processing is paid per call, so uploads are the main target.
type RateLimiter struct {
	limits []Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter builds a limiter for the given rules.
func NewRateLimiter(limits ...Limit) *RateLimiter {
	return &RateLimiter{limits: limits, now: time.Now, buckets: make(map[string]*bucket)}
}

func (rl *RateLimiter) match(r *http.Request) (Limit, bool) {
	for _, l := range rl.limits {
		if (l.Method == "" || l.Method == r.Method) && strings.HasPrefix(r.URL.Path, l.PathPrefix) {
			return l, true
		}
	}
	return Limit{}, false
}

// Allow records one hit for ip under l and reports whether it is within
// the limit. Expired buckets are dropped on the way.
func (rl *RateLimiter) Allow(ip string, l Limit) bool {
	now := rl.now()
	key := ip + "|" + l.Method + " " + l.PathPrefix

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.buckets) > 10_000 {
		for k, b := range rl.buckets {
			if now.After(b.resetAt) {
				delete(rl.buckets, k)
			}
		}
	}
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.Window)}
		return true
	}
	b.count++
	return b.count <= l.Max
}

// Middleware answers 429 with a JSON error when a rule is exceeded.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ip := ExtractIP(r)
		if rl.Allow(ip, l) {
			next.ServeHTTP(w, r)
			return
		}
		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the first X-Forwarded-For entry or the RemoteAddr host.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
