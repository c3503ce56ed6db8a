package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/structura/kit"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// TraceID tags each request with a random trace id (context, X-Trace-ID
// header, per-request logger) and logs the status and duration once the
// handler returns. An incoming X-Trace-ID is kept when well-formed.
func TraceID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if len(traceID) != 16 || !isHex(traceID) {
				b := make([]byte, 8)
				rand.Read(b)
				traceID = hex.EncodeToString(b)
			}
			w.Header().Set("X-Trace-ID", traceID)

			logger := base.With("trace_id", traceID, "method", r.Method, "path", r.URL.Path)
			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = context.WithValue(ctx, LoggerKey, logger)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			level := slog.LevelInfo
			if sw.status >= 500 {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "request",
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", ExtractIP(r))
		})
	}
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}
