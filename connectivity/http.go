package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/structura/horosafe"
)

// maxHTTPResponseBody caps remote responses (10 MiB).
const maxHTTPResponseBody int64 = 10 << 20

type httpConfig struct {
	TimeoutMs    int64             `json:"timeout_ms"`
	ContentType  string            `json:"content_type"`
	Headers      map[string]string `json:"headers"`
	AllowPrivate bool              `json:"allow_private"`
}

// HTTPFactory builds Handlers that POST the payload to the route endpoint.
// Private and loopback endpoints are refused unless the route config sets
// allow_private, which a same-host gateway sidecar needs.
func HTTPFactory() TransportFactory {
	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		var cfg httpConfig
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, nil, fmt.Errorf("connectivity/http: config: %w", err)
			}
		}
		if !cfg.AllowPrivate {
			if err := horosafe.ValidateURL(endpoint); err != nil {
				return nil, nil, fmt.Errorf("connectivity/http: %w", err)
			}
		}

		timeout := 60 * time.Second
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		contentType := "application/json"
		if cfg.ContentType != "" {
			contentType = cfg.ContentType
		}
		client := &http.Client{Timeout: timeout}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)
			for k, v := range cfg.Headers {
				req.Header.Set(k, v)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
			}
			return body, nil
		}
		return handler, client.CloseIdleConnections, nil
	}
}
