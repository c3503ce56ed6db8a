package shield

import "net/http"

// HeaderConfig holds the security headers set on every response.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
}

// DefaultHeaders allows same-origin scripts and the /theme.css stylesheet.
// Inline style attributes stay allowed for the theme preview swatches.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "camera=(), microphone=(), geolocation=()",
	}
}

// SecurityHeaders sets the non-empty headers of cfg.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	set := [][2]string{
		{"X-Content-Type-Options", cfg.XContentTypeOptions},
		{"X-Frame-Options", cfg.XFrameOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Content-Security-Policy", cfg.CSP},
		{"Permissions-Policy", cfg.PermissionsPolicy},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range set {
				if h[1] != "" {
					w.Header().Set(h[0], h[1])
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
