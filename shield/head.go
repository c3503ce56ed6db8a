package shield

import "net/http"

// HeadToGet lets clients check /theme.css and export downloads with HEAD:
// the GET handler sets ETag, Content-Length and Content-Disposition, and
// net/http discards the body for the original HEAD request.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
