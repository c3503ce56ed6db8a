package shield

import "net/http"

// MaxBody bounds POST, PUT and PATCH bodies to maxBytes. The dashboard sets
// it to the upload size limit plus multipart overhead. A declared
// Content-Length over the bound is refused with 413 before the handler
// starts spooling; chunked bodies are cut by http.MaxBytesReader instead.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > maxBytes {
					http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
