package shield

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/structura/kit"
)

// BasicAuth protects the dashboard with one user and a bcrypt hash.
// Paths in Public bypass it (health checks).
type BasicAuth struct {
	User   string
	Hash   []byte
	Realm  string
	Public []string
}

// ParseAuthHash reads "user:$2a$..." as stored in STRUCTURA_AUTH_HASH.
// An empty string yields nil (auth disabled).
func ParseAuthHash(s string) *BasicAuth {
	user, hash, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || user == "" || hash == "" {
		return nil
	}
	return &BasicAuth{User: user, Hash: []byte(hash), Realm: "structura", Public: []string{"/health"}}
}

// HashPassword returns the bcrypt hash for password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

func (a *BasicAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range a.Public {
			if r.URL.Path == p {
				next.ServeHTTP(w, r)
				return
			}
		}
		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(a.User)) != 1 ||
			bcrypt.CompareHashAndPassword(a.Hash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+a.Realm+`", charset="UTF-8"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(kit.WithUserID(r.Context(), user)))
	})
}
