package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the header checked by RequireAPIKey.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey accepts the key from the X-API-Key header or from any of
// the given query parameters. An empty key disables the check.
func RequireAPIKey(key string, queryParams ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasKey(r, key, queryParams) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasKey(r *http.Request, key string, queryParams []string) bool {
	if equal(r.Header.Get(APIKeyHeader), key) {
		return true
	}
	q := r.URL.Query()
	for _, p := range queryParams {
		if equal(q.Get(p), key) {
			return true
		}
	}
	return false
}

func equal(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
