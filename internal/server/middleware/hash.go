package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/portal-dashboard/internal/utils"
)

// HashHeader carries the hex HMAC-SHA256 of a body.
const HashHeader = "HashSHA256"

// VerifyHashMiddleware rejects requests whose HashSHA256 header does not
// match the body and signs the response body. With an empty key or
// when required is false and the header is absent the body is not checked.
func VerifyHashMiddleware(key string, required bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			sig := r.Header.Get(HashHeader)
			if sig == "" && required {
				http.Error(w, "missing signature", http.StatusUnauthorized)
				return
			}
			if sig != "" && !utils.VerifyHash(bodyBytes, key, sig) {
				http.Error(w, "invalid hash", http.StatusBadRequest)
				return
			}

			capture := &responseCapture{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(capture, r)

			w.Header().Set(HashHeader, utils.CalculateHash(capture.body.Bytes(), key))
			w.WriteHeader(capture.code)
			_, _ = w.Write(capture.body.Bytes())
		})
	}
}

// responseCapture buffers the response so the signature header can be set
// before anything is written.
type responseCapture struct {
	http.ResponseWriter
	body bytes.Buffer
	code int
}

func (r *responseCapture) WriteHeader(code int) { r.code = code }

func (r *responseCapture) Write(b []byte) (int, error) {
	return r.body.Write(b)
}
