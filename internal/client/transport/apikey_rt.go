// Package transport holds http.RoundTripper wrappers used by the dashboard clients.
package transport

import (
	"net/http"
)

// APIKeyRoundTripper attaches the dashboard API key to every request, either
// as the X-API-Key header or as the auth_token query parameter.
type APIKeyRoundTripper struct {
	Base  http.RoundTripper
	Key   string
	Query bool // auth_token query parameter instead of the header
}

func (a *APIKeyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := a.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	if a.Key == "" {
		return rt.RoundTrip(req)
	}

	// RoundTrip must not modify the caller's request.
	r := req.Clone(req.Context())
	if a.Query {
		q := r.URL.Query()
		q.Set("auth_token", a.Key)
		r.URL.RawQuery = q.Encode()
	} else {
		r.Header.Set("X-API-Key", a.Key)
	}
	return rt.RoundTrip(r)
}
