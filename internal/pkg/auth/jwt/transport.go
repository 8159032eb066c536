package jwt

import (
	"net/http"
)

// TokenSource supplies the current bearer credential. An empty string means logged out.
type TokenSource interface {
	Token() string
}

// BearerTransport adds "Authorization: Bearer <token>" to each request when a token is present.
type BearerTransport struct {
	Source TokenSource
	Base   http.RoundTripper
}

// RoundTrip clones the request before touching headers, as http.RoundTripper requires.
func (t *BearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := ""
	if t.Source != nil {
		token = t.Source.Token()
	}
	if token == "" {
		return base.RoundTrip(r)
	}

	r2 := r.Clone(r.Context())
	r2.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r2)
}
