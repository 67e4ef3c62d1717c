package transport

import (
	"encoding/base64"
	"net/http"
)

// Authenticator adds credentials to outgoing headers. NATS messages carry
// the same headers as HTTP requests.
type Authenticator interface {
	Authenticate(h http.Header)
}

// BearerToken sends "Authorization: Bearer <token>".
type BearerToken string

func (t BearerToken) Authenticate(h http.Header) {
	h.Set("Authorization", "Bearer "+string(t))
}

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authenticate(h http.Header) {
	cred := base64.StdEncoding.EncodeToString([]byte(b.Username + ":" + b.Password))
	h.Set("Authorization", "Basic "+cred)
}

// NoAuth sends no credentials.
type NoAuth struct{}

func (NoAuth) Authenticate(http.Header) {}
