package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/request"
)

// maxBody bounds how much of a response body is read.
const maxBody = 32 << 20

// HTTP posts requests to a JMAP API URL.
type HTTP struct {
	apiURL    string
	auth      Authenticator
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	ids       IDGenerator
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTP) { t.client = c }
}

// WithHTTPLogger sets the logger for request tracing.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(t *HTTP) { t.logger = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTP) { t.userAgent = ua }
}

// WithHTTPRequestIDs replaces the UUIDv7 correlation ids.
func WithHTTPRequestIDs(g IDGenerator) HTTPOption {
	return func(t *HTTP) { t.ids = g }
}

// NewHTTP returns a transport for apiURL. A nil auth sends no credentials.
func NewHTTP(apiURL string, auth Authenticator, opts ...HTTPOption) *HTTP {
	if auth == nil {
		auth = NoAuth{}
	}
	t := &HTTP{
		apiURL:    apiURL,
		auth:      auth,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default(),
		userAgent: "jmapc",
		ids:       UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit posts the canonical request body and decodes the envelope.
func (t *HTTP) Submit(ctx context.Context, req *request.Request) (*dispatch.ResponseEnvelope, error) {
	body, err := req.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}

	requestID := t.ids.Generate()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)
	httpReq.Header.Set(HeaderRequestID, requestID)
	t.auth.Authenticate(httpReq.Header)

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: post %s: %w", t.apiURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	t.logger.Debug("jmap request",
		"request_id", requestID,
		"invocations", req.Len(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, data, requestID)
	}

	env, err := dispatch.DecodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", requestID, err)
	}
	return env, nil
}

type problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

func statusError(resp *http.Response, body []byte, requestID string) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, RequestID: requestID}
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "json") {
		return se
	}
	var p problem
	if err := json.Unmarshal(body, &p); err != nil {
		return se
	}
	se.ProblemType = p.Type
	se.Detail = p.Detail
	if se.Detail == "" {
		se.Detail = p.Title
	}
	return se
}
