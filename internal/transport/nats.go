package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/request"
)

// HeaderStatus marks a NATS reply that is not an API response. Its value
// is an HTTP status code; HeaderProblemType and HeaderDetail may accompany it.
const (
	HeaderStatus      = "Jmap-Status"
	HeaderProblemType = "Jmap-Problem-Type"
	HeaderDetail      = "Jmap-Detail"
)

// DefaultNATSTimeout applies when the caller's context has no deadline.
const DefaultNATSTimeout = 30 * time.Second

// NATS submits requests over NATS request/reply.
type NATS struct {
	conn    *nats.Conn
	subject string
	auth    Authenticator
	logger  *slog.Logger
	timeout time.Duration
	ids     IDGenerator
}

// NATSOption configures a NATS transport.
type NATSOption func(*NATS)

// WithNATSLogger sets the logger for request tracing.
func WithNATSLogger(l *slog.Logger) NATSOption {
	return func(t *NATS) { t.logger = l }
}

// WithNATSTimeout replaces DefaultNATSTimeout.
func WithNATSTimeout(d time.Duration) NATSOption {
	return func(t *NATS) { t.timeout = d }
}

// WithNATSRequestIDs replaces the UUIDv7 correlation ids.
func WithNATSRequestIDs(g IDGenerator) NATSOption {
	return func(t *NATS) { t.ids = g }
}

// NewNATS returns a transport that requests on subject over nc.
func NewNATS(nc *nats.Conn, subject string, auth Authenticator, opts ...NATSOption) *NATS {
	if auth == nil {
		auth = NoAuth{}
	}
	t := &NATS{
		conn:    nc,
		subject: subject,
		auth:    auth,
		logger:  slog.Default(),
		timeout: DefaultNATSTimeout,
		ids:     UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ConnectNATS dials url with reconnect handling that logs through logger.
func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: connect nats %s: %w", url, err)
	}
	return nc, nil
}

// Submit publishes the canonical body on the subject and waits for a reply.
func (t *NATS) Submit(ctx context.Context, req *request.Request) (*dispatch.ResponseEnvelope, error) {
	body, err := req.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	requestID := t.ids.Generate()
	msg := nats.NewMsg(t.subject)
	msg.Data = body
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(HeaderRequestID, requestID)
	t.auth.Authenticate(http.Header(msg.Header))

	start := time.Now()
	reply, err := t.conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("transport: request %s: %w", t.subject, err)
	}

	t.logger.Debug("jmap request",
		"request_id", requestID,
		"subject", t.subject,
		"invocations", req.Len(),
		"duration", time.Since(start),
	)

	if status := reply.Header.Get(HeaderStatus); status != "" {
		code, _ := strconv.Atoi(status)
		if code < 200 || code > 299 {
			return nil, &StatusError{
				StatusCode:  code,
				ProblemType: reply.Header.Get(HeaderProblemType),
				Detail:      reply.Header.Get(HeaderDetail),
				RequestID:   requestID,
			}
		}
	}

	env, err := dispatch.DecodeEnvelope(reply.Data)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", requestID, err)
	}
	return env, nil
}
