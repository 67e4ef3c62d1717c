package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/request"
)

// Transport sends one batch and returns the server's envelope.
type Transport interface {
	Submit(ctx context.Context, req *request.Request) (*dispatch.ResponseEnvelope, error)
}

// HeaderRequestID carries the per-submission correlation id.
const HeaderRequestID = "X-Request-Id"

// StatusError is a non-success answer at the transport level: an HTTP
// status outside 2xx, or a NATS reply flagged with a status header.
// ProblemType and Detail come from an RFC 7807 body when the server sent one.
type StatusError struct {
	StatusCode  int
	Status      string
	ProblemType string
	Detail      string
	RequestID   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("transport: server returned %d", e.StatusCode)
	if e.Status != "" {
		msg = "transport: server returned " + e.Status
	}
	if e.ProblemType != "" {
		msg += " (" + e.ProblemType + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Problem types defined for the JMAP request level.
const (
	ProblemUnknownCapability = "urn:ietf:params:jmap:error:unknownCapability"
	ProblemNotJSON           = "urn:ietf:params:jmap:error:notJSON"
	ProblemNotRequest        = "urn:ietf:params:jmap:error:notRequest"
	ProblemLimit             = "urn:ietf:params:jmap:error:limit"
)

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IDGenerator produces request correlation ids.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator returns time-ordered UUIDv7 ids.
type UUIDGenerator struct{}

// Generate returns a new id, falling back to a random UUID.
func (UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
