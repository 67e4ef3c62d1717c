package dispatch

import (
	"errors"
	"fmt"
)

// IntegrityCode categorizes mismatches between a request and its responses.
type IntegrityCode string

const (
	// CodeUnmatchedClientID means a response carries a client id the
	// request never used.
	CodeUnmatchedClientID IntegrityCode = "UNMATCHED_CLIENT_ID"

	// CodeMissingResponse means an invocation received no response. It is a
	// special case of an unmatched client id and matches that sentinel too.
	CodeMissingResponse IntegrityCode = "MISSING_RESPONSE"
)

var (
	ErrUnmatchedClientID = &IntegrityError{Code: CodeUnmatchedClientID}
	ErrMissingResponse   = &IntegrityError{Code: CodeMissingResponse}

	// ErrResponseType is returned by As when a result holds a different
	// response type than requested.
	ErrResponseType = errors.New("dispatch: unexpected response type")
)

// IntegrityError reports a response that cannot be paired with the request.
type IntegrityError struct {
	Code     IntegrityCode
	ClientID string
	Name     string
}

func (e *IntegrityError) Error() string {
	switch e.Code {
	case CodeMissingResponse:
		return fmt.Sprintf("%s: no response for %s (%s)", e.Code, e.ClientID, e.Name)
	default:
		return fmt.Sprintf("%s: response %s for client id %q not in request", e.Code, e.Name, e.ClientID)
	}
}

// Is matches by code. A missing response also matches ErrUnmatchedClientID.
func (e *IntegrityError) Is(target error) bool {
	t, ok := target.(*IntegrityError)
	if !ok {
		return false
	}
	return t.Code == e.Code || (t.Code == CodeUnmatchedClientID && e.Code == CodeMissingResponse)
}

// DecodeError reports a response whose arguments do not fit its registered
// response type.
type DecodeError struct {
	ClientID string
	Name     string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response for %s: %v", e.Name, e.ClientID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Method-level error types sent by servers in place of a response.
const (
	MethodErrServerFail             = "serverFail"
	MethodErrServerUnavailable      = "serverUnavailable"
	MethodErrUnknownMethod          = "unknownMethod"
	MethodErrInvalidArguments       = "invalidArguments"
	MethodErrInvalidResultReference = "invalidResultReference"
	MethodErrForbidden              = "forbidden"
	MethodErrAccountNotFound        = "accountNotFound"
	MethodErrAccountReadOnly        = "accountReadOnly"
	MethodErrStateMismatch          = "stateMismatch"
	MethodErrCannotCalculateChanges = "cannotCalculateChanges"
	MethodErrRequestTooLarge        = "requestTooLarge"
	MethodErrTooManyChanges         = "tooManyChanges"
	MethodErrAnchorNotFound         = "anchorNotFound"
	MethodErrUnsupportedFilter      = "unsupportedFilter"
	MethodErrUnsupportedSort        = "unsupportedSort"
)

// MethodError is a whole-call failure: the server answered an invocation
// with an "error" response instead of the method's normal result.
type MethodError struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Extra       map[string]any `json:"-"`
}

func (e *MethodError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("method error %s: %s", e.Type, e.Description)
	}
	return "method error " + e.Type
}

// Is matches another *MethodError with the same Type.
func (e *MethodError) Is(target error) bool {
	t, ok := target.(*MethodError)
	return ok && t.Type == e.Type
}

// IsStateMismatch reports whether err is a stateMismatch method error, the
// answer to a set whose ifInState no longer holds.
func IsStateMismatch(err error) bool {
	var me *MethodError
	return errors.As(err, &me) && me.Type == MethodErrStateMismatch
}

// IsMethodError reports whether err is any method-level error.
func IsMethodError(err error) bool {
	var me *MethodError
	return errors.As(err, &me)
}
