package request

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes build-time caller errors.
type ErrorCode string

const (
	// CodeConflictingArguments means two arguments that exclude each other
	// were both set (e.g. a literal and a reference for the same field).
	CodeConflictingArguments ErrorCode = "CONFLICTING_ARGUMENTS"

	// CodeEmptyMutation means a set call creates, updates and destroys nothing.
	CodeEmptyMutation ErrorCode = "EMPTY_MUTATION"

	// CodeEmptyBatch means Build was called with no invocations.
	CodeEmptyBatch ErrorCode = "EMPTY_BATCH"

	// CodeForwardReference means a reference names a client id that is not
	// strictly earlier in the batch.
	CodeForwardReference ErrorCode = "FORWARD_REFERENCE"

	// CodeDuplicateClientID means a client id is used twice.
	CodeDuplicateClientID ErrorCode = "DUPLICATE_CLIENT_ID"

	// CodeUnknownClientID means a target invocation does not exist.
	CodeUnknownClientID ErrorCode = "UNKNOWN_CLIENT_ID"

	// CodeInvalidArgument covers malformed arguments: missing account ids,
	// empty client ids, bad reference paths.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrConflictingArguments = &BuildError{Code: CodeConflictingArguments}
	ErrEmptyMutation        = &BuildError{Code: CodeEmptyMutation}
	ErrEmptyBatch           = &BuildError{Code: CodeEmptyBatch}
	ErrForwardReference     = &BuildError{Code: CodeForwardReference}
	ErrDuplicateClientID    = &BuildError{Code: CodeDuplicateClientID}
	ErrUnknownClientID      = &BuildError{Code: CodeUnknownClientID}
	ErrInvalidArgument      = &BuildError{Code: CodeInvalidArgument}
)

// BuildError is a caller error detected before any network activity.
// It is always fatal to the call that returned it and never retried.
type BuildError struct {
	Code     ErrorCode
	ClientID string // invocation being added or referenced, if known
	Field    string // argument name, if relevant
	Message  string
}

// NewBuildError creates a BuildError. Call shapes use it from Validate.
func NewBuildError(code ErrorCode, field, format string, args ...any) *BuildError {
	return &BuildError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.ClientID != "" && e.Field != "" {
		return fmt.Sprintf("%s (client_id=%s, field=%s)", msg, e.ClientID, e.Field)
	}
	if e.ClientID != "" {
		return fmt.Sprintf("%s (client_id=%s)", msg, e.ClientID)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	return msg
}

// Is matches any BuildError with the same code.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	return ok && t.Code == e.Code
}

// IsForwardReference reports whether err is a forward-reference error.
// Uses errors.As to handle wrapped errors.
func IsForwardReference(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == CodeForwardReference
	}
	return false
}

// withClientID returns err annotated with the client id when it is a
// BuildError that does not carry one yet.
func withClientID(err error, clientID string) error {
	var be *BuildError
	if errors.As(err, &be) && be.ClientID == "" {
		annotated := *be
		annotated.ClientID = clientID
		return &annotated
	}
	return err
}
