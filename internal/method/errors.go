package method

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// CodeDuplicateRegistration means a name or call type is already bound
	// to a different counterpart.
	CodeDuplicateRegistration ErrorCode = "DUPLICATE_REGISTRATION"

	// CodeUnknownMethod means a name or call type was never registered.
	CodeUnknownMethod ErrorCode = "UNKNOWN_METHOD"

	// CodeRegistrySealed means registration was attempted after Seal.
	CodeRegistrySealed ErrorCode = "REGISTRY_SEALED"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrDuplicateRegistration = &RegistryError{Code: CodeDuplicateRegistration}
	ErrUnknownMethod         = &RegistryError{Code: CodeUnknownMethod}
	ErrRegistrySealed        = &RegistryError{Code: CodeRegistrySealed}
)

// RegistryError is a programming or configuration error in the method table.
// These are fixed at development time, not handled at runtime.
type RegistryError struct {
	Code ErrorCode
	Name string
	Type reflect.Type
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	switch {
	case e.Name != "" && e.Type != nil:
		return fmt.Sprintf("%s: method %q (type %s)", e.Code, e.Name, e.Type)
	case e.Name != "":
		return fmt.Sprintf("%s: method %q", e.Code, e.Name)
	case e.Type != nil:
		return fmt.Sprintf("%s: type %s", e.Code, e.Type)
	}
	return string(e.Code)
}

// Is matches any RegistryError with the same code.
func (e *RegistryError) Is(target error) bool {
	var re *RegistryError
	if !errors.As(target, &re) {
		return false
	}
	return re.Code == e.Code
}

// IsUnknownMethod reports whether err is an unknown-method error.
func IsUnknownMethod(err error) bool {
	return errors.Is(err, ErrUnknownMethod)
}

// IsDuplicateRegistration reports whether err is a duplicate-registration error.
func IsDuplicateRegistration(err error) bool {
	return errors.Is(err, ErrDuplicateRegistration)
}
