package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/jmapc/internal/wire"
)

// ReferenceMarker prefixes argument names whose value is a ResultReference.
const ReferenceMarker = "#"

// Common result paths.
const (
	PathIDs        = "/ids"
	PathListIDs    = "/list/*/id"
	PathCreatedIDs = "/created/*/id"
	PathUpdated    = "/updated"
	PathDestroyed  = "/destroyed"
)

// ResultReference points at part of an earlier invocation's response.
// Name is the source invocation's method name; the builder fills it in.
type ResultReference struct {
	ResultOf string `json:"resultOf"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

// Ref creates a reference to path in the response of clientID.
func Ref(clientID, path string) *ResultReference {
	return &ResultReference{ResultOf: clientID, Path: path}
}

// Reference is a ResultReference placed at a target argument.
type Reference struct {
	Field string
	ResultReference
}

// Referencer is implemented by calls that carry references in typed fields.
// The map is keyed by target argument name (without the marker).
type Referencer interface {
	References() map[string]*ResultReference
}

// ReferenceSetter is implemented by call pointers whose typed reference
// fields can be filled by argument name. SetReference reports whether
// field is one of them. Filling the typed field before Add lets Validate
// see the reference.
type ReferenceSetter interface {
	SetReference(field string, ref *ResultReference) bool
}

// Validator is implemented by calls with build-time argument rules.
type Validator interface {
	Validate() error
}

// validatePath checks the JSON pointer syntax of a reference path.
// "*" segments are allowed and map over arrays server-side.
func validatePath(path string) error {
	if path == "" || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must be a JSON pointer starting with /", path)
	}
	return nil
}

func (r ResultReference) value() wire.Object {
	return wire.Object{
		"resultOf": wire.String(r.ResultOf),
		"name":     wire.String(r.Name),
		"path":     wire.String(r.Path),
	}
}

// decodeReference reads a ResultReference from an argument value.
func decodeReference(v wire.Value) (ResultReference, error) {
	data, err := wire.MarshalCanonical(v)
	if err != nil {
		return ResultReference{}, err
	}
	var ref ResultReference
	if err := json.Unmarshal(data, &ref); err != nil {
		return ResultReference{}, fmt.Errorf("result reference: %w", err)
	}
	if ref.ResultOf == "" {
		return ResultReference{}, fmt.Errorf("result reference: missing resultOf")
	}
	return ref, validatePath(ref.Path)
}
