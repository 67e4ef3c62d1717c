package shape

import (
	"encoding/json"

	"github.com/roach88/jmapc/internal/wire"
)

// Entity is implemented by every record type a shape can carry.
// TypeName and Capability must be callable on the zero value.
type Entity interface {
	// TypeName is the wire type name, e.g. "Task".
	TypeName() string
	// Capability is the capability URN the type's methods require.
	Capability() string
	// EntityID returns the server-assigned id.
	EntityID() string
}

func typeName[E Entity]() string {
	var e E
	return e.TypeName()
}

func capability[E Entity]() string {
	var e E
	return e.Capability()
}

// PatchObject maps JSON pointers (relative to the entity) to new values.
// A nil value resets the property to its default.
type PatchObject map[string]any

// Patch starts a PatchObject with one entry.
func Patch(path string, value any) PatchObject {
	return PatchObject{path: value}
}

// Set adds an entry and returns the patch for chaining.
func (p PatchObject) Set(path string, value any) PatchObject {
	p[path] = value
	return p
}

// Delta describes what a response changes in a local cache.
//
// Stores apply, per record: Removed, then Patches (JMAP patch paths the
// client sent, applied to the stored record), then Upserts merged
// property-by-property. State replaces the stored state only when OldState
// is empty or equals the stored state.
type Delta struct {
	AccountID string
	TypeName  string
	OldState  string
	State     string
	Upserts   map[string]json.RawMessage
	Patches   map[string]wire.Object
	Removed   []string
}

// Empty reports whether the delta carries no state and no records.
func (d Delta) Empty() bool {
	return d.State == "" && len(d.Upserts) == 0 && len(d.Patches) == 0 && len(d.Removed) == 0
}

// DeltaSource is implemented by responses that update a cache.
type DeltaSource interface {
	Delta() (Delta, error)
}

// RequestDeltaSource is implemented by responses whose delta also depends
// on the arguments of the invocation that produced them.
type RequestDeltaSource interface {
	DeltaFor(args wire.Object) (Delta, error)
}

// rawItems marshals entities to JSON keyed by their ids.
func rawItems[E Entity](items map[string]E) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(items))
	for key, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		out[key] = data
	}
	return out, nil
}

// decodeFields decodes the named members of a JSON object into targets.
// Missing and null members leave their targets untouched.
func decodeFields(raw map[string]json.RawMessage, targets map[string]any) error {
	for key, dst := range targets {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return &fieldError{Field: key, Err: err}
		}
	}
	return nil
}

type fieldError struct {
	Field string
	Err   error
}

func (e *fieldError) Error() string { return "field " + e.Field + ": " + e.Err.Error() }
func (e *fieldError) Unwrap() error { return e.Err }
