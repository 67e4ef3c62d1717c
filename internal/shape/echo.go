package shape

import (
	"encoding/json"

	"github.com/roach88/jmapc/internal/method"
)

// Echo is the Core/echo method. The server returns its arguments unchanged.
type Echo map[string]any

func (Echo) Method() string { return "Core/echo" }

func (Echo) Capability() string { return "urn:ietf:params:jmap:core" }

// MarshalJSON encodes a nil Echo as an empty object.
func (e Echo) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(e))
}

// EchoResponse holds the echoed arguments.
type EchoResponse map[string]any

// RegisterCore registers the core methods on r.
func RegisterCore(r *method.Registry) error {
	return method.Register[Echo, EchoResponse](r)
}
