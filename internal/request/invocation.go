package request

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/jmapc/internal/wire"
)

// Invocation is one method call within a batch: (name, arguments, client id).
// It is immutable; accessors return copies.
type Invocation struct {
	name     string
	args     wire.Object
	clientID string
}

// Name returns the wire method name.
func (inv Invocation) Name() string {
	return inv.name
}

// ClientID returns the invocation's client id.
func (inv Invocation) ClientID() string {
	return inv.clientID
}

// Args returns a deep copy of the serialized arguments, including any
// marker-prefixed reference members.
func (inv Invocation) Args() wire.Object {
	return wire.Copy(inv.args).(wire.Object)
}

// References returns the result references embedded in the arguments,
// sorted by target field.
func (inv Invocation) References() ([]Reference, error) {
	var refs []Reference
	for _, key := range inv.args.SortedKeys() {
		field, ok := strings.CutPrefix(key, ReferenceMarker)
		if !ok {
			continue
		}
		ref, err := decodeReference(inv.args[key])
		if err != nil {
			return nil, fmt.Errorf("%s: argument %q: %w", inv.clientID, key, err)
		}
		refs = append(refs, Reference{Field: field, ResultReference: ref})
	}
	slices.SortFunc(refs, func(a, b Reference) int {
		return strings.Compare(a.Field, b.Field)
	})
	return refs, nil
}

func (inv Invocation) value() wire.Array {
	return wire.Array{wire.String(inv.name), inv.args, wire.String(inv.clientID)}
}

// MarshalJSON encodes the invocation as the triple [name, args, clientId].
func (inv Invocation) MarshalJSON() ([]byte, error) {
	return wire.MarshalCanonical(inv.value())
}

// UnmarshalJSON decodes the triple form.
func (inv *Invocation) UnmarshalJSON(data []byte) error {
	var triple []json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("invocation: %w", err)
	}
	if len(triple) != 3 {
		return fmt.Errorf("invocation: expected 3 elements, got %d", len(triple))
	}

	var name, clientID string
	if err := json.Unmarshal(triple[0], &name); err != nil {
		return fmt.Errorf("invocation name: %w", err)
	}
	var args wire.Object
	if err := json.Unmarshal(triple[1], &args); err != nil {
		return fmt.Errorf("invocation arguments: %w", err)
	}
	if err := json.Unmarshal(triple[2], &clientID); err != nil {
		return fmt.Errorf("invocation client id: %w", err)
	}

	*inv = Invocation{name: name, args: args, clientID: clientID}
	return nil
}
