package request

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/jmapc/internal/wire"
)

// Request is an immutable, ordered batch of invocations.
type Request struct {
	using       []string
	invocations []Invocation
	index       map[string]int
	createdIDs  map[string]string
}

// newRequest normalizes the using list and verifies the invocation graph:
// client ids are unique and every reference points strictly backward.
func newRequest(using []string, invs []Invocation, createdIDs map[string]string) (*Request, error) {
	r := &Request{
		using:       normalizeUsing(using),
		invocations: invs,
		index:       make(map[string]int, len(invs)),
	}
	if len(createdIDs) > 0 {
		r.createdIDs = make(map[string]string, len(createdIDs))
		for k, v := range createdIDs {
			r.createdIDs[k] = v
		}
	}

	for i, inv := range invs {
		if inv.clientID == "" {
			return nil, &BuildError{Code: CodeInvalidArgument, Message: fmt.Sprintf("invocation %d has no client id", i)}
		}
		if _, dup := r.index[inv.clientID]; dup {
			return nil, &BuildError{Code: CodeDuplicateClientID, ClientID: inv.clientID, Message: "client id already in batch"}
		}

		refs, err := inv.References()
		if err != nil {
			return nil, &BuildError{Code: CodeInvalidArgument, ClientID: inv.clientID, Message: err.Error()}
		}
		for _, ref := range refs {
			if _, ok := r.index[ref.ResultOf]; !ok {
				return nil, &BuildError{
					Code:     CodeForwardReference,
					ClientID: inv.clientID,
					Field:    ref.Field,
					Message:  fmt.Sprintf("source %q is not an earlier invocation", ref.ResultOf),
				}
			}
		}
		r.index[inv.clientID] = i
	}
	return r, nil
}

// normalizeUsing puts core first, then the remaining capabilities sorted
// and deduplicated.
func normalizeUsing(using []string) []string {
	rest := make([]string, 0, len(using))
	for _, u := range using {
		if u != "" && u != CapabilityCore {
			rest = append(rest, u)
		}
	}
	slices.Sort(rest)
	return append([]string{CapabilityCore}, slices.Compact(rest)...)
}

// Using returns the capability list.
func (r *Request) Using() []string {
	return slices.Clone(r.using)
}

// Len returns the number of invocations.
func (r *Request) Len() int {
	return len(r.invocations)
}

// Invocations returns the invocations in batch order.
func (r *Request) Invocations() []Invocation {
	return slices.Clone(r.invocations)
}

// Invocation returns the invocation with clientID.
func (r *Request) Invocation(clientID string) (Invocation, bool) {
	i, ok := r.index[clientID]
	if !ok {
		return Invocation{}, false
	}
	return r.invocations[i], true
}

// Index returns the batch position of clientID, or -1.
func (r *Request) Index(clientID string) int {
	i, ok := r.index[clientID]
	if !ok {
		return -1
	}
	return i
}

// CreatedIDs returns the createdIds map sent with the request, if any.
func (r *Request) CreatedIDs() map[string]string {
	if r.createdIDs == nil {
		return nil
	}
	out := make(map[string]string, len(r.createdIDs))
	for k, v := range r.createdIDs {
		out[k] = v
	}
	return out
}

// Value returns the request body as a wire object.
func (r *Request) Value() wire.Object {
	calls := make(wire.Array, len(r.invocations))
	for i, inv := range r.invocations {
		calls[i] = inv.value()
	}
	body := wire.Object{
		"using":       wire.Strings(r.using...),
		"methodCalls": calls,
	}
	if r.createdIDs != nil {
		created := make(wire.Object, len(r.createdIDs))
		for k, v := range r.createdIDs {
			created[k] = wire.String(v)
		}
		body["createdIds"] = created
	}
	return body
}

// MarshalJSON encodes the request body canonically.
func (r *Request) MarshalJSON() ([]byte, error) {
	return wire.MarshalCanonical(r.Value())
}

type requestBody struct {
	Using       []string          `json:"using"`
	MethodCalls []Invocation      `json:"methodCalls"`
	CreatedIDs  map[string]string `json:"createdIds,omitempty"`
}

// Parse decodes a request body and verifies it the same way Build does.
func Parse(data []byte) (*Request, error) {
	var body requestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if len(body.MethodCalls) == 0 {
		return nil, &BuildError{Code: CodeEmptyBatch, Message: "no method calls"}
	}
	return newRequest(body.Using, body.MethodCalls, body.CreatedIDs)
}
