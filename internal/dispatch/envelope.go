package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NameError is the method name servers use for whole-call errors.
const NameError = "error"

// RawResponse is one [name, arguments, clientId] triple of a response.
type RawResponse struct {
	Name     string
	Args     json.RawMessage
	ClientID string
}

// MarshalJSON encodes the triple form.
func (r RawResponse) MarshalJSON() ([]byte, error) {
	args := r.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return json.Marshal([]any{r.Name, args, r.ClientID})
}

// UnmarshalJSON decodes the triple form.
func (r *RawResponse) UnmarshalJSON(data []byte) error {
	var triple []json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if len(triple) != 3 {
		return fmt.Errorf("dispatch: response has %d elements, want 3", len(triple))
	}
	var out RawResponse
	if err := json.Unmarshal(triple[0], &out.Name); err != nil {
		return fmt.Errorf("dispatch: response name: %w", err)
	}
	if err := json.Unmarshal(triple[2], &out.ClientID); err != nil {
		return fmt.Errorf("dispatch: response client id: %w", err)
	}
	out.Args = append(json.RawMessage(nil), triple[1]...)
	*r = out
	return nil
}

// ResponseEnvelope is the decoded body of an API response.
type ResponseEnvelope struct {
	MethodResponses []RawResponse     `json:"methodResponses"`
	SessionState    string            `json:"sessionState,omitempty"`
	CreatedIDs      map[string]string `json:"createdIds,omitempty"`
}

// ErrNoMethodResponses is returned when a body lacks methodResponses.
var ErrNoMethodResponses = errors.New("dispatch: body has no methodResponses")

// DecodeEnvelope parses an API response body.
func DecodeEnvelope(data []byte) (*ResponseEnvelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("dispatch: decode body: %w", err)
	}
	if _, ok := probe["methodResponses"]; !ok {
		return nil, ErrNoMethodResponses
	}
	var env ResponseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("dispatch: decode body: %w", err)
	}
	return &env, nil
}

func decodeMethodError(args json.RawMessage) (*MethodError, error) {
	var fields map[string]any
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, err
	}
	me := &MethodError{}
	if t, ok := fields["type"].(string); ok {
		me.Type = t
	}
	if d, ok := fields["description"].(string); ok {
		me.Description = d
	}
	delete(fields, "type")
	delete(fields, "description")
	if len(fields) > 0 {
		me.Extra = fields
	}
	if me.Type == "" {
		me.Type = MethodErrServerFail
	}
	return me, nil
}
