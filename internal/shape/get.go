package shape

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/jmapc/internal/request"
)

// GetCall fetches records by id. Exactly one of IDs and IDsRef may be set;
// neither means "all records". Properties restricts the returned fields;
// omitting it asks for the server's default set.
type GetCall[E Entity] struct {
	AccountID  string                   `json:"accountId"`
	IDs        []string                 `json:"ids,omitzero"`
	IDsRef     *request.ResultReference `json:"-"`
	Properties []string                 `json:"properties,omitzero"`
}

// Method returns "<Type>/get".
func (GetCall[E]) Method() string { return typeName[E]() + "/get" }

// Capability returns the entity's capability.
func (GetCall[E]) Capability() string { return capability[E]() }

// Validate rejects conflicting id arguments.
func (c GetCall[E]) Validate() error {
	if c.AccountID == "" {
		return request.NewBuildError(request.CodeInvalidArgument, "accountId", "account id is required")
	}
	if c.IDs != nil && c.IDsRef != nil {
		return request.NewBuildError(request.CodeConflictingArguments, "ids", "ids and an ids reference are mutually exclusive")
	}
	return nil
}

// References exposes IDsRef as the "ids" argument.
func (c GetCall[E]) References() map[string]*request.ResultReference {
	if c.IDsRef == nil {
		return nil
	}
	return map[string]*request.ResultReference{"ids": c.IDsRef}
}

// SetReference fills IDsRef for the "ids" field.
func (c *GetCall[E]) SetReference(field string, ref *request.ResultReference) bool {
	if field != "ids" {
		return false
	}
	c.IDsRef = ref
	return true
}

// GetResponse carries the records found and the ids that were not.
type GetResponse[E Entity] struct {
	AccountID string   `json:"accountId"`
	State     string   `json:"state"`
	List      []E      `json:"list"`
	NotFound  []string `json:"notFound"`

	raw []json.RawMessage
}

// UnmarshalJSON decodes the response and keeps each record's original JSON
// so partial records (when properties was set) merge correctly into a cache.
func (r *GetResponse[E]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out GetResponse[E]
	if err := decodeFields(raw, map[string]any{
		"accountId": &out.AccountID,
		"state":     &out.State,
		"list":      &out.raw,
		"notFound":  &out.NotFound,
	}); err != nil {
		return err
	}

	out.List = make([]E, len(out.raw))
	for i, item := range out.raw {
		if err := json.Unmarshal(item, &out.List[i]); err != nil {
			return fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	*r = out
	return nil
}

// FoundIDs returns the ids of the returned records in list order.
func (r *GetResponse[E]) FoundIDs() []string {
	ids := make([]string, len(r.List))
	for i, e := range r.List {
		ids[i] = e.EntityID()
	}
	return ids
}

// Find returns the record with id.
func (r *GetResponse[E]) Find(id string) (E, bool) {
	for _, e := range r.List {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero E
	return zero, false
}

// Delta upserts every returned record and removes every id not found.
func (r *GetResponse[E]) Delta() (Delta, error) {
	d := Delta{
		AccountID: r.AccountID,
		TypeName:  typeName[E](),
		State:     r.State,
		Upserts:   make(map[string]json.RawMessage, len(r.List)),
		Removed:   append([]string(nil), r.NotFound...),
	}
	for i, e := range r.List {
		id := e.EntityID()
		if id == "" {
			return Delta{}, fmt.Errorf("%s/get: list[%d] has no id", d.TypeName, i)
		}
		if i < len(r.raw) {
			d.Upserts[id] = r.raw[i]
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return Delta{}, err
		}
		d.Upserts[id] = data
	}
	return d, nil
}
