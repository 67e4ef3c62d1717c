package shape

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/wire"
)

// SetCall creates, updates and destroys records in one call.
//
// Create is keyed by caller-chosen creation ids, Update by existing ids.
// IfInState, when set, makes the whole call fail with a stateMismatch
// method error if the server's state differs.
type SetCall[E Entity] struct {
	AccountID  string                   `json:"accountId"`
	IfInState  string                   `json:"ifInState,omitempty"`
	Create     map[string]E             `json:"create,omitempty"`
	Update     map[string]PatchObject   `json:"update,omitempty"`
	Destroy    []string                 `json:"destroy,omitempty"`
	DestroyRef *request.ResultReference `json:"-"`
}

// Method returns "<Type>/set".
func (SetCall[E]) Method() string { return typeName[E]() + "/set" }

// Capability returns the entity's capability.
func (SetCall[E]) Capability() string { return capability[E]() }

// Validate rejects empty and self-contradicting mutations.
func (c SetCall[E]) Validate() error {
	if c.AccountID == "" {
		return request.NewBuildError(request.CodeInvalidArgument, "accountId", "account id is required")
	}
	if len(c.Create) == 0 && len(c.Update) == 0 && len(c.Destroy) == 0 && c.DestroyRef == nil {
		return request.NewBuildError(request.CodeEmptyMutation, "", "set creates, updates and destroys nothing")
	}
	if len(c.Destroy) > 0 && c.DestroyRef != nil {
		return request.NewBuildError(request.CodeConflictingArguments, "destroy", "destroy and a destroy reference are mutually exclusive")
	}
	if _, ok := c.Create[""]; ok {
		return request.NewBuildError(request.CodeInvalidArgument, "create", "creation id must not be empty")
	}
	for _, id := range c.Destroy {
		if _, ok := c.Update[id]; ok {
			return request.NewBuildError(request.CodeConflictingArguments, "update", "id %q is both updated and destroyed", id)
		}
	}
	return nil
}

// References exposes DestroyRef as the "destroy" argument.
func (c SetCall[E]) References() map[string]*request.ResultReference {
	if c.DestroyRef == nil {
		return nil
	}
	return map[string]*request.ResultReference{"destroy": c.DestroyRef}
}

// SetReference fills DestroyRef for the "destroy" field.
func (c *SetCall[E]) SetReference(field string, ref *request.ResultReference) bool {
	if field != "destroy" {
		return false
	}
	c.DestroyRef = ref
	return true
}

// SetError is a per-item failure in a set response.
type SetError struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties,omitempty"`
}

// Set error types defined by the core protocol.
const (
	SetErrForbidden         = "forbidden"
	SetErrOverQuota         = "overQuota"
	SetErrTooLarge          = "tooLarge"
	SetErrRateLimit         = "rateLimit"
	SetErrNotFound          = "notFound"
	SetErrInvalidPatch      = "invalidPatch"
	SetErrWillDestroy       = "willDestroy"
	SetErrInvalidProperties = "invalidProperties"
	SetErrSingleton         = "singleton"
)

// Error implements the error interface so a SetError can be returned
// where a caller wants to treat one item's failure as fatal.
func (e SetError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Description)
	}
	return e.Type
}

// SetResponse reports the outcome of every submitted key.
//
// Updated maps ids to the properties the server changed beyond the patch,
// or nil when there were none.
type SetResponse[E Entity] struct {
	AccountID    string              `json:"accountId"`
	OldState     string              `json:"oldState,omitempty"`
	NewState     string              `json:"newState"`
	Created      map[string]E        `json:"created,omitempty"`
	Updated      map[string]*E       `json:"updated,omitempty"`
	Destroyed    []string            `json:"destroyed,omitempty"`
	NotCreated   map[string]SetError `json:"notCreated,omitempty"`
	NotUpdated   map[string]SetError `json:"notUpdated,omitempty"`
	NotDestroyed map[string]SetError `json:"notDestroyed,omitempty"`

	rawCreated map[string]json.RawMessage
	rawUpdated map[string]json.RawMessage
}

// UnmarshalJSON decodes the response and keeps the raw created and updated
// records for cache merging.
func (r *SetResponse[E]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out SetResponse[E]
	if err := decodeFields(raw, map[string]any{
		"accountId":    &out.AccountID,
		"oldState":     &out.OldState,
		"newState":     &out.NewState,
		"created":      &out.rawCreated,
		"updated":      &out.rawUpdated,
		"destroyed":    &out.Destroyed,
		"notCreated":   &out.NotCreated,
		"notUpdated":   &out.NotUpdated,
		"notDestroyed": &out.NotDestroyed,
	}); err != nil {
		return err
	}

	if out.rawCreated != nil {
		out.Created = make(map[string]E, len(out.rawCreated))
		for key, item := range out.rawCreated {
			var e E
			if err := json.Unmarshal(item, &e); err != nil {
				return fmt.Errorf("created[%q]: %w", key, err)
			}
			out.Created[key] = e
		}
	}
	if out.rawUpdated != nil {
		out.Updated = make(map[string]*E, len(out.rawUpdated))
		for id, item := range out.rawUpdated {
			if string(item) == "null" {
				out.Updated[id] = nil
				delete(out.rawUpdated, id)
				continue
			}
			e := new(E)
			if err := json.Unmarshal(item, e); err != nil {
				return fmt.Errorf("updated[%q]: %w", id, err)
			}
			out.Updated[id] = e
		}
	}

	*r = out
	return nil
}

// Op names a set operation.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDestroy Op = "destroy"
)

// Outcome is the result for one submitted key.
type Outcome struct {
	Op      Op
	Key     string
	OK      bool
	Err     *SetError
	Present bool // false when the key appears in neither bucket
}

// Outcome looks key up in the success and failure buckets for op.
// Lookup is by key only; response order carries no meaning.
func (r *SetResponse[E]) Outcome(op Op, key string) Outcome {
	out := Outcome{Op: op, Key: key}
	var okBucket bool
	var failures map[string]SetError

	switch op {
	case OpCreate:
		_, okBucket = r.Created[key]
		failures = r.NotCreated
	case OpUpdate:
		_, okBucket = r.Updated[key]
		failures = r.NotUpdated
	case OpDestroy:
		okBucket = slices.Contains(r.Destroyed, key)
		failures = r.NotDestroyed
	}

	if okBucket {
		out.OK, out.Present = true, true
		return out
	}
	if e, ok := failures[key]; ok {
		out.Err, out.Present = &e, true
	}
	return out
}

// CreatedID returns the server id assigned to a creation id.
func (r *SetResponse[E]) CreatedID(creationID string) (string, bool) {
	e, ok := r.Created[creationID]
	if !ok {
		return "", false
	}
	return e.EntityID(), e.EntityID() != ""
}

// HasFailures reports whether any item failed.
func (r *SetResponse[E]) HasFailures() bool {
	return len(r.NotCreated) > 0 || len(r.NotUpdated) > 0 || len(r.NotDestroyed) > 0
}

// Delta upserts created and updated records and removes destroyed ids.
// Updated ids whose value is null still move to the new state but carry no
// properties to merge.
func (r *SetResponse[E]) Delta() (Delta, error) {
	d := Delta{
		AccountID: r.AccountID,
		TypeName:  typeName[E](),
		OldState:  r.OldState,
		State:     r.NewState,
		Upserts:   make(map[string]json.RawMessage),
		Removed:   append([]string(nil), r.Destroyed...),
	}

	for key, e := range r.Created {
		id := e.EntityID()
		if id == "" {
			return Delta{}, fmt.Errorf("%s/set: created[%q] has no id", d.TypeName, key)
		}
		if raw, ok := r.rawCreated[key]; ok {
			d.Upserts[id] = raw
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return Delta{}, err
		}
		d.Upserts[id] = data
	}

	if r.rawUpdated != nil {
		for id, raw := range r.rawUpdated {
			d.Upserts[id] = raw
		}
		return d, nil
	}
	nonNil := make(map[string]E, len(r.Updated))
	for id, e := range r.Updated {
		if e != nil {
			nonNil[id] = *e
		}
	}
	updates, err := rawItems(nonNil)
	if err != nil {
		return Delta{}, err
	}
	for id, raw := range updates {
		d.Upserts[id] = raw
	}
	return d, nil
}

// DeltaFor is Delta completed with what the client sent: created records
// start from the submitted create object, and successfully updated records
// carry their patch. Without it a null updated entry would leave the cache
// holding the record as it was before the update.
func (r *SetResponse[E]) DeltaFor(args wire.Object) (Delta, error) {
	d, err := r.Delta()
	if err != nil {
		return Delta{}, err
	}

	create, _ := args["create"].(wire.Object)
	for key, e := range r.Created {
		submitted, ok := create[key].(wire.Object)
		if !ok {
			continue
		}
		id := e.EntityID()
		server, err := wire.FromJSON(d.Upserts[id])
		if err != nil {
			return Delta{}, fmt.Errorf("%s/set: created[%q]: %w", d.TypeName, key, err)
		}
		record := submitted.Clone()
		if obj, ok := server.(wire.Object); ok {
			for k, v := range obj {
				record[k] = v
			}
		}
		data, err := wire.MarshalCanonical(record)
		if err != nil {
			return Delta{}, err
		}
		d.Upserts[id] = data
	}

	update, _ := args["update"].(wire.Object)
	for id := range r.Updated {
		patch, ok := update[id].(wire.Object)
		if !ok || len(patch) == 0 {
			continue
		}
		if d.Patches == nil {
			d.Patches = make(map[string]wire.Object)
		}
		d.Patches[id] = patch.Clone()
	}
	return d, nil
}
