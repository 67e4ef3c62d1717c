package shape

import "github.com/roach88/jmapc/internal/request"

// ChangesCall asks which records changed since a state string.
type ChangesCall[E Entity] struct {
	AccountID  string `json:"accountId"`
	SinceState string `json:"sinceState"`
	MaxChanges int    `json:"maxChanges,omitempty"`
}

// Method returns "<Type>/changes".
func (ChangesCall[E]) Method() string { return typeName[E]() + "/changes" }

// Capability returns the entity's capability.
func (ChangesCall[E]) Capability() string { return capability[E]() }

func (c ChangesCall[E]) Validate() error {
	if c.AccountID == "" {
		return request.NewBuildError(request.CodeInvalidArgument, "accountId", "account id is required")
	}
	if c.SinceState == "" {
		return request.NewBuildError(request.CodeInvalidArgument, "sinceState", "since state is required")
	}
	if c.MaxChanges < 0 {
		return request.NewBuildError(request.CodeInvalidArgument, "maxChanges", "max changes must not be negative")
	}
	return nil
}

// ChangesResponse lists ids created, updated and destroyed between
// OldState and NewState.
type ChangesResponse[E Entity] struct {
	AccountID      string   `json:"accountId"`
	OldState       string   `json:"oldState"`
	NewState       string   `json:"newState"`
	HasMoreChanges bool     `json:"hasMoreChanges"`
	Created        []string `json:"created"`
	Updated        []string `json:"updated"`
	Destroyed      []string `json:"destroyed"`
}

// Delta removes destroyed ids. It leaves the state alone: created and
// updated ids carry no data, and the state may only advance once a Get has
// fetched them.
func (r *ChangesResponse[E]) Delta() (Delta, error) {
	return Delta{
		AccountID: r.AccountID,
		TypeName:  typeName[E](),
		OldState:  r.OldState,
		Removed:   append([]string(nil), r.Destroyed...),
	}, nil
}
