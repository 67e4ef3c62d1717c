package shape

import (
	"github.com/roach88/jmapc/internal/filter"
	"github.com/roach88/jmapc/internal/request"
)

// Comparator is one sort key of a query.
type Comparator struct {
	Property    string `json:"property"`
	IsAscending bool   `json:"isAscending"`
	Collation   string `json:"collation,omitempty"`
}

// Ascending sorts by property, smallest first.
func Ascending(property string) Comparator {
	return Comparator{Property: property, IsAscending: true}
}

// Descending sorts by property, largest first.
func Descending(property string) Comparator {
	return Comparator{Property: property}
}

// QueryCall searches for record ids matching a filter. The filter's
// condition type is fixed by C, so a Task query cannot carry a mailbox
// condition.
type QueryCall[E Entity, C filter.Condition] struct {
	AccountID      string           `json:"accountId"`
	Filter         filter.Filter[C] `json:"filter,omitzero"`
	Sort           []Comparator     `json:"sort,omitempty"`
	Position       int              `json:"position,omitempty"`
	Anchor         string           `json:"anchor,omitempty"`
	AnchorOffset   int              `json:"anchorOffset,omitempty"`
	Limit          int              `json:"limit,omitempty"`
	CalculateTotal bool             `json:"calculateTotal,omitempty"`
}

// Method returns "<Type>/query".
func (QueryCall[E, C]) Method() string { return typeName[E]() + "/query" }

// Capability returns the entity's capability.
func (QueryCall[E, C]) Capability() string { return capability[E]() }

// Validate checks the filter tree and paging arguments.
func (c QueryCall[E, C]) Validate() error {
	if c.AccountID == "" {
		return request.NewBuildError(request.CodeInvalidArgument, "accountId", "account id is required")
	}
	if !c.Filter.IsZero() {
		if err := c.Filter.Validate(); err != nil {
			return request.NewBuildError(request.CodeInvalidArgument, "filter", "%v", err)
		}
		if got, want := c.Filter.EntityType(), typeName[E](); got != want {
			return request.NewBuildError(request.CodeInvalidArgument, "filter",
				"%v: %s filter on %s query", filter.ErrTypeMismatch, got, want)
		}
	}
	if c.Limit < 0 {
		return request.NewBuildError(request.CodeInvalidArgument, "limit", "limit must not be negative")
	}
	if c.Anchor != "" && c.Position != 0 {
		return request.NewBuildError(request.CodeConflictingArguments, "anchor", "anchor and position are mutually exclusive")
	}
	for i, cmp := range c.Sort {
		if cmp.Property == "" {
			return request.NewBuildError(request.CodeInvalidArgument, "sort", "sort[%d] has no property", i)
		}
	}
	return nil
}

// QueryResponse lists matching ids in sort order. A Get in the same batch
// usually references IDs through the "/ids" path.
type QueryResponse[E Entity] struct {
	AccountID           string   `json:"accountId"`
	QueryState          string   `json:"queryState"`
	CanCalculateChanges bool     `json:"canCalculateChanges"`
	Position            int      `json:"position"`
	IDs                 []string `json:"ids"`
	Total               *int     `json:"total,omitempty"`
	Limit               *int     `json:"limit,omitempty"`
}
