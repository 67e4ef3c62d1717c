package request

import (
	"testing"

	"github.com/roach88/jmapc/internal/method"
)

type noteQuery struct {
	AccountID string `json:"accountId"`
}

func (noteQuery) Method() string { return "Note/query" }

type noteQueryResponse struct{}

type noteGet struct {
	AccountID string           `json:"accountId"`
	IDs       []string         `json:"ids,omitempty"`
	IDsRef    *ResultReference `json:"-"`
}

func (noteGet) Method() string { return "Note/get" }

func (c noteGet) Validate() error {
	if c.IDs != nil && c.IDsRef != nil {
		return NewBuildError(CodeConflictingArguments, "ids", "ids and an ids reference are exclusive")
	}
	return nil
}

func (c noteGet) References() map[string]*ResultReference {
	return map[string]*ResultReference{"ids": c.IDsRef}
}

type noteGetResponse struct{}

type labelGet struct {
	AccountID string `json:"accountId"`
}

func (labelGet) Method() string     { return "Label/get" }
func (labelGet) Capability() string { return "urn:example:labels" }

type unregistered struct{}

func (unregistered) Method() string { return "Nope/get" }

func testRegistry(t *testing.T) *method.Registry {
	t.Helper()
	r := method.NewRegistry()
	method.MustRegister[noteQuery, noteQueryResponse](r)
	method.MustRegister[noteGet, noteGetResponse](r)
	method.MustRegister[labelGet, noteGetResponse](r)
	r.Seal()
	return r
}

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	return NewBuilder(append([]Option{WithRegistry(testRegistry(t))}, opts...)...)
}
