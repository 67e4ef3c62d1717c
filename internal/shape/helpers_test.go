package shape

import (
	"testing"

	"github.com/roach88/jmapc/internal/method"
)

type note struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

func (note) TypeName() string   { return "Note" }
func (note) Capability() string { return "urn:example:notes" }
func (n note) EntityID() string { return n.ID }

type noteCondition struct {
	Title string `json:"title,omitempty"`
}

func (noteCondition) EntityType() string { return "Note" }

type mailboxCondition struct {
	Role string `json:"role,omitempty"`
}

func (mailboxCondition) EntityType() string { return "Mailbox" }

func noteRegistry(t *testing.T) *method.Registry {
	t.Helper()
	r := method.NewRegistry()
	method.MustRegister[GetCall[note], GetResponse[note]](r)
	method.MustRegister[SetCall[note], SetResponse[note]](r)
	method.MustRegister[QueryCall[note, noteCondition], QueryResponse[note]](r)
	method.MustRegister[ChangesCall[note], ChangesResponse[note]](r)
	if err := RegisterCore(r); err != nil {
		t.Fatal(err)
	}
	r.Seal()
	return r
}
