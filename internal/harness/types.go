package harness

import "encoding/json"

// TraceEvent is one dispatched result, in dispatch order.
type TraceEvent struct {
	ClientID   string          `json:"client_id"`
	Method     string          `json:"method"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorType  string          `json:"error_type,omitempty"`
	CacheError string          `json:"cache_error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Request is the canonical request the scenario built.
	Request json.RawMessage `json:"request"`

	// Trace holds one event per dispatched result.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Event returns the first trace event for clientID.
func (r *Result) Event(clientID string) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.ClientID == clientID {
			return e, true
		}
	}
	return TraceEvent{}, false
}
