package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
)

// Result is the outcome of one invocation.
//
// Exactly one of Response and Err is set. Response is a pointer to the
// registered response type. CacheErr is set by the client when a
// successful response could not be written to the cache; the protocol
// result is still valid.
type Result struct {
	ClientID string
	Name     string
	Response any
	Err      error
	CacheErr error
}

// OK reports whether the invocation produced a response.
func (r Result) OK() bool { return r.Err == nil }

// MethodError returns the server's whole-call error, if that is what the
// invocation produced.
func (r Result) MethodError() (*MethodError, bool) {
	var me *MethodError
	if errors.As(r.Err, &me) {
		return me, true
	}
	return nil, false
}

// As returns the result's response as *R.
func As[R any](r Result) (*R, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	resp, ok := r.Response.(*R)
	if !ok {
		var want *R
		return nil, fmt.Errorf("%w: %s is %T, want %T", ErrResponseType, r.ClientID, r.Response, want)
	}
	return resp, nil
}

// Results are in invocation order, followed by responses that matched no
// invocation.
type Results []Result

// Get returns the first result for clientID.
func (rs Results) Get(clientID string) (Result, bool) {
	for _, r := range rs {
		if r.ClientID == clientID {
			return r, true
		}
	}
	return Result{}, false
}

// All returns every result for clientID, including extra responses.
func (rs Results) All(clientID string) []Result {
	var out []Result
	for _, r := range rs {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func (rs Results) Failed() []Result {
	var out []Result
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins every result error, or returns nil when all succeeded.
func (rs Results) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ClientID, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Dispatcher decodes responses using a registry. It holds no mutable state
// and may be shared.
type Dispatcher struct {
	registry *method.Registry
}

// New returns a Dispatcher for r. A nil registry means method.Default.
func New(r *method.Registry) *Dispatcher {
	if r == nil {
		r = method.Default
	}
	return &Dispatcher{registry: r}
}

// Dispatch pairs raw responses with req's invocations.
//
// Results follow invocation order, not arrival order. An invocation with
// several responses (server-side implicit calls) yields them consecutively
// in arrival order. Responses for client ids absent from req are appended
// last with ErrUnmatchedClientID.
func (d *Dispatcher) Dispatch(req *request.Request, raws []RawResponse) Results {
	byID := make(map[string][]int, len(raws))
	var stray []int
	for i, raw := range raws {
		if req.Index(raw.ClientID) < 0 {
			stray = append(stray, i)
			continue
		}
		byID[raw.ClientID] = append(byID[raw.ClientID], i)
	}

	out := make(Results, 0, len(raws)+req.Len())
	for _, inv := range req.Invocations() {
		matched := byID[inv.ClientID()]
		if len(matched) == 0 {
			out = append(out, Result{
				ClientID: inv.ClientID(),
				Name:     inv.Name(),
				Err:      &IntegrityError{Code: CodeMissingResponse, ClientID: inv.ClientID(), Name: inv.Name()},
			})
			continue
		}
		for _, i := range matched {
			out = append(out, d.decode(raws[i]))
		}
	}

	for _, i := range stray {
		raw := raws[i]
		out = append(out, Result{
			ClientID: raw.ClientID,
			Name:     raw.Name,
			Err:      &IntegrityError{Code: CodeUnmatchedClientID, ClientID: raw.ClientID, Name: raw.Name},
		})
	}
	return out
}

// DispatchEnvelope dispatches the method responses of env.
func (d *Dispatcher) DispatchEnvelope(req *request.Request, env *ResponseEnvelope) Results {
	return d.Dispatch(req, env.MethodResponses)
}

func (d *Dispatcher) decode(raw RawResponse) Result {
	res := Result{ClientID: raw.ClientID, Name: raw.Name}

	if raw.Name == NameError {
		me, err := decodeMethodError(raw.Args)
		if err != nil {
			res.Err = &DecodeError{ClientID: raw.ClientID, Name: raw.Name, Err: err}
			return res
		}
		res.Err = me
		return res
	}

	resp, err := d.registry.NewResponse(raw.Name)
	if err != nil {
		res.Err = err
		return res
	}
	if err := json.Unmarshal(raw.Args, resp); err != nil {
		res.Err = &DecodeError{ClientID: raw.ClientID, Name: raw.Name, Err: err}
		return res
	}
	res.Response = resp
	return res
}

// Dispatch pairs raw responses with req using method.Default.
func Dispatch(req *request.Request, raws []RawResponse) Results {
	return New(nil).Dispatch(req, raws)
}
