package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/jmapc/internal/cache"
	"github.com/roach88/jmapc/internal/cli"
	"github.com/roach88/jmapc/internal/client"
	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/tasks"
	"github.com/roach88/jmapc/internal/wire"
)

// Harness runs scenarios against a method registry.
type Harness struct {
	registry *method.Registry
	logger   *slog.Logger
}

// New creates a harness resolving methods in r.
func New(r *method.Registry) *Harness {
	return &Harness{
		registry: r,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
}

// Run executes a scenario with the task methods registered.
func Run(scenario *Scenario) (*Result, error) {
	r := method.NewRegistry()
	if err := tasks.Register(r); err != nil {
		return nil, fmt.Errorf("failed to register methods: %w", err)
	}
	r.Seal()
	return New(r).Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh in-memory cache. Execution flow:
// 1. Build the batch into a request
// 2. Submit it to a transport that answers with the scenario's responses
// 3. Dispatch and cache through the client
// 4. Record the trace and evaluate assertions
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	req, err := cli.BuildRequest(&scenario.Batch, h.registry, scenario.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch: %w", err)
	}
	body, err := req.MarshalJSON()
	if err != nil {
		return nil, err
	}

	env, err := scenario.envelope()
	if err != nil {
		return nil, err
	}

	store := cache.NewMemory()
	c := client.New(scripted{env}, client.WithRegistry(h.registry), client.WithCache(store), client.WithLogger(h.logger))
	results, err := c.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch: %w", err)
	}

	result := NewResult()
	result.Request = body
	for _, res := range results {
		event, err := traceEvent(res)
		if err != nil {
			return nil, err
		}
		result.Trace = append(result.Trace, event)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Request: req,
		Cache:   store,
		Account: scenario.Account,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// scripted answers every request with the same envelope.
type scripted struct {
	env *dispatch.ResponseEnvelope
}

func (s scripted) Submit(context.Context, *request.Request) (*dispatch.ResponseEnvelope, error) {
	return s.env, nil
}

func traceEvent(res dispatch.Result) (TraceEvent, error) {
	event := TraceEvent{ClientID: res.ClientID, Method: res.Name}
	if res.Err == nil {
		data, err := wire.Canonicalize(res.Response)
		if err != nil {
			return event, fmt.Errorf("%s: %w", res.ClientID, err)
		}
		event.Response = data
	} else {
		event.Error = res.Err.Error()
		var ie *dispatch.IntegrityError
		if me, ok := res.MethodError(); ok {
			event.ErrorType = me.Type
		} else if errors.As(res.Err, &ie) {
			event.ErrorType = string(ie.Code)
		}
	}
	if res.CacheErr != nil {
		event.CacheError = res.CacheErr.Error()
	}
	return event, nil
}
