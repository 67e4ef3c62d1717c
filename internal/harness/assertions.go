package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/jmapc/internal/cache"
	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/shape"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			status := "ok"
			if event.Error != "" {
				status = event.Error
			}
			fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", i+1, event.ClientID, event.Method, status)
		}
	}

	return buf.String()
}

// bucket is one named key set of a response.
type bucket struct {
	name string
	keys []string
}

// partition checks that every requested key lands in exactly one bucket and
// that no bucket holds a key nobody asked for. A nil requested slice means
// "all records": only overlap between buckets is checked then.
func partition(requested []string, buckets ...bucket) []string {
	seen := make(map[string][]string)
	for _, b := range buckets {
		for _, key := range b.keys {
			seen[key] = append(seen[key], b.name)
		}
	}

	var problems []string
	want := make(map[string]bool, len(requested))
	for _, key := range requested {
		want[key] = true
	}
	for _, key := range slices.Sorted(maps.Keys(seen)) {
		in := seen[key]
		switch {
		case len(in) > 1:
			problems = append(problems, fmt.Sprintf("%q in %s", key, strings.Join(in, " and ")))
		case requested != nil && !want[key]:
			problems = append(problems, fmt.Sprintf("%q in %s was not requested", key, in[0]))
		}
	}
	for _, key := range requested {
		if _, ok := seen[key]; !ok {
			names := make([]string, len(buckets))
			for i, b := range buckets {
				names[i] = b.name
			}
			problems = append(problems, fmt.Sprintf("%q in none of %s", key, strings.Join(names, ", ")))
		}
	}
	return problems
}

// decodeResponse reads a typed response or raw JSON into out.
func decodeResponse(response any, out any) error {
	data, ok := response.(json.RawMessage)
	if !ok {
		var err error
		if data, err = json.Marshal(response); err != nil {
			return fmt.Errorf("harness: encode response: %w", err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("harness: decode response: %w", err)
	}
	return nil
}

// CheckGetPartition verifies that a get response accounts for every
// requested id exactly once, either in list or in notFound. requested nil
// stands for a get without ids.
//
// response is a typed get response or its raw JSON.
func CheckGetPartition(requested []string, response any) error {
	var resp struct {
		List []struct {
			ID string `json:"id"`
		} `json:"list"`
		NotFound []string `json:"notFound"`
	}
	if err := decodeResponse(response, &resp); err != nil {
		return err
	}
	found := make([]string, len(resp.List))
	for i, item := range resp.List {
		found[i] = item.ID
	}

	problems := partition(requested, bucket{"list", found}, bucket{"notFound", resp.NotFound})
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertGetPartition,
		Expected: fmt.Sprintf("ids %v split between list and notFound", requested),
		Actual:   strings.Join(problems, "; "),
	}
}

// CheckSetPartition verifies that a set response reports every create key,
// update id and destroy id exactly once, as a success or as a failure.
func CheckSetPartition(create, update, destroy []string, response any) error {
	var resp struct {
		Created      map[string]json.RawMessage `json:"created"`
		Updated      map[string]json.RawMessage `json:"updated"`
		Destroyed    []string                   `json:"destroyed"`
		NotCreated   map[string]json.RawMessage `json:"notCreated"`
		NotUpdated   map[string]json.RawMessage `json:"notUpdated"`
		NotDestroyed map[string]json.RawMessage `json:"notDestroyed"`
	}
	if err := decodeResponse(response, &resp); err != nil {
		return err
	}

	var problems []string
	problems = append(problems, partition(nonNil(create),
		bucket{"created", slices.Sorted(maps.Keys(resp.Created))},
		bucket{"notCreated", slices.Sorted(maps.Keys(resp.NotCreated))})...)
	problems = append(problems, partition(nonNil(update),
		bucket{"updated", slices.Sorted(maps.Keys(resp.Updated))},
		bucket{"notUpdated", slices.Sorted(maps.Keys(resp.NotUpdated))})...)
	problems = append(problems, partition(nonNil(destroy),
		bucket{"destroyed", resp.Destroyed},
		bucket{"notDestroyed", slices.Sorted(maps.Keys(resp.NotDestroyed))})...)
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSetPartition,
		Expected: fmt.Sprintf("create %v, update %v, destroy %v each reported once", create, update, destroy),
		Actual:   strings.Join(problems, "; "),
	}
}

// nonNil turns an empty key set into "nothing requested" rather than "all".
func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

// GetPartition checks resp against the ids of call. Calls that take ids by
// reference need CheckGetPartition with the resolved ids.
func GetPartition[E shape.Entity](call shape.GetCall[E], resp *shape.GetResponse[E]) error {
	return CheckGetPartition(call.IDs, resp)
}

// SetPartition checks resp against the keys of call. Calls that destroy
// by reference need CheckSetPartition with the resolved ids.
func SetPartition[E shape.Entity](call shape.SetCall[E], resp *shape.SetResponse[E]) error {
	return CheckSetPartition(
		slices.Sorted(maps.Keys(call.Create)),
		slices.Sorted(maps.Keys(call.Update)),
		call.Destroy,
		resp,
	)
}

// AssertionContext provides what assertions are evaluated against.
type AssertionContext struct {
	Ctx     context.Context
	Request *request.Request
	Cache   cache.Store
	Account string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertGetPartition:
			err = assertGetPartition(result, assertion, actx)
		case AssertSetPartition:
			err = assertSetPartition(result, assertion, actx)
		case AssertResultOrder:
			err = assertResultOrder(result, assertion)
		case AssertResultOK:
			err = assertResultOK(result, assertion)
		case AssertResultError:
			err = assertResultError(result, assertion)
		case AssertCacheEntity, AssertCacheState:
			if actx == nil || actx.Cache == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a cache", i, assertion.Type)
			} else if assertion.Type == AssertCacheEntity {
				err = assertCacheEntity(actx, assertion)
			} else {
				err = assertCacheState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) && ae.Trace == nil {
				ae.Trace = result.Trace
			}
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// succeeded returns the trace event of a call that must have succeeded.
func succeeded(result *Result, kind, clientID string) (TraceEvent, error) {
	event, ok := result.Event(clientID)
	if !ok {
		return event, &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("a result for %s", clientID),
			Actual:   "not in trace",
		}
	}
	if event.Error != "" {
		return event, &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s to succeed", clientID),
			Actual:   event.Error,
		}
	}
	return event, nil
}

// callArgs decodes the arguments of a call in the built request and
// substitutes referenced fields with values resolved from the trace.
func callArgs(result *Result, actx *AssertionContext, kind, clientID string, out any) error {
	if actx == nil || actx.Request == nil {
		return fmt.Errorf("%s requires the built request", kind)
	}
	inv, ok := actx.Request.Invocation(clientID)
	if !ok {
		return &AssertionError{Type: kind, Expected: fmt.Sprintf("call %s in request", clientID), Actual: "not found"}
	}

	args := make(map[string]any)
	if err := decodeResponse(inv.Args(), &args); err != nil {
		return err
	}

	refs, err := inv.References()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		delete(args, request.ReferenceMarker+ref.Field)
		source, ok := result.Event(ref.ResultOf)
		if !ok || source.Error != "" {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s.%s resolvable from %s", clientID, ref.Field, ref.ResultOf),
				Actual:   fmt.Sprintf("%s has no response", ref.ResultOf),
			}
		}
		var doc any
		if err := json.Unmarshal(source.Response, &doc); err != nil {
			return err
		}
		v, err := evalPointer(doc, ref.Path)
		if err != nil {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("%s%s to resolve", ref.ResultOf, ref.Path),
				Actual:   err.Error(),
			}
		}
		args[ref.Field] = v
	}

	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func assertGetPartition(result *Result, assertion Assertion, actx *AssertionContext) error {
	event, err := succeeded(result, AssertGetPartition, assertion.Call)
	if err != nil {
		return err
	}

	requested := assertion.IDs
	if requested == nil {
		var args struct {
			IDs []string `json:"ids"`
		}
		if err := callArgs(result, actx, AssertGetPartition, assertion.Call, &args); err != nil {
			return err
		}
		requested = args.IDs
	}
	return CheckGetPartition(requested, event.Response)
}

func assertSetPartition(result *Result, assertion Assertion, actx *AssertionContext) error {
	event, err := succeeded(result, AssertSetPartition, assertion.Call)
	if err != nil {
		return err
	}

	var args struct {
		Create  map[string]json.RawMessage `json:"create"`
		Update  map[string]json.RawMessage `json:"update"`
		Destroy []string                   `json:"destroy"`
	}
	if err := callArgs(result, actx, AssertSetPartition, assertion.Call, &args); err != nil {
		return err
	}
	return CheckSetPartition(
		slices.Sorted(maps.Keys(args.Create)),
		slices.Sorted(maps.Keys(args.Update)),
		args.Destroy,
		event.Response,
	)
}

// assertResultOrder checks that results came back in exactly this order.
func assertResultOrder(result *Result, assertion Assertion) error {
	got := make([]string, len(result.Trace))
	for i, event := range result.Trace {
		got[i] = event.ClientID
	}
	if !slices.Equal(got, assertion.Calls) {
		return &AssertionError{
			Type:     AssertResultOrder,
			Expected: fmt.Sprintf("results in order %v", assertion.Calls),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertResultOK(result *Result, assertion Assertion) error {
	_, err := succeeded(result, AssertResultOK, assertion.Call)
	return err
}

// assertResultError checks that the call failed, with the given error type
// when one is named.
func assertResultError(result *Result, assertion Assertion) error {
	event, ok := result.Event(assertion.Call)
	if !ok {
		return &AssertionError{
			Type:     AssertResultError,
			Expected: fmt.Sprintf("a result for %s", assertion.Call),
			Actual:   "not in trace",
		}
	}
	if event.Error == "" {
		return &AssertionError{
			Type:     AssertResultError,
			Expected: fmt.Sprintf("%s to fail", assertion.Call),
			Actual:   "succeeded",
		}
	}
	if assertion.ErrorType != "" && event.ErrorType != assertion.ErrorType {
		return &AssertionError{
			Type:     AssertResultError,
			Expected: fmt.Sprintf("%s error of type %s", assertion.Call, assertion.ErrorType),
			Actual:   fmt.Sprintf("type %q: %s", event.ErrorType, event.Error),
		}
	}
	return nil
}

func account(actx *AssertionContext, assertion Assertion) string {
	if assertion.Account != "" {
		return assertion.Account
	}
	return actx.Account
}

// assertCacheEntity checks a cached record using subset semantics, or its
// absence.
func assertCacheEntity(actx *AssertionContext, assertion Assertion) error {
	acct := account(actx, assertion)
	raw, err := actx.Cache.Entity(actx.Ctx, acct, assertion.Entity, assertion.ID)
	if assertion.Absent {
		if errors.Is(err, cache.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return &AssertionError{
			Type:     AssertCacheEntity,
			Expected: fmt.Sprintf("%s/%s %s not cached", acct, assertion.Entity, assertion.ID),
			Actual:   string(raw),
		}
	}
	if errors.Is(err, cache.ErrNotFound) {
		return &AssertionError{
			Type:     AssertCacheEntity,
			Expected: fmt.Sprintf("%s/%s %s cached", acct, assertion.Entity, assertion.ID),
			Actual:   "not found",
		}
	}
	if err != nil {
		return err
	}

	var actual map[string]any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return err
	}
	expected, err := normalize(assertion.Expect)
	if err != nil {
		return err
	}
	if !matchFields(actual, expected) {
		return &AssertionError{
			Type:     AssertCacheEntity,
			Expected: fmt.Sprintf("%s/%s %s with %v", acct, assertion.Entity, assertion.ID, expected),
			Actual:   string(raw),
		}
	}
	return nil
}

func assertCacheState(actx *AssertionContext, assertion Assertion) error {
	acct := account(actx, assertion)
	state, err := actx.Cache.State(actx.Ctx, acct, assertion.Entity)
	if err != nil {
		return err
	}
	if state != assertion.State {
		return &AssertionError{
			Type:     AssertCacheState,
			Expected: fmt.Sprintf("%s/%s state %q", acct, assertion.Entity, assertion.State),
			Actual:   fmt.Sprintf("%q", state),
		}
	}
	return nil
}

// normalize passes YAML-decoded values through JSON so numbers compare as
// float64 against decoded cache records.
func normalize(m map[string]any) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
