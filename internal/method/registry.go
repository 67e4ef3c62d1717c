package method

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Call is implemented by every method call type.
// Method returns the wire name and must be callable on the zero value.
type Call interface {
	Method() string
}

// Entry is one registered (name, call type, response type) triple.
type Entry struct {
	Name     string
	Call     reflect.Type
	Response reflect.Type
}

// Registry is a bidirectional method table.
//
// Thread-safety: registration is serialized by an internal lock; once
// sealed the table never changes and lookups only read it.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Entry
	byCall map[reflect.Type]string
	sealed bool
}

// Default is the process-wide registry populated by entity packages.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Entry),
		byCall: make(map[reflect.Type]string),
	}
}

// Register binds name to the call and response types.
//
// Registering the identical triple twice is a no-op. Binding a name or call
// type that is already bound to a different counterpart fails with
// ErrDuplicateRegistration.
func (r *Registry) Register(callType, responseType reflect.Type, name string) error {
	callType = indirect(callType)
	responseType = indirect(responseType)
	if name == "" || callType == nil || responseType == nil {
		return fmt.Errorf("method: register %q: name, call type and response type are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return &RegistryError{Code: CodeRegistrySealed, Name: name, Type: callType}
	}

	if existing, ok := r.byName[name]; ok {
		if existing.Call == callType && existing.Response == responseType {
			return nil
		}
		return &RegistryError{Code: CodeDuplicateRegistration, Name: name, Type: existing.Call}
	}
	if existingName, ok := r.byCall[callType]; ok {
		return &RegistryError{Code: CodeDuplicateRegistration, Name: existingName, Type: callType}
	}

	r.byName[name] = Entry{Name: name, Call: callType, Response: responseType}
	r.byCall[callType] = name
	return nil
}

// ResolveName returns the wire name registered for callType.
func (r *Registry) ResolveName(callType reflect.Type) (string, error) {
	callType = indirect(callType)

	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byCall[callType]
	if !ok {
		return "", &RegistryError{Code: CodeUnknownMethod, Type: callType}
	}
	return name, nil
}

// NameOf resolves the wire name of a call value.
func (r *Registry) NameOf(call Call) (string, error) {
	return r.ResolveName(reflect.TypeOf(call))
}

// ResolveTypes returns the call and response types registered for name.
func (r *Registry) ResolveTypes(name string) (callType, responseType reflect.Type, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	if !ok {
		return nil, nil, &RegistryError{Code: CodeUnknownMethod, Name: name}
	}
	return e.Call, e.Response, nil
}

// NewResponse allocates a pointer to the response type registered for name,
// ready for decoding.
func (r *Registry) NewResponse(name string) (any, error) {
	_, resp, err := r.ResolveTypes(name)
	if err != nil {
		return nil, err
	}
	return reflect.New(resp).Interface(), nil
}

// Seal stops further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Entries returns all registrations sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns all registered wire names in sorted order.
func (r *Registry) Names() []string {
	entries := r.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Register records C and R under the wire name C declares.
// C must be a value type whose zero value answers Method.
func Register[C Call, R any](r *Registry) error {
	var c C
	return r.Register(reflect.TypeFor[C](), reflect.TypeFor[R](), c.Method())
}

// MustRegister is like Register but panics on error.
// Use only in init functions where a failure is a programming error.
func MustRegister[C Call, R any](r *Registry) {
	if err := Register[C, R](r); err != nil {
		panic(err)
	}
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
