package request

import (
	"fmt"
	"slices"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/wire"
)

// CapabilityCore is always present in a request's using list.
const CapabilityCore = "urn:ietf:params:jmap:core"

// CapabilityDeclarer is implemented by calls that need a capability beyond core.
type CapabilityDeclarer interface {
	Capability() string
}

// Builder assembles invocations in caller order.
//
// Builder is single-threaded by contract: concurrent use is undefined and
// callers must not share an in-progress builder.
type Builder struct {
	registry    *method.Registry
	using       []string
	prefix      string
	next        int
	createdIDs  map[string]string
	invocations []Invocation
	index       map[string]int
}

// Option configures a Builder.
type Option func(*Builder)

// WithRegistry resolves wire names from r instead of method.Default.
func WithRegistry(r *method.Registry) Option {
	return func(b *Builder) {
		b.registry = r
	}
}

// WithUsing adds capabilities to the request's using list.
func WithUsing(capabilities ...string) Option {
	return func(b *Builder) {
		b.using = append(b.using, capabilities...)
	}
}

// WithIDPrefix sets the prefix of auto-generated client ids (default "c").
func WithIDPrefix(prefix string) Option {
	return func(b *Builder) {
		b.prefix = prefix
	}
}

// WithCreatedIDs seeds the request's createdIds map so creation ids from an
// earlier request can be referenced as "#creationId".
func WithCreatedIDs(ids map[string]string) Option {
	return func(b *Builder) {
		b.createdIDs = make(map[string]string, len(ids))
		for k, v := range ids {
			b.createdIDs[k] = v
		}
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		registry: method.Default,
		using:    []string{CapabilityCore},
		prefix:   "c",
		index:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Len returns the number of invocations added so far.
func (b *Builder) Len() int {
	return len(b.invocations)
}

// Has reports whether clientID has been added.
func (b *Builder) Has(clientID string) bool {
	_, ok := b.index[clientID]
	return ok
}

// Add appends call with an auto-generated client id and returns the id.
// Auto ids count up from 0 per builder and skip ids the caller already took.
func (b *Builder) Add(call method.Call) (string, error) {
	id := b.nextID()
	if err := b.add(id, call); err != nil {
		return "", err
	}
	return id, nil
}

// AddWithID appends call under a caller-chosen client id.
func (b *Builder) AddWithID(clientID string, call method.Call) error {
	if clientID == "" {
		return &BuildError{Code: CodeInvalidArgument, Message: "client id must not be empty"}
	}
	if b.Has(clientID) {
		return &BuildError{Code: CodeDuplicateClientID, ClientID: clientID, Message: "client id already in batch"}
	}
	return b.add(clientID, call)
}

func (b *Builder) nextID() string {
	for {
		id := fmt.Sprintf("%s%d", b.prefix, b.next)
		b.next++
		if !b.Has(id) {
			return id
		}
	}
}

func (b *Builder) add(clientID string, call method.Call) error {
	if call == nil {
		return &BuildError{Code: CodeInvalidArgument, ClientID: clientID, Message: "nil call"}
	}
	if v, ok := call.(Validator); ok {
		if err := v.Validate(); err != nil {
			return withClientID(err, clientID)
		}
	}

	name, err := b.registry.NameOf(call)
	if err != nil {
		return fmt.Errorf("add %s: %w", clientID, err)
	}

	args, err := wire.ObjectFrom(call)
	if err != nil {
		return fmt.Errorf("add %s: %w", clientID, err)
	}

	if r, ok := call.(Referencer); ok {
		refs := r.References()
		fields := make([]string, 0, len(refs))
		for field := range refs {
			fields = append(fields, field)
		}
		slices.Sort(fields)
		for _, field := range fields {
			ref := refs[field]
			if ref == nil {
				continue
			}
			if err := b.attach(args, len(b.invocations), clientID, field, *ref); err != nil {
				return err
			}
		}
	}

	if c, ok := call.(CapabilityDeclarer); ok {
		b.using = append(b.using, c.Capability())
	}

	b.index[clientID] = len(b.invocations)
	b.invocations = append(b.invocations, Invocation{name: name, args: args, clientID: clientID})
	return nil
}

// AddReference places a reference to path in sourceClientID's response at
// field of the target invocation. The source must have been added before
// the target.
func (b *Builder) AddReference(targetClientID, field, sourceClientID, path string) error {
	pos, ok := b.index[targetClientID]
	if !ok {
		return &BuildError{Code: CodeUnknownClientID, ClientID: targetClientID, Field: field, Message: "target invocation not in batch"}
	}

	target := b.invocations[pos]
	args := wire.Copy(target.args).(wire.Object)
	ref := ResultReference{ResultOf: sourceClientID, Path: path}
	if err := b.attach(args, pos, targetClientID, field, ref); err != nil {
		return err
	}
	b.invocations[pos] = Invocation{name: target.name, args: args, clientID: target.clientID}
	return nil
}

// attach writes ref into args at field for the invocation at position pos.
func (b *Builder) attach(args wire.Object, pos int, clientID, field string, ref ResultReference) error {
	if field == "" {
		return &BuildError{Code: CodeInvalidArgument, ClientID: clientID, Message: "reference field must not be empty"}
	}
	if err := validatePath(ref.Path); err != nil {
		return &BuildError{Code: CodeInvalidArgument, ClientID: clientID, Field: field, Message: err.Error()}
	}

	src, ok := b.index[ref.ResultOf]
	if !ok || src >= pos {
		return &BuildError{
			Code:     CodeForwardReference,
			ClientID: clientID,
			Field:    field,
			Message:  fmt.Sprintf("source %q is not an earlier invocation", ref.ResultOf),
		}
	}

	if args.Has(field) {
		return &BuildError{Code: CodeConflictingArguments, ClientID: clientID, Field: field, Message: "field has both a literal value and a reference"}
	}
	key := ReferenceMarker + field
	if _, exists := args[key]; exists {
		return &BuildError{Code: CodeConflictingArguments, ClientID: clientID, Field: field, Message: "field already has a reference"}
	}

	ref.Name = b.invocations[src].name
	delete(args, field)
	args[key] = ref.value()
	return nil
}

// Build returns the immutable request. The builder may keep being used;
// later additions do not affect requests already built.
func (b *Builder) Build() (*Request, error) {
	if len(b.invocations) == 0 {
		return nil, &BuildError{Code: CodeEmptyBatch, Message: "no invocations added"}
	}

	invs := make([]Invocation, len(b.invocations))
	for i, inv := range b.invocations {
		invs[i] = Invocation{name: inv.name, args: wire.Copy(inv.args).(wire.Object), clientID: inv.clientID}
	}
	return newRequest(b.using, invs, b.createdIDs)
}
