package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/wire"
)

func TestAddAssignsSequentialIDs(t *testing.T) {
	b := newTestBuilder(t)

	id0, err := b.Add(noteQuery{AccountID: "A1"})
	require.NoError(t, err)
	id1, err := b.Add(noteGet{AccountID: "A1"})
	require.NoError(t, err)

	assert.Equal(t, "c0", id0)
	assert.Equal(t, "c1", id1)
	assert.Equal(t, 2, b.Len())
}

func TestAutoIDsSkipCallerIDs(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("c0", noteQuery{AccountID: "A1"}))

	id, err := b.Add(noteQuery{AccountID: "A1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}

func TestIDPrefix(t *testing.T) {
	b := newTestBuilder(t, WithIDPrefix("q"))
	id, err := b.Add(noteQuery{AccountID: "A1"})
	require.NoError(t, err)
	assert.Equal(t, "q0", id)
}

func TestAddWithIDDuplicate(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("a", noteQuery{AccountID: "A1"}))

	err := b.AddWithID("a", noteGet{AccountID: "A1"})
	assert.ErrorIs(t, err, ErrDuplicateClientID)

	err = b.AddWithID("", noteGet{AccountID: "A1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAddUnknownMethod(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Add(unregistered{})
	assert.ErrorIs(t, err, method.ErrUnknownMethod)
	assert.Equal(t, 0, b.Len())
}

func TestAddValidatesCall(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.Add(noteQuery{AccountID: "A1"})
	require.NoError(t, err)

	err = b.AddWithID("g", noteGet{AccountID: "A1", IDs: []string{"x"}, IDsRef: Ref(q, PathIDs)})
	require.ErrorIs(t, err, ErrConflictingArguments)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "g", be.ClientID)
	assert.Equal(t, "ids", be.Field)
}

func TestEmbeddedReferenceBackward(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.Add(noteQuery{AccountID: "A1"})
	require.NoError(t, err)
	g, err := b.Add(noteGet{AccountID: "A1", IDsRef: Ref(q, PathIDs)})
	require.NoError(t, err)

	req, err := b.Build()
	require.NoError(t, err)

	inv, ok := req.Invocation(g)
	require.True(t, ok)
	refs, err := inv.References()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "ids", refs[0].Field)
	assert.Equal(t, ResultReference{ResultOf: q, Name: "Note/query", Path: "/ids"}, refs[0].ResultReference)

	args := inv.Args()
	assert.False(t, args.Has("ids"))
	assert.Contains(t, args, "#ids")
}

func TestEmbeddedReferenceForward(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Add(noteGet{AccountID: "A1", IDsRef: Ref("later", PathIDs)})
	assert.True(t, IsForwardReference(err))
	assert.Equal(t, 0, b.Len())
}

func TestAddReferenceOrdering(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("first", noteQuery{AccountID: "A1"}))
	require.NoError(t, b.AddWithID("second", noteGet{AccountID: "A1"}))
	require.NoError(t, b.AddWithID("third", noteGet{AccountID: "A1"}))

	// Backward references are accepted regardless of the target field.
	require.NoError(t, b.AddReference("second", "ids", "first", PathIDs))
	require.NoError(t, b.AddReference("third", "ids", "second", "/list/*/id"))

	// Forward and self references are rejected.
	err := b.AddReference("first", "ids", "second", PathIDs)
	assert.ErrorIs(t, err, ErrForwardReference)
	err = b.AddReference("third", "properties", "third", "/list")
	assert.ErrorIs(t, err, ErrForwardReference)
	err = b.AddReference("second", "properties", "missing", "/list")
	assert.ErrorIs(t, err, ErrForwardReference)
}

func TestAddReferenceForwardProperty(t *testing.T) {
	// For every ordered pair (i, j) of invocations, a reference from j to i
	// succeeds exactly when i was added before j.
	ids := []string{"a", "b", "c", "d"}
	for ti, target := range ids {
		for si, source := range ids {
			b := newTestBuilder(t)
			for _, id := range ids {
				require.NoError(t, b.AddWithID(id, noteGet{AccountID: "A1"}))
			}
			err := b.AddReference(target, "ids", source, PathIDs)
			if si < ti {
				assert.NoError(t, err, "%s -> %s", target, source)
			} else {
				assert.True(t, IsForwardReference(err), "%s -> %s", target, source)
			}
		}
	}
}

func TestAddReferenceConflicts(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("q", noteQuery{AccountID: "A1"}))
	require.NoError(t, b.AddWithID("g", noteGet{AccountID: "A1", IDs: []string{"x"}}))

	err := b.AddReference("g", "ids", "q", PathIDs)
	assert.ErrorIs(t, err, ErrConflictingArguments)

	require.NoError(t, b.AddWithID("g2", noteGet{AccountID: "A1"}))
	require.NoError(t, b.AddReference("g2", "ids", "q", PathIDs))
	err = b.AddReference("g2", "ids", "q", PathIDs)
	assert.ErrorIs(t, err, ErrConflictingArguments)
}

func TestAddReferenceInvalid(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("q", noteQuery{AccountID: "A1"}))
	require.NoError(t, b.AddWithID("g", noteGet{AccountID: "A1"}))

	assert.ErrorIs(t, b.AddReference("nope", "ids", "q", PathIDs), ErrUnknownClientID)
	assert.ErrorIs(t, b.AddReference("g", "ids", "q", "ids"), ErrInvalidArgument)
	assert.ErrorIs(t, b.AddReference("g", "", "q", PathIDs), ErrInvalidArgument)
}

func TestBuildEmpty(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.Build()
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBuildIsolatedFromLaterChanges(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("q", noteQuery{AccountID: "A1"}))
	require.NoError(t, b.AddWithID("g", noteGet{AccountID: "A1"}))

	req, err := b.Build()
	require.NoError(t, err)

	require.NoError(t, b.AddReference("g", "ids", "q", PathIDs))
	_, err = b.Add(noteQuery{AccountID: "A2"})
	require.NoError(t, err)

	assert.Equal(t, 2, req.Len())
	inv, _ := req.Invocation("g")
	_, hasRef := inv.Args()["#ids"]
	assert.False(t, hasRef)
}

func TestInvocationArgsAreCopies(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.AddWithID("g", noteGet{AccountID: "A1", IDs: []string{"x"}}))
	req, err := b.Build()
	require.NoError(t, err)

	inv, _ := req.Invocation("g")
	args := inv.Args()
	args["ids"].(wire.Array)[0] = wire.String("mutated")

	again, _ := req.Invocation("g")
	assert.Equal(t, wire.Strings("x"), again.Args()["ids"])
}

func TestUsingCapabilities(t *testing.T) {
	b := newTestBuilder(t, WithUsing("urn:example:zeta", CapabilityCore))
	_, err := b.Add(labelGet{AccountID: "A1"})
	require.NoError(t, err)
	_, err = b.Add(labelGet{AccountID: "A2"})
	require.NoError(t, err)

	req, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{CapabilityCore, "urn:example:labels", "urn:example:zeta"}, req.Using())
}
