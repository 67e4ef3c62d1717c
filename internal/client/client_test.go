package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/cache"
	"github.com/roach88/jmapc/internal/dispatch"
	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/shape"
	"github.com/roach88/jmapc/internal/tasks"
)

type fakeTransport struct {
	got  *request.Request
	body string
	err  error
}

func (f *fakeTransport) Submit(_ context.Context, req *request.Request) (*dispatch.ResponseEnvelope, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return dispatch.DecodeEnvelope([]byte(f.body))
}

type brokenCache struct{ cache.Store }

func (brokenCache) Apply(context.Context, shape.Delta) error { return errors.New("disk full") }

func testRegistry(t *testing.T) *method.Registry {
	t.Helper()
	r := method.NewRegistry()
	require.NoError(t, tasks.Register(r))
	r.Seal()
	return r
}

func queryThenGet(t *testing.T, c *Client) *request.Request {
	t.Helper()
	b := c.NewBatch()
	q, err := b.Add(tasks.Query{AccountID: "A1"})
	require.NoError(t, err)
	_, err = b.Add(tasks.Get{AccountID: "A1", IDsRef: request.Ref(q, request.PathIDs)})
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)
	return req
}

const queryGetBody = `{"methodResponses":[
	["Task/query",{"accountId":"A1","queryState":"q1","canCalculateChanges":false,"position":0,"ids":["t1","t2"]},"c0"],
	["Task/get",{"accountId":"A1","state":"s7","list":[{"id":"t1","title":"one"}],"notFound":["t2"]},"c1"]
],"sessionState":"x"}`

func TestDoDispatchesAndCaches(t *testing.T) {
	ft := &fakeTransport{body: queryGetBody}
	store := cache.NewMemory()
	c := New(ft, WithRegistry(testRegistry(t)), WithCache(store))

	req := queryThenGet(t, c)
	results, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, req, ft.got)
	require.Len(t, results, 2)
	assert.NoError(t, results.Err())
	assert.NoError(t, results[1].CacheErr)

	get, err := dispatch.As[tasks.GetResponse](results[1])
	require.NoError(t, err)
	assert.Equal(t, "one", get.List[0].Title)

	state, err := store.State(context.Background(), "A1", "Task")
	require.NoError(t, err)
	assert.Equal(t, "s7", state)

	raw, err := store.Entity(context.Background(), "A1", "Task", "t1")
	require.NoError(t, err)
	var cached tasks.Task
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, "one", cached.Title)
}

func TestDoCacheFailureKeepsResult(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := New(&fakeTransport{body: queryGetBody},
		WithRegistry(testRegistry(t)),
		WithCache(brokenCache{}),
		WithLogger(logger),
	)

	results, err := c.Do(context.Background(), queryThenGet(t, c))
	require.NoError(t, err)

	get := results[1]
	assert.True(t, get.OK())
	assert.True(t, cache.IsCacheWriteFailure(get.CacheErr))
	assert.ErrorContains(t, get.CacheErr, "disk full")
	assert.NotNil(t, get.Response)

	assert.NoError(t, results[0].CacheErr, "query responses carry no delta")
	assert.Contains(t, logs.String(), "cache write failed")
	assert.Contains(t, logs.String(), "client_id=c1")
}

func TestDoTransportFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := New(&fakeTransport{err: boom}, WithRegistry(testRegistry(t)))

	results, err := c.Do(context.Background(), queryThenGet(t, c))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
}

func TestDoPartialFailure(t *testing.T) {
	body := `{"methodResponses":[
		["error",{"type":"unsupportedFilter"},"c0"],
		["error",{"type":"invalidResultReference"},"c1"]
	]}`
	store := cache.NewMemory()
	c := New(&fakeTransport{body: body}, WithRegistry(testRegistry(t)), WithCache(store))

	results, err := c.Do(context.Background(), queryThenGet(t, c))
	require.NoError(t, err)
	require.Len(t, results, 2)
	me, ok := results[0].MethodError()
	require.True(t, ok)
	assert.Equal(t, dispatch.MethodErrUnsupportedFilter, me.Type)

	state, err := store.State(context.Background(), "A1", "Task")
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestSetResultUpdatesCache(t *testing.T) {
	body := `{"methodResponses":[
		["Task/set",{"accountId":"A1","oldState":"s1","newState":"s2",
			"created":{"k1":{"id":"t5","title":"new"}},
			"destroyed":["t1"]},"c0"]
	]}`
	store := cache.NewMemory()
	require.NoError(t, store.Apply(context.Background(), shape.Delta{
		AccountID: "A1", TypeName: "Task", State: "s1",
		Upserts: map[string]json.RawMessage{"t1": json.RawMessage(`{"id":"t1"}`)},
	}))

	c := New(&fakeTransport{body: body}, WithRegistry(testRegistry(t)), WithCache(store))
	b := c.NewBatch()
	_, err := b.Add(tasks.Set{
		AccountID: "A1",
		IfInState: "s1",
		Create:    map[string]tasks.Task{"k1": {Title: "new"}},
		Destroy:   []string{"t1"},
	})
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)

	results, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	set, err := dispatch.As[tasks.SetResponse](results[0])
	require.NoError(t, err)
	id, ok := set.CreatedID("k1")
	require.True(t, ok)
	assert.Equal(t, "t5", id)

	ids, err := store.IDs(context.Background(), "A1", "Task")
	require.NoError(t, err)
	assert.Equal(t, []string{"t5"}, ids)
}

func TestSetResultAppliesSentPatch(t *testing.T) {
	ctx := context.Background()
	body := `{"methodResponses":[
		["Task/set",{"accountId":"A1","oldState":"s1","newState":"s2",
			"created":{"k1":{"id":"t9"}},
			"updated":{"t1":null}},"c0"]
	]}`
	store := cache.NewMemory()
	require.NoError(t, store.Apply(ctx, shape.Delta{
		AccountID: "A1", TypeName: "Task", State: "s1",
		Upserts: map[string]json.RawMessage{"t1": json.RawMessage(`{"id":"t1","title":"old"}`)},
	}))

	c := New(&fakeTransport{body: body}, WithRegistry(testRegistry(t)), WithCache(store))
	b := c.NewBatch()
	_, err := b.Add(tasks.Set{
		AccountID: "A1",
		Create:    map[string]tasks.Task{"k1": {Title: "Water plants"}},
		Update:    map[string]shape.PatchObject{"t1": shape.Patch("title", "new")},
	})
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)

	results, err := c.Do(ctx, req)
	require.NoError(t, err)
	require.NoError(t, results[0].CacheErr)

	state, err := store.State(ctx, "A1", "Task")
	require.NoError(t, err)
	assert.Equal(t, "s2", state)

	updated, err := store.Entity(ctx, "A1", "Task", "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1","title":"new"}`, string(updated))

	created, err := store.Entity(ctx, "A1", "Task", "t9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t9","title":"Water plants"}`, string(created))
}

func TestSetResultFromOtherStateKeepsCachedState(t *testing.T) {
	ctx := context.Background()
	body := `{"methodResponses":[
		["Task/set",{"accountId":"A1","oldState":"s1","newState":"s2","destroyed":["t1"]},"c0"]
	]}`
	store := cache.NewMemory()
	require.NoError(t, store.Apply(ctx, shape.Delta{
		AccountID: "A1", TypeName: "Task", State: "s0",
		Upserts: map[string]json.RawMessage{"t1": json.RawMessage(`{"id":"t1"}`)},
	}))

	c := New(&fakeTransport{body: body}, WithRegistry(testRegistry(t)), WithCache(store))
	b := c.NewBatch()
	_, err := b.Add(tasks.Set{AccountID: "A1", Destroy: []string{"t1"}})
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)

	results, err := c.Do(ctx, req)
	require.NoError(t, err)
	require.NoError(t, results[0].CacheErr)

	state, err := store.State(ctx, "A1", "Task")
	require.NoError(t, err)
	assert.Equal(t, "s0", state, "changes between s0 and s1 are still missing")
	_, err = store.Entity(ctx, "A1", "Task", "t1")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestEcho(t *testing.T) {
	c := New(&fakeTransport{body: `{"methodResponses":[["Core/echo",{"ping":"pong"},"c0"]]}`},
		WithRegistry(testRegistry(t)))

	got, err := c.Echo(context.Background(), map[string]any{"ping": "pong"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ping": "pong"}, got)
}

func TestNewDefaults(t *testing.T) {
	c := New(&fakeTransport{})
	assert.Same(t, method.Default, c.registry)
	assert.Nil(t, c.cache)
}
