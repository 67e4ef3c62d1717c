package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/method"
	"github.com/roach88/jmapc/internal/request"
	"github.com/roach88/jmapc/internal/shape"
	"github.com/roach88/jmapc/internal/tasks"
)

const echoEnvelope = `{"methodResponses":[["Core/echo",{"ping":"pong"},"c0"]],"sessionState":"sess-1"}`

func echoRequest(t *testing.T) *request.Request {
	t.Helper()
	r := method.NewRegistry()
	require.NoError(t, tasks.Register(r))
	b := request.NewBuilder(request.WithRegistry(r))
	_, err := b.Add(shape.Echo{"ping": "pong"})
	require.NoError(t, err)
	req, err := b.Build()
	require.NoError(t, err)
	return req
}
