package transport

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/testutil"
)

const testSubject = "jmap.api"

// startNATS runs an in-process server on a random port.
func startNATS(t *testing.T) *nats.Conn {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server failed to start")
	}

	nc, err := ConnectNATS(ns.ClientURL(), "jmapc-test", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

func TestNATSSubmit(t *testing.T) {
	nc := startNATS(t)
	req := echoRequest(t)
	want, err := req.MarshalJSON()
	require.NoError(t, err)

	got := make(chan *nats.Msg, 1)
	sub, err := nc.Subscribe(testSubject, func(msg *nats.Msg) {
		got <- msg
		_ = msg.Respond([]byte(echoEnvelope))
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	tr := NewNATS(nc, testSubject, BearerToken("tok"), WithNATSRequestIDs(testutil.NewSequentialIDs("nats")))
	env, err := tr.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, env.MethodResponses, 1)
	assert.Equal(t, "c0", env.MethodResponses[0].ClientID)

	msg := <-got
	assert.Equal(t, string(want), string(msg.Data))
	assert.Equal(t, "Bearer tok", msg.Header.Get("Authorization"))
	assert.Equal(t, "nats-1", msg.Header.Get(HeaderRequestID))
}

func TestNATSStatusReply(t *testing.T) {
	nc := startNATS(t)
	sub, err := nc.Subscribe(testSubject, func(msg *nats.Msg) {
		reply := nats.NewMsg(msg.Reply)
		reply.Header.Set(HeaderStatus, "403")
		reply.Header.Set(HeaderDetail, "account is read only")
		_ = msg.RespondMsg(reply)
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	_, err = NewNATS(nc, testSubject, nil).Submit(context.Background(), echoRequest(t))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.StatusCode)
	assert.Equal(t, "account is read only", se.Detail)
}

func TestNATSNoResponders(t *testing.T) {
	nc := startNATS(t)
	tr := NewNATS(nc, "nobody.home", nil, WithNATSTimeout(time.Second))
	_, err := tr.Submit(context.Background(), echoRequest(t))
	assert.ErrorIs(t, err, nats.ErrNoResponders)
}
