package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInitializing: "initializing",
		StateReady:        "ready",
		StateDraining:     "draining",
		StateClosed:       "closed",
		State(99):         "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestConnect_SpawnErrorForMissingCommand(t *testing.T) {
	spec := config.ServerSpec{Name: "ghost", Command: "toolgateway-nonexistent-binary-xyz"}

	session, err := Connect(context.Background(), spec, 2*time.Second)

	require.Error(t, err)
	assert.Nil(t, session)
	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "ghost", spawnErr.Server)
}

func TestConnect_HandshakeTimeout(t *testing.T) {
	// "cat" never speaks MCP, so the handshake read will block until the
	// context we pass expires.
	spec := config.ServerSpec{Name: "silent", Command: "cat"}

	_, err := Connect(context.Background(), spec, 50*time.Millisecond)

	require.Error(t, err)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		var handshakeErr *HandshakeError
		require.ErrorAs(t, err, &handshakeErr)
	}
}

func TestLooksLikeDeadProcess(t *testing.T) {
	assert.True(t, looksLikeDeadProcess(io.EOF))
	assert.True(t, looksLikeDeadProcess(errors.New("write: broken pipe")))
	assert.False(t, looksLikeDeadProcess(errors.New("unknown tool \"frobnicate\"")))
}

func TestDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	assert.True(t, deadlineExceeded(ctx.Err()))
	assert.False(t, deadlineExceeded(errors.New("boom")))
}

func TestServerSession_CallRejectsWhenNotReady(t *testing.T) {
	session := &ServerSession{spec: config.ServerSpec{Name: "s"}, state: StateDraining}

	_, err := session.Call(context.Background(), "anything", nil)

	require.Error(t, err)
	var lost *ConnectionLostError
	assert.ErrorAs(t, err, &lost)
}
