package toolserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/clade/internal/ipc"
)

func newTestIPCServer(t *testing.T) *ipc.Server {
	t.Helper()
	srv, err := ipc.Listen(filepath.Join(t.TempDir(), "relay-test.sock"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	go srv.Serve(ctx)
	return srv
}

func TestRelayViaIPCSpawnsWhenNoSessionID(t *testing.T) {
	srv := newTestIPCServer(t)

	var gotPayload ipc.SessionsSpawnPayload
	srv.Register("sessions.spawn", func(ctx context.Context, payload json.RawMessage) ipc.Reply {
		require.NoError(t, json.Unmarshal(payload, &gotPayload))
		return ipc.OK(ipc.SessionsSpawnReply{SessionID: "sess-new", Response: "delegated task accepted"})
	})

	resp, err := relayViaIPC(context.Background(), srv.Path(), "jarvis", "scout", "", "go scan the repo")
	require.NoError(t, err)
	assert.Equal(t, "delegated task accepted", resp)
	assert.Equal(t, "scout", gotPayload.AgentID)
	assert.Equal(t, "go scan the repo", gotPayload.Prompt)
	assert.Equal(t, "jarvis", gotPayload.CallingAgentID)
}

func TestRelayViaIPCSendsWhenSessionIDGiven(t *testing.T) {
	srv := newTestIPCServer(t)

	var gotPayload ipc.SessionsSendPayload
	srv.Register("sessions.send", func(ctx context.Context, payload json.RawMessage) ipc.Reply {
		require.NoError(t, json.Unmarshal(payload, &gotPayload))
		return ipc.OK(ipc.SessionsSendReply{Response: "continued"})
	})

	resp, err := relayViaIPC(context.Background(), srv.Path(), "jarvis", "scout", "sess-1", "keep going")
	require.NoError(t, err)
	assert.Equal(t, "continued", resp)
	assert.Equal(t, "sess-1", gotPayload.SessionID)
	assert.Equal(t, "keep going", gotPayload.Message)
}

func TestRelayViaIPCPropagatesHandlerError(t *testing.T) {
	srv := newTestIPCServer(t)
	srv.Register("sessions.spawn", func(ctx context.Context, payload json.RawMessage) ipc.Reply {
		return ipc.ErrReply("agent not found")
	})

	_, err := relayViaIPC(context.Background(), srv.Path(), "jarvis", "ghost", "", "hi")
	assert.ErrorContains(t, err, "agent not found")
}

func TestRelayViaIPCFailsFastWithoutSocket(t *testing.T) {
	_, err := relayViaIPC(context.Background(), "", "jarvis", "scout", "", "hi")
	assert.ErrorContains(t, err, "no IPC socket")
}
