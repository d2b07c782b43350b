package ipc

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := Listen(filepath.Join(t.TempDir(), "ipc-test.sock"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	go srv.Serve(ctx)
	return srv
}

type echoPayload struct {
	Text string `json:"text"`
}

func TestRegisteredHandlerRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	srv.Register("echo", func(ctx context.Context, payload json.RawMessage) Reply {
		var p echoPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return ErrReply(err.Error())
		}
		return OK(echoPayload{Text: p.Text})
	})

	reply, err := Call(context.Background(), srv.Path(), "echo", echoPayload{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, reply.OK)

	var got echoPayload
	require.NoError(t, json.Unmarshal(reply.Data, &got))
	assert.Equal(t, "hello", got.Text)
}

func TestUnknownTypeReturnsError(t *testing.T) {
	srv := newTestServer(t)
	reply, err := Call(context.Background(), srv.Path(), "nonexistent.type", struct{}{})
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "unknown type")
}

func TestMalformedRequestReturnsErrorNotCrash(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "malformed request")
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t)
	srv.Register("boom", func(ctx context.Context, payload json.RawMessage) Reply {
		panic("handler exploded")
	})

	reply, err := Call(context.Background(), srv.Path(), "boom", struct{}{})
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "internal error")
}

func TestEmptyRequestReturnsError(t *testing.T) {
	srv := newTestServer(t)

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()
	conn.(*net.UnixConn).CloseWrite()

	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "empty or truncated request")
}

func TestDiscoverSocketFindsSockFile(t *testing.T) {
	dir := t.TempDir()
	srv, err := Listen(filepath.Join(dir, "ipc-1234.sock"))
	require.NoError(t, err)
	defer srv.Close()

	found, err := DiscoverSocket(dir)
	require.NoError(t, err)
	assert.Equal(t, srv.Path(), found)
}

func TestDiscoverSocketNoneFoundIsError(t *testing.T) {
	_, err := DiscoverSocket(t.TempDir())
	assert.Error(t, err)
}
