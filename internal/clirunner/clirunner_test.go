package clirunner

import (
	"os"
	"path/filepath"
	"testing"

	"context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

func writeFakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunReturnsResultTextAndSessionID(t *testing.T) {
	cli := writeFakeCLI(t, `
echo '{"type":"assistant","text":"thinking..."}'
echo '{"type":"result","session_id":"sess-42","text":"all done"}'
`)
	r := New(cli)
	res, err := r.Run(context.Background(), []string{"--print"})
	require.NoError(t, err)
	assert.Equal(t, "all done", res.Text)
	assert.Equal(t, "sess-42", res.SessionID)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
}

func TestRunUsesLastSeenSessionIDAcrossEvents(t *testing.T) {
	cli := writeFakeCLI(t, `
echo '{"type":"assistant","session_id":"sess-0","text":"..."}'
echo '{"type":"result","session_id":"sess-1","text":"done"}'
`)
	r := New(cli)
	res, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", res.SessionID)
}

func TestRunFailsOnMalformedJSONLine(t *testing.T) {
	cli := writeFakeCLI(t, `echo 'not json'`)
	r := New(cli)
	_, err := r.Run(context.Background(), nil)
	assert.Equal(t, clerr.CLIErr, clerr.KindOf(err))
}

func TestRunFailsOnNonZeroExit(t *testing.T) {
	cli := writeFakeCLI(t, `
echo '{"type":"result","text":"partial"}'
exit 1
`)
	r := New(cli)
	_, err := r.Run(context.Background(), nil)
	assert.Equal(t, clerr.CLIErr, clerr.KindOf(err))
	assert.ErrorContains(t, err, "exited with error")
}

func TestRunCapturesStderrInErrorMessage(t *testing.T) {
	cli := writeFakeCLI(t, `
echo 'boom: something broke' 1>&2
exit 1
`)
	r := New(cli)
	_, err := r.Run(context.Background(), nil)
	assert.ErrorContains(t, err, "boom: something broke")
}
