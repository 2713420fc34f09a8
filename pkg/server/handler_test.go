package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"miniblob/pkg/helper/log"
	"miniblob/pkg/repo"
	"miniblob/pkg/wire"
)

func newTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.New(t.TempDir(), repo.Options{MinMatchLength: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestDispatchSaveThenGetLatest(t *testing.T) {
	r := newTestRepo(t)

	saveResp := dispatch(wire.Request{
		Type: wire.SaveFile, FileName: "a.txt", Branch: "master",
		Author: "u", Message: "m", Content: []byte("hello"),
	}, r)
	require.True(t, saveResp.Success)

	getResp := dispatch(wire.Request{Type: wire.GetLatest, FileName: "a.txt", Branch: "master"}, r)
	require.True(t, getResp.Success)
	require.Equal(t, "hello", string(getResp.Content))
}

func TestDispatchGetLatestUnknownFileFails(t *testing.T) {
	r := newTestRepo(t)

	resp := dispatch(wire.Request{Type: wire.GetLatest, FileName: "missing.txt", Branch: "master"}, r)
	require.False(t, resp.Success)
	require.Equal(t, "file not in branch", resp.Message)
}

func TestDispatchGetBranchesIncludesMaster(t *testing.T) {
	r := newTestRepo(t)

	resp := dispatch(wire.Request{Type: wire.GetBranches}, r)
	require.True(t, resp.Success)
	require.Contains(t, resp.Branches, "master")
}

func TestDispatchUnknownRequestType(t *testing.T) {
	r := newTestRepo(t)

	resp := dispatch(wire.Request{Type: wire.RequestType(99)}, r)
	require.False(t, resp.Success)
}

func TestHandleConnectionRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	logger := log.NewLogger()

	// SAVE_FILE content runs to the end of the stream, so the client must
	// half-close its side after sending; a loopback TCP connection supports
	// that where net.Pipe does not.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serverConn, err := ln.Accept()
		if err != nil {
			return
		}
		handleConnection(context.Background(), serverConn, r, logger, 0, 0)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	req := wire.Request{
		Type: wire.SaveFile, FileName: "f.txt", Branch: "master",
		Author: "u", Message: "m", Content: []byte("payload"),
	}
	require.NoError(t, wire.WriteRequest(client, req))
	require.NoError(t, client.(*net.TCPConn).CloseWrite())

	resp, err := wire.ReadResponse(client, wire.SaveFile)
	require.NoError(t, err)
	require.True(t, resp.Success)

	client.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConnection did not return after client closed")
	}
}

func TestErrorMessageMapsDomainErrors(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.GetLatestVersion("nope", "master")
	require.Error(t, err)
	require.Equal(t, "file not in branch", errorMessage(err))

	_, err = r.GetLatestVersion("nope", "no-such-branch")
	require.Error(t, err)
	require.Equal(t, "branch not found", errorMessage(err))
}
