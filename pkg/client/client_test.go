package client

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/internal/server"
	"github.com/heysubinoy/dollarkv/internal/store"
)

func startServer(t *testing.T) string {
	t.Helper()
	srv := server.New(store.NewMemStore(), zap.NewNop(), server.Options{})
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

func TestClientRoundTrip(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()
	c.SetTimeout(2 * time.Second)

	_, ok, err := c.Load("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Store("greeting", "hello"))
	v, ok, err := c.Load("greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	require.NoError(t, c.Store("greeting", ""))
	v, ok, err = c.Load("greeting")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestClientSharesStoreAcrossConnections(t *testing.T) {
	addr := startServer(t)
	a, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer a.Close()
	b, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Store("k", "fromalice"))
	v, ok, err := b.Load("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fromalice", v)
}

func TestClientRejectsInvalidInput(t *testing.T) {
	addr := startServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Store("", "v"), ErrInvalidKey)
	assert.ErrorIs(t, c.Store("Key", "v"), ErrInvalidKey)
	assert.ErrorIs(t, c.Store("k", "v$"), ErrInvalidValue)
	_, _, err = c.Load("a b")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// the connection is still usable
	require.NoError(t, c.Store("k", "v"))
}

func TestClientUnexpectedResponse(t *testing.T) {
	cli, srv := net.Pipe()
	defer srv.Close()
	c := New(cli)
	defer c.Close()

	go func() {
		buf := make([]byte, 64)
		_, _ = srv.Read(buf)
		_, _ = io.WriteString(srv, "FOUND$oops$")
	}()

	err := c.Store("k", "v")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)

	_, _, err = c.Load("k")
	assert.ErrorIs(t, err, ErrUnexpectedResponse, "client stays failed once out of step")
}

func TestClientServerClosed(t *testing.T) {
	cli, srv := net.Pipe()
	c := New(cli)
	defer c.Close()

	go func() {
		buf := make([]byte, 64)
		_, _ = srv.Read(buf)
		_ = srv.Close()
	}()

	_, _, err := c.Load("k")
	assert.ErrorIs(t, err, io.EOF)
}

func TestDialFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = Dial(context.Background(), addr)
	assert.ErrorContains(t, err, "failed to connect")
}
