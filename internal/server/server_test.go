package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/internal/store"
	"github.com/heysubinoy/dollarkv/pkg/kv"
)

const ioTimeout = 2 * time.Second

func startServer(t *testing.T, st kv.Store, opts Options) *Server {
	t.Helper()
	srv := New(st, zap.NewNop(), opts)
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(ioTimeout):
			t.Error("Serve did not return after cancel")
		}
	})
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", srv.Addr().String(), ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c net.Conn, s string) {
	t.Helper()
	require.NoError(t, c.SetWriteDeadline(time.Now().Add(ioTimeout)))
	_, err := io.WriteString(c, s)
	require.NoError(t, err)
}

// expect reads exactly len(want) bytes.
func expect(t *testing.T, c net.Conn, want string) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(ioTimeout)))
	buf := make([]byte, len(want))
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, want, string(buf))
}

// expectClosed asserts the server closes c without sending anything more.
func expectClosed(t *testing.T, c net.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(ioTimeout)))
	rest, err := io.ReadAll(c)
	if err != nil {
		var ne net.Error
		require.False(t, errors.As(err, &ne) && ne.Timeout(), "connection was not closed")
	}
	assert.Empty(t, string(rest))
}

// expectSilent asserts nothing arrives within d.
func expectSilent(t *testing.T, c net.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(d)))
	n, err := c.Read(make([]byte, 1))
	assert.Zero(t, n)
	var ne net.Error
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "expected read timeout, got %v", err)
}

func key(i int) string {
	return fmt.Sprintf("k%c%c", 'a'+i/26%26, 'a'+i%26)
}

func TestStoreThenLoad(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$key$value$")
	expect(t, c, "DONE$")
	send(t, c, "LOAD$key$")
	expect(t, c, "FOUND$value$")
}

func TestLoadUnknownKeyIsIdempotent(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	for i := 0; i < 3; i++ {
		send(t, c, "LOAD$nothing$")
		expect(t, c, "NOTFOUND$")
	}

	send(t, c, "STORE$something$x$")
	expect(t, c, "DONE$")
	for i := 0; i < 3; i++ {
		send(t, c, "LOAD$something$")
		expect(t, c, "FOUND$x$")
	}
}

func TestOverwrite(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$override$a$")
	expect(t, c, "DONE$")
	send(t, c, "STORE$override$b$")
	expect(t, c, "DONE$")
	send(t, c, "LOAD$override$")
	expect(t, c, "FOUND$b$")
}

func TestEmptyValueAccepted(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$blank$$")
	expect(t, c, "DONE$")
	send(t, c, "LOAD$blank$")
	expect(t, c, "FOUND$$")
}

func TestPartialFrame(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	const frame = "STORE$abc$xyz$"

	for i := 1; i < len(frame); i++ {
		c := dial(t, srv)
		send(t, c, frame[:i])
		expectSilent(t, c, 20*time.Millisecond)
		send(t, c, frame[i:])
		expect(t, c, "DONE$")
		_ = c.Close()
	}
}

func TestPipelined(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$a$b$LOAD$a$")
	expect(t, c, "DONE$FOUND$b$")

	send(t, c, "STORE$mra$mrb$STORE$mrc$mrd$STORE$mre$mrf$")
	expect(t, c, "DONE$DONE$DONE$")
	send(t, c, "LOAD$mra$LOAD$mrc$LOAD$mre$LOAD$mrx$")
	expect(t, c, "FOUND$mrb$FOUND$mrd$FOUND$mrf$NOTFOUND$")
}

func TestMalformedClosesConnection(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})

	for _, in := range []string{
		"STORE$$x$",
		"LOAD$$",
		"GET$a$",
		"STORE$Key$v$",
		"STORE$k$v1$",
		"load$a$",
	} {
		c := dial(t, srv)
		send(t, c, in)
		expectClosed(t, c)
	}

	require.Eventually(t, func() bool { return srv.Stats().Failed == 6 }, ioTimeout, 5*time.Millisecond)
}

func TestMalformedAfterValidRequest(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "LOAD$q$PUT$q$")
	expect(t, c, "NOTFOUND$")
	expectClosed(t, c)
}

func TestTruncatedRequestAtEOF(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$")
	require.NoError(t, c.(*net.TCPConn).CloseWrite())
	expectClosed(t, c)
	require.Eventually(t, func() bool { return srv.Stats().Failed == 1 }, ioTimeout, 5*time.Millisecond)
}

func TestRequestTooLarge(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{MaxRequestSize: 64})
	c := dial(t, srv)

	send(t, c, "STORE$short$ok$")
	expect(t, c, "DONE$")

	send(t, c, "STORE$")
	for i := 0; i < 8; i++ {
		if _, err := io.WriteString(c, "aaaaaaaaaaaaaaaa"); err != nil {
			break
		}
	}
	expectClosed(t, c)
}

func TestFailureIsolation(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	good := dial(t, srv)
	bad := dial(t, srv)

	send(t, good, "STORE$kept$yes$")
	expect(t, good, "DONE$")

	send(t, bad, "STORE$kept$NO$")
	expectClosed(t, bad)

	send(t, good, "LOAD$kept$")
	expect(t, good, "FOUND$yes$")
}

func TestCrossConnectionVisibility(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, "STORE$shared$fromalice$")
	expect(t, a, "DONE$")

	send(t, b, "LOAD$shared$")
	expect(t, b, "FOUND$fromalice$")

	// connections opened later see it too
	c := dial(t, srv)
	send(t, c, "LOAD$shared$")
	expect(t, c, "FOUND$fromalice$")
}

func TestConcurrentConnections(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	const clients = 64

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- func() error {
				c, err := net.DialTimeout("tcp", srv.Addr().String(), ioTimeout)
				if err != nil {
					return err
				}
				defer c.Close()
				_ = c.SetDeadline(time.Now().Add(ioTimeout))

				k := key(i)
				v := "v" + k
				want := "DONE$FOUND$" + v + "$"
				if _, err := io.WriteString(c, "STORE$"+k+"$"+v+"$LOAD$"+k+"$"); err != nil {
					return err
				}
				buf := make([]byte, len(want))
				if _, err := io.ReadFull(c, buf); err != nil {
					return err
				}
				if string(buf) != want {
					return fmt.Errorf("client %d: got %q, want %q", i, buf, want)
				}
				return nil
			}()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestConcurrentWritersSameKey(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	values := []string{"alpha", "beta", "gamma", "delta"}

	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			c, err := net.DialTimeout("tcp", srv.Addr().String(), ioTimeout)
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(ioTimeout))
			for i := 0; i < 50; i++ {
				_, _ = io.WriteString(c, "STORE$race$"+v+"$")
				buf := make([]byte, len("DONE$"))
				_, err := io.ReadFull(c, buf)
				if !assert.NoError(t, err) {
					return
				}
			}
		}(v)
	}
	wg.Wait()

	c := dial(t, srv)
	send(t, c, "LOAD$race$")
	require.NoError(t, c.SetReadDeadline(time.Now().Add(ioTimeout)))
	buf := make([]byte, 64)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, []string{"FOUND$alpha$", "FOUND$beta$", "FOUND$gamma$", "FOUND$delta$"}, string(buf[:n]))
}

func TestStats(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})
	c := dial(t, srv)

	send(t, c, "STORE$a$b$LOAD$a$LOAD$z$")
	expect(t, c, "DONE$FOUND$b$NOTFOUND$")
	require.NoError(t, c.Close())

	require.Eventually(t, func() bool {
		st := srv.Stats()
		return st.Closed == 1 && st.Active == 0
	}, ioTimeout, 5*time.Millisecond)

	st := srv.Stats()
	assert.Equal(t, uint64(1), st.Accepted)
	assert.Equal(t, uint64(3), st.Requests)
	assert.Zero(t, st.Failed)
}

type brokenStore struct{}

var errBroken = errors.New("backend unavailable")

func (brokenStore) Get(string) (string, bool, error) { return "", false, errBroken }
func (brokenStore) Put(string, string) error         { return errBroken }
func (brokenStore) Close() error                     { return nil }

func TestStoreErrorClosesConnection(t *testing.T) {
	srv := startServer(t, brokenStore{}, Options{})
	c := dial(t, srv)

	send(t, c, "STORE$a$b$")
	expectClosed(t, c)
	require.Eventually(t, func() bool { return srv.Stats().Failed == 1 }, ioTimeout, 5*time.Millisecond)
}

func TestIdleTimeout(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{IdleTimeout: 50 * time.Millisecond})
	c := dial(t, srv)

	send(t, c, "LOAD$a$")
	expect(t, c, "NOTFOUND$")
	expectClosed(t, c)
}

func TestMaxConns(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{MaxConns: 1})

	first := dial(t, srv)
	send(t, first, "LOAD$a$")
	expect(t, first, "NOTFOUND$")

	second := dial(t, srv)
	send(t, second, "LOAD$a$")
	expectSilent(t, second, 100*time.Millisecond)

	require.NoError(t, first.Close())
	expect(t, second, "NOTFOUND$")
}

func TestConnRateLimit(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{ConnRate: 0.001, ConnBurst: 1})

	first := dial(t, srv)
	send(t, first, "LOAD$a$")
	expect(t, first, "NOTFOUND$")

	second := dial(t, srv)
	expectClosed(t, second)
	assert.Equal(t, uint64(1), srv.Stats().Rejected)
}

func TestServeBeforeListen(t *testing.T) {
	srv := New(store.NewMemStore(), nil, Options{})
	assert.Error(t, srv.Serve(context.Background()))
	assert.Nil(t, srv.Addr())
}

func TestListenAddressInUse(t *testing.T) {
	srv := startServer(t, store.NewMemStore(), Options{})

	other := New(store.NewMemStore(), nil, Options{})
	err := other.Listen(srv.Addr().String())
	assert.ErrorContains(t, err, "failed to listen")
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	srv := New(store.NewMemStore(), zap.NewNop(), Options{})
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	c := dial(t, srv)
	send(t, c, "STORE$a$b$")
	expect(t, c, "DONE$")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ioTimeout):
		t.Fatal("Serve did not return")
	}
	expectClosed(t, c)
	assert.Zero(t, srv.Stats().Active)
}
