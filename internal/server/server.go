// Package server accepts TCP connections and serves the dollar protocol
// against a shared kv.Store, one goroutine per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/heysubinoy/dollarkv/pkg/kv"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Options tunes per-connection limits. The zero value imposes none beyond
// the protocol's default request size.
type Options struct {
	// MaxConns caps concurrently served connections. Further connections
	// wait in the accept queue until a slot frees up.
	MaxConns int
	// MaxRequestSize bounds the bytes buffered for one incomplete request.
	MaxRequestSize int
	// IdleTimeout closes a connection that sends nothing for this long.
	IdleTimeout time.Duration
	// ConnRate and ConnBurst limit new connections per client IP.
	ConnRate  float64
	ConnBurst int
}

// Server owns the listening socket and the store shared by every
// connection.
type Server struct {
	store   kv.Store
	log     *zap.Logger
	opts    Options
	limiter *ipRateLimiter
	stats   counters

	mu     sync.Mutex
	lis    net.Listener
	conns  map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a server over store. Call Listen, then Serve.
func New(store kv.Store, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:   store,
		log:     log,
		opts:    opts,
		limiter: newIPRateLimiter(opts.ConnRate, opts.ConnBurst),
		conns:   make(map[*conn]struct{}),
	}
}

// Listen binds addr. Callers treat an error here as fatal.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.opts.MaxConns > 0 {
		lis = netutil.LimitListener(lis, s.opts.MaxConns)
	}

	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Serve accepts connections until the listener is closed or ctx is done,
// then closes every live connection and waits for their handlers to return.
// It returns nil on such a shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	lis := s.lis
	s.mu.Unlock()
	if lis == nil {
		return errors.New("server: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.log.Info("listening", zap.Stringer("addr", lis.Addr()))

	var backoff time.Duration
	for {
		rwc, err := lis.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				_ = s.Close()
				s.wg.Wait()
				return nil
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.limiter.allow(rwc.RemoteAddr()) {
			s.stats.rejected.Add(1)
			s.log.Debug("connection rate limited", zap.Stringer("remote", rwc.RemoteAddr()))
			_ = rwc.Close()
			continue
		}

		c := newConn(s, rwc)
		if !s.track(c) {
			_ = rwc.Close()
			continue
		}
		s.stats.accepted.Add(1)
		s.stats.active.Add(1)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve()
		}()
	}
}

// Close stops accepting and closes every live connection. It does not wait
// for handlers; Serve does.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.lis != nil {
		err = s.lis.Close()
	}
	for c := range s.conns {
		_ = c.rwc.Close()
	}
	return err
}

// Stats returns the connection counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.stats.active.Add(-1)
}
