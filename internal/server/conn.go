package server

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/internal/protocol"
)

// connState is where a connection is in its request/response loop.
type connState int

const (
	stateReading connState = iota
	stateProcessing
	stateWriting
	stateClosed
	stateFailed
)

func (s connState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateProcessing:
		return "processing"
	case stateWriting:
		return "writing"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// conn serves one client. It is owned by a single goroutine.
type conn struct {
	srv   *Server
	rwc   net.Conn
	log   *zap.Logger
	state connState
	out   []byte
}

func newConn(srv *Server, rwc net.Conn) *conn {
	return &conn{
		srv: srv,
		rwc: rwc,
		log: srv.log.With(
			zap.String("conn_id", uuid.NewString()),
			zap.Stringer("remote", rwc.RemoteAddr()),
		),
	}
}

// serve runs the read, process, write loop until the peer goes away or
// something fails. Responses are written in request order, one at a time.
func (c *conn) serve() {
	defer c.rwc.Close()
	c.log.Debug("connection opened")

	dec := protocol.NewDecoder(c.rwc, c.srv.opts.MaxRequestSize)
	for {
		c.state = stateReading
		if d := c.srv.opts.IdleTimeout; d > 0 {
			_ = c.rwc.SetReadDeadline(time.Now().Add(d))
		}
		req, err := dec.Decode()
		if err != nil {
			c.finish(err, dec.Buffered())
			return
		}

		c.state = stateProcessing
		resp, err := dispatch(c.srv.store, req)
		if err != nil {
			c.fail("store operation failed", err, zap.Stringer("request", req))
			return
		}

		c.state = stateWriting
		c.out = protocol.AppendResponse(c.out[:0], resp)
		if _, err := c.rwc.Write(c.out); err != nil {
			c.fail("write failed", err)
			return
		}
		c.srv.stats.requests.Add(1)
	}
}

// finish classifies the error that ended decoding.
func (c *conn) finish(err error, buffered int) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.state = stateClosed
		c.srv.stats.closed.Add(1)
		c.log.Debug("connection closed")
	case errors.Is(err, protocol.ErrMalformed):
		c.state = stateFailed
		c.srv.stats.failed.Add(1)
		c.log.Debug("malformed request", zap.Error(err), zap.Int("buffered", buffered))
	default:
		c.fail("read failed", err)
	}
}

func (c *conn) fail(msg string, err error, fields ...zap.Field) {
	prev := c.state
	c.state = stateFailed
	c.srv.stats.failed.Add(1)

	fields = append(fields, zap.Error(err), zap.Stringer("state", prev))
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, io.ErrClosedPipe) {
		c.log.Debug(msg, fields...)
		return
	}
	c.log.Warn(msg, fields...)
}
