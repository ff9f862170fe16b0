// Package client talks to a dollarkv server over TCP.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/heysubinoy/dollarkv/internal/protocol"
)

var (
	// ErrInvalidKey is returned for keys that are empty or contain bytes
	// outside a-z. Such keys would make the server drop the connection.
	ErrInvalidKey = errors.New("key must be a non-empty run of a-z")
	// ErrInvalidValue is returned for values containing bytes outside a-z.
	ErrInvalidValue = errors.New("value must contain only a-z")
	// ErrUnexpectedResponse means the server answered with the wrong kind
	// of response, which leaves the stream out of step.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Client is a single connection to a server. Calls are serialised, so the
// i-th response always belongs to the i-th request.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	dec     *protocol.ResponseDecoder
	buf     []byte
	timeout time.Duration
	err     error
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		dec:  protocol.NewResponseDecoder(conn, 0),
	}
}

// SetTimeout bounds each round trip. Zero, the default, waits forever.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Store sets key to value.
func (c *Client) Store(key, value string) error {
	if !protocol.ValidKey(key) {
		return ErrInvalidKey
	}
	if !protocol.ValidValue(value) {
		return ErrInvalidValue
	}

	resp, err := c.roundTrip(protocol.StoreRequest(key, value))
	if err != nil {
		return err
	}
	if resp.Status != protocol.StatusDone {
		return c.desync(resp)
	}
	return nil
}

// Load returns the value stored under key and whether it exists.
func (c *Client) Load(key string) (string, bool, error) {
	if !protocol.ValidKey(key) {
		return "", false, ErrInvalidKey
	}

	resp, err := c.roundTrip(protocol.LoadRequest(key))
	if err != nil {
		return "", false, err
	}
	switch resp.Status {
	case protocol.StatusFound:
		return resp.Value, true, nil
	case protocol.StatusNotFound:
		return "", false, nil
	default:
		return "", false, c.desync(resp)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return protocol.Response{}, c.err
	}

	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	c.buf = protocol.AppendRequest(c.buf[:0], req)
	if _, err := c.conn.Write(c.buf); err != nil {
		c.err = fmt.Errorf("write %s: %w", req.Kind, err)
		return protocol.Response{}, c.err
	}
	resp, err := c.dec.Decode()
	if err != nil {
		c.err = fmt.Errorf("read %s response: %w", req.Kind, err)
		return protocol.Response{}, c.err
	}
	return resp, nil
}

func (c *Client) desync(resp protocol.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = fmt.Errorf("%w %s", ErrUnexpectedResponse, resp.Status)
	return c.err
}
