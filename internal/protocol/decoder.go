package protocol

import (
	"errors"
	"io"
	"iter"
)

const readChunk = 4096

// stream accumulates bytes from r until a parse function can consume a whole
// frame. Frames longer than max fail however the reads were split. The first
// error it returns is returned forever after.
type stream struct {
	r     io.Reader
	buf   []byte
	off   int
	chunk []byte
	max   int
	eof   bool
	err   error
}

func (s *stream) next(parse func([]byte) (int, error)) error {
	if s.err != nil {
		return s.err
	}
	for {
		if pending := s.buf[s.off:]; len(pending) > 0 {
			n, err := parse(pending)
			if err != nil {
				return s.fail(err)
			}
			if s.max > 0 && (n > s.max || n == 0 && len(pending) > s.max) {
				return s.fail(ErrRequestTooLarge)
			}
			if n > 0 {
				s.off += n
				return nil
			}
		}

		if s.eof {
			if s.off == len(s.buf) {
				return s.fail(io.EOF)
			}
			return s.fail(ErrTruncated)
		}

		if s.off > 0 {
			s.buf = append(s.buf[:0], s.buf[s.off:]...)
			s.off = 0
		}
		if s.chunk == nil {
			s.chunk = make([]byte, readChunk)
		}
		n, err := s.r.Read(s.chunk)
		s.buf = append(s.buf, s.chunk[:n]...)
		if errors.Is(err, io.EOF) {
			s.eof = true
		} else if err != nil {
			return s.fail(err)
		}
	}
}

func (s *stream) fail(err error) error {
	s.err = err
	return err
}

// Decoder reads requests from a byte stream. It tolerates requests split
// across reads and several requests arriving in one read.
type Decoder struct {
	s stream
}

// NewDecoder returns a Decoder reading from r that rejects requests longer
// than maxSize bytes. A maxSize of 0 or less selects DefaultMaxRequestSize.
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	return &Decoder{s: stream{r: r, max: maxSize}}
}

// Decode blocks until the next request is complete and returns it.
//
// It returns io.EOF when the stream ends cleanly between requests and
// ErrTruncated when it ends inside one. Errors wrapping ErrMalformed mean the
// peer sent bytes outside the grammar. Once Decode fails it keeps returning
// the same error.
func (d *Decoder) Decode() (Request, error) {
	var req Request
	err := d.s.next(func(buf []byte) (int, error) {
		r, n, err := ParseRequest(buf)
		req = r
		return n, err
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// Buffered returns the number of received bytes not yet decoded.
func (d *Decoder) Buffered() int {
	return len(d.s.buf) - d.s.off
}

// Requests returns the remaining requests as a sequence. The sequence ends
// silently on io.EOF; any other error is yielded once as the final element.
func (d *Decoder) Requests() iter.Seq2[Request, error] {
	return func(yield func(Request, error) bool) {
		for {
			req, err := d.Decode()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(req, err) || err != nil {
				return
			}
		}
	}
}

// ResponseDecoder reads server responses from a byte stream.
type ResponseDecoder struct {
	s stream
}

// NewResponseDecoder returns a ResponseDecoder reading from r that rejects
// responses longer than maxSize bytes. A maxSize of 0 or less selects
// DefaultMaxRequestSize, which fits any response to a valid request.
func NewResponseDecoder(r io.Reader, maxSize int) *ResponseDecoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	return &ResponseDecoder{s: stream{r: r, max: maxSize}}
}

// Decode blocks until the next response is complete and returns it, with the
// same error contract as Decoder.Decode.
func (d *ResponseDecoder) Decode() (Response, error) {
	var resp Response
	err := d.s.next(func(buf []byte) (int, error) {
		r, n, err := ParseResponse(buf)
		resp = r
		return n, err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
