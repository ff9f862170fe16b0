package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every decode failure caused by the peer's bytes.
// A stream that produced it cannot be resynchronised.
var ErrMalformed = errors.New("malformed frame")

var (
	ErrUnknownCommand  = fmt.Errorf("%w: unknown command", ErrMalformed)
	ErrInvalidByte     = fmt.Errorf("%w: invalid byte", ErrMalformed)
	ErrEmptyKey        = fmt.Errorf("%w: empty key", ErrMalformed)
	ErrTruncated       = fmt.Errorf("%w: stream ended mid-frame", ErrMalformed)
	ErrRequestTooLarge = fmt.Errorf("%w: frame exceeds size limit", ErrMalformed)
)
