// Package protocol implements the dollar-delimited wire format spoken between
// kv clients and the server.
//
// Every frame is an upper-case keyword followed by zero or more fields, each
// terminated by '$':
//
//	STORE$<key>$<value>$   ->  DONE$
//	LOAD$<key>$            ->  FOUND$<value>$ | NOTFOUND$
//
// Fields are runs of the letters a-z. The delimiter cannot be escaped and
// frames carry no length prefix, so frame boundaries are found by scanning.
package protocol

import "fmt"

// Delimiter terminates keywords and fields.
const Delimiter = '$'

// DefaultMaxRequestSize is the largest partial frame a Decoder buffers before
// giving up on the stream.
const DefaultMaxRequestSize = 10000

// Kind identifies a client command.
type Kind int

const (
	KindStore Kind = iota + 1
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "STORE"
	case KindLoad:
		return "LOAD"
	default:
		return "UNKNOWN"
	}
}

// Request is one decoded client command. Value is only meaningful for
// KindStore.
type Request struct {
	Kind  Kind
	Key   string
	Value string
}

// StoreRequest builds a STORE request.
func StoreRequest(key, value string) Request {
	return Request{Kind: KindStore, Key: key, Value: value}
}

// LoadRequest builds a LOAD request.
func LoadRequest(key string) Request {
	return Request{Kind: KindLoad, Key: key}
}

func (r Request) String() string {
	if r.Kind == KindStore {
		return fmt.Sprintf("%s(%s=%s)", r.Kind, r.Key, r.Value)
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Key)
}

// Status identifies a server answer.
type Status int

const (
	StatusDone Status = iota + 1
	StatusFound
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "DONE"
	case StatusFound:
		return "FOUND"
	case StatusNotFound:
		return "NOTFOUND"
	default:
		return "UNKNOWN"
	}
}

// Response is one server answer. Value is only meaningful for StatusFound.
type Response struct {
	Status Status
	Value  string
}

// Done acknowledges a STORE.
func Done() Response { return Response{Status: StatusDone} }

// Found answers a LOAD whose key is present.
func Found(value string) Response { return Response{Status: StatusFound, Value: value} }

// NotFound answers a LOAD whose key is absent.
func NotFound() Response { return Response{Status: StatusNotFound} }

// ValidKey reports whether key is a non-empty run of a-z.
func ValidKey(key string) bool {
	return key != "" && ValidValue(key)
}

// ValidValue reports whether value consists only of a-z. The empty value is
// valid.
func ValidValue(value string) bool {
	for i := 0; i < len(value); i++ {
		if !isLetter(value[i]) {
			return false
		}
	}
	return true
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}
