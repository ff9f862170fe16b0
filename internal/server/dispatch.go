package server

import (
	"github.com/heysubinoy/dollarkv/internal/protocol"
	"github.com/heysubinoy/dollarkv/pkg/kv"
)

// dispatch applies one request to store. The store is the only state shared
// between connections and is never touched while doing network I/O.
func dispatch(store kv.Store, req protocol.Request) (protocol.Response, error) {
	switch req.Kind {
	case protocol.KindStore:
		if err := store.Put(req.Key, req.Value); err != nil {
			return protocol.Response{}, err
		}
		return protocol.Done(), nil
	default:
		value, found, err := store.Get(req.Key)
		if err != nil {
			return protocol.Response{}, err
		}
		if !found {
			return protocol.NotFound(), nil
		}
		return protocol.Found(value), nil
	}
}
