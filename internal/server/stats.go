package server

import "sync/atomic"

// Stats is a point-in-time view of connection counters.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Active   int64  `json:"active"`
	Closed   uint64 `json:"closed"`
	Failed   uint64 `json:"failed"`
	Rejected uint64 `json:"rejected"`
	Requests uint64 `json:"requests"`
}

type counters struct {
	accepted atomic.Uint64
	active   atomic.Int64
	closed   atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
	requests atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Accepted: c.accepted.Load(),
		Active:   c.active.Load(),
		Closed:   c.closed.Load(),
		Failed:   c.failed.Load(),
		Rejected: c.rejected.Load(),
		Requests: c.requests.Load(),
	}
}
