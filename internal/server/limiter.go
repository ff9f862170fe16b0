package server

import (
	"math"
	"net"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 1000
	limiterTTL       = time.Hour
)

// ipRateLimiter hands out one token bucket per client IP. Buckets live in an
// LRU so that a flood of distinct addresses cannot grow it without bound.
type ipRateLimiter struct {
	cache gcache.Cache
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

// newIPRateLimiter returns nil when perSecond is zero, which allows every
// connection.
func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perSecond)))
	}
	return &ipRateLimiter{
		cache: gcache.New(limiterCacheSize).LRU().Build(),
		r:     rate.Limit(perSecond),
		b:     burst,
	}
}

func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if v, err := i.cache.Get(ip); err == nil {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(i.r, i.b)
	_ = i.cache.SetWithExpire(ip, limiter, limiterTTL)
	return limiter
}

// allow reports whether a new connection from addr may be served.
func (i *ipRateLimiter) allow(addr net.Addr) bool {
	if i == nil {
		return true
	}
	return i.getLimiter(hostOf(addr)).Allow()
}

func hostOf(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
