package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a client's bucket is kept after its last request.
// A bucket idle this long has refilled, so dropping it changes nothing.
const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per client key.
type limiterSet struct {
	mu    sync.Mutex
	rps   int
	burst int
	m     map[string]*limiterEntry
}

// newLimiterSet returns nil (no limiting) when rps is not positive.
func newLimiterSet(rps, burst int) *limiterSet {
	if rps <= 0 {
		return nil
	}
	return &limiterSet{rps: rps, burst: max(burst, 1), m: make(map[string]*limiterEntry)}
}

func (l *limiterSet) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.m[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(l.rps)), l.burst)
	l.m[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

// sweep drops buckets unused since before cutoff and reports how many.
func (l *limiterSet) sweep(cutoff time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, e := range l.m {
		if e.lastSeen.Before(cutoff) {
			delete(l.m, key)
			n++
		}
	}
	return n
}

func (l *limiterSet) len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// rateLimit rejects clients that exceed the configured request rate.
// Keys are the client IP as set by chi's RealIP.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiters == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !s.limiters.get(key, s.now()).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}
