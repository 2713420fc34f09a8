package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnLimiter admits accepted connections per source IP through a
// token-bucket limiter, the connection-oriented analogue of the teacher's
// per-request RateLimiter: each accepted socket is charged once against
// its peer's bucket before a request is ever read off it.
type ConnLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnLimiter builds a limiter admitting up to maxConnRate connections
// per window for any one source IP, with a burst equal to maxConnRate.
func NewConnLimiter(maxConnRate int, window time.Duration) *ConnLimiter {
	if maxConnRate <= 0 {
		maxConnRate = 1
	}
	if window <= 0 {
		window = time.Second
	}

	l := &ConnLimiter{
		limiters:    make(map[string]*entry),
		limit:       rate.Limit(float64(maxConnRate) / window.Seconds()),
		burst:       maxConnRate,
		stopCleanup: make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(window * 10)
	go l.cleanup(window)

	return l
}

// Allow reports whether a connection from addr should be admitted.
func (l *ConnLimiter) Allow(addr net.Addr) bool {
	host := clientHost(addr)

	l.mu.Lock()
	e, ok := l.limiters[host]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[host] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Stop halts the background cleanup goroutine.
func (l *ConnLimiter) Stop() {
	close(l.stopCleanup)
	l.cleanupTicker.Stop()
}

func (l *ConnLimiter) cleanup(window time.Duration) {
	for {
		select {
		case <-l.cleanupTicker.C:
			cutoff := time.Now().Add(-window * 10)
			l.mu.Lock()
			for host, e := range l.limiters {
				if e.lastSeen.Before(cutoff) {
					delete(l.limiters, host)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

// clientHost strips the port from a dialed address so a client's repeat
// connections share one bucket regardless of the ephemeral source port.
func clientHost(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
