// Package ratelimit implements a per-client token bucket middleware used by
// the restproxy binary to keep one aggressive client from monopolizing the
// shared response cache and the upstream origin.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter hands out tokens per client key (usually the remote IP). Buckets
// refill at rate tokens per interval up to burst.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	burst    int
	interval time.Duration
	maxKeys  int
	stop     chan struct{}
	rejected prometheus.Counter // optional, incremented per 429

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRejectedCounter sets a Prometheus counter incremented on each rejected
// request.
func WithRejectedCounter(c prometheus.Counter) Option {
	return func(l *Limiter) { l.rejected = c }
}

// New creates a Limiter granting rate tokens per interval with the given
// burst capacity, and starts a goroutine that drops idle buckets.
func New(rate, burst int, interval time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		burst:    burst,
		interval: interval,
		maxKeys:  100000,
		stop:     make(chan struct{}),
		nowFunc:  time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup()
	return l
}

// Middleware enforces the limit per client IP (X-Real-IP, falling back to
// RemoteAddr) and answers 429 with a Retry-After when exceeded.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Real-IP")
		if ip == "" {
			ip = r.RemoteAddr
		}
		if !l.allow(ip) {
			if l.rejected != nil {
				l.rejected.Inc()
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxKeys {
			l.evictOldest()
		}
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[key] = b
	}

	if refill := int(now.Sub(b.lastFill)/l.interval) * l.rate; refill > 0 {
		b.tokens = min(b.tokens+refill, l.burst)
		b.lastFill = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// evictOldest drops the bucket refilled longest ago. Caller must hold l.mu.
func (l *Limiter) evictOldest() {
	var victim string
	var victimTime time.Time
	first := true
	for k, b := range l.buckets {
		if first || b.lastFill.Before(victimTime) {
			victim = k
			victimTime = b.lastFill
			first = false
		}
	}
	if !first {
		delete(l.buckets, victim)
	}
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.nowFunc().Add(-10 * time.Minute)
			for k, b := range l.buckets {
				if b.lastFill.Before(cutoff) {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
