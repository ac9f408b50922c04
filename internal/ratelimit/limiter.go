package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type window struct {
	count   int
	startAt time.Time
}

// Limiter is a fixed-window request limiter keyed by caller identity.
// Construct one per route that needs limiting; it owns its state and its
// eviction loop, so callers must Stop it on shutdown.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	limit    int
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewLimiter allows limit requests per key per interval.
func NewLimiter(limit int, interval time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Allow records a request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.startAt) >= l.interval {
		l.windows[key] = &window{count: 1, startAt: now}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// Stop terminates the eviction loop.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.evictExpired(time.Now())
		}
	}
}

func (l *Limiter) evictExpired(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.startAt) >= l.interval {
			delete(l.windows, key)
		}
	}
}

// Middleware limits requests by client IP, answering 429 when over the limit.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			key = r.RemoteAddr
		}

		if !l.Allow(key) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
