// Package ratelimit throttles anonymous request volume with a fixed-window
// counter keyed by client IP. State is process-local: with more than one
// instance each process counts independently, so a shared counter store is
// required for strict global limits.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCapacity = 60
	DefaultWindow   = time.Minute
)

type window struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	capacity int
	interval time.Duration
}

func NewLimiter(capacity int, interval time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if interval <= 0 {
		interval = DefaultWindow
	}
	return &Limiter{
		windows:  make(map[string]*window),
		capacity: capacity,
		interval: interval,
	}
}

// IsLimited records a request for the IP and reports whether it exceeds the
// window capacity. Admins are always exempt. Windows reset lazily on the
// first request after expiry; a fixed window admits up to twice the capacity
// across a boundary straddle, which is accepted for abuse deterrence.
func (l *Limiter) IsLimited(ip string, isAdmin bool) bool {
	if isAdmin {
		return false
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[ip]
	if !exists || now.After(w.resetAt) {
		l.windows[ip] = &window{count: 1, resetAt: now.Add(l.interval)}
		return false
	}

	if w.count >= l.capacity {
		return true
	}
	w.count++
	return false
}

// Remaining reports how many requests the IP has left in its current window.
func (l *Limiter) Remaining(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[ip]
	if !exists || time.Now().After(w.resetAt) {
		return l.capacity
	}
	if w.count >= l.capacity {
		return 0
	}
	return l.capacity - w.count
}

// ResetTime reports when the IP's current window ends.
func (l *Limiter) ResetTime(ip string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[ip]
	if !exists || time.Now().After(w.resetAt) {
		return time.Now().Add(l.interval)
	}
	return w.resetAt
}

// StartReaper periodically evicts stale windows to bound memory growth.
// Blocks until ctx is cancelled; run it on its own goroutine.
func (l *Limiter) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.reap()
		}
	}
}

// reap removes windows that expired at least one full interval ago. An
// entry still inside its active window is never evicted.
func (l *Limiter) reap() {
	cutoff := time.Now().Add(-l.interval)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, w := range l.windows {
		if w.resetAt.Before(cutoff) {
			delete(l.windows, ip)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Reaped rate limit windows", "removed", removed)
	}
}
