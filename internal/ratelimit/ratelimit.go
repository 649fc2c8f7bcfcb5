// Package ratelimit counts failed login attempts per key within a fixed window.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type attempts struct {
	count   int
	expires time.Time
}

// MemoryLimiter is a process-local limiter for single-instance deployments and tests
type MemoryLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	entries     map[string]*attempts
	nextSweep   time.Time
	now         func() time.Time
}

// NewMemoryLimiter creates a limiter blocking a key after maxAttempts failures within window
func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		entries:     make(map[string]*attempts),
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.current(normalizeKey(key))
	return w != nil && w.count >= l.maxAttempts, nil
}

func (l *MemoryLimiter) Fail(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep()
	key = normalizeKey(key)
	w := l.current(key)
	if w == nil {
		w = &attempts{expires: l.now().Add(l.window)}
		l.entries[key] = w
	}
	w.count++
	return nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, normalizeKey(key))
	return nil
}

// sweep drops every expired window, at most once per window length
func (l *MemoryLimiter) sweep() {
	now := l.now()
	if now.Before(l.nextSweep) {
		return
	}
	for key, w := range l.entries {
		if !now.Before(w.expires) {
			delete(l.entries, key)
		}
	}
	l.nextSweep = now.Add(l.window)
}

// current returns the live window for key, dropping it once expired
func (l *MemoryLimiter) current(key string) *attempts {
	w, ok := l.entries[key]
	if !ok {
		return nil
	}
	if !l.now().Before(w.expires) {
		delete(l.entries, key)
		return nil
	}
	return w
}
