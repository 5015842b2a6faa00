package memory

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter counts failures per key inside a fixed window.
type AttemptLimiter struct {
	max    int
	window time.Duration
	clock  func() time.Time

	mu       sync.Mutex
	attempts map[string]attemptWindow
}

type attemptWindow struct {
	failures int
	resetAt  time.Time
}

func NewAttemptLimiter(max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		max:      max,
		window:   window,
		clock:    time.Now,
		attempts: make(map[string]attemptWindow),
	}
}

func (l *AttemptLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.max <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.attempts[key]
	if !ok {
		return true, nil
	}
	if !w.resetAt.After(l.clock()) {
		delete(l.attempts, key)
		return true, nil
	}
	return w.failures < l.max, nil
}

func (l *AttemptLimiter) Failure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	w, ok := l.attempts[key]
	if !ok || !w.resetAt.After(now) {
		w = attemptWindow{resetAt: now.Add(l.window)}
	}
	w.failures++
	l.attempts[key] = w
	return nil
}

func (l *AttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}
