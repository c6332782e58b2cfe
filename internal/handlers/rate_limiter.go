package handlers

import (
	"strings"
	"sync"
	"time"
)

type requestLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter counts requests per key inside a fixed window. Counters
// reset when their window elapses; stale keys are swept opportunistically on
// writes so the map stays bounded by active callers.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]limiterWindow
}

type limiterWindow struct {
	count    int
	openedAt time.Time
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) requestLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]limiterWindow),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	win, ok := l.windows[key]
	if !ok || now.Sub(win.openedAt) >= l.window {
		l.windows[key] = limiterWindow{count: 1, openedAt: now}
		l.sweepLocked(now)
		return true
	}
	if win.count >= l.limit {
		return false
	}
	win.count++
	l.windows[key] = win
	return true
}

func (l *fixedWindowLimiter) sweepLocked(now time.Time) {
	for key, win := range l.windows {
		if now.Sub(win.openedAt) >= l.window {
			delete(l.windows, key)
		}
	}
}
