package locker

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a single-process Locker used when no redis instance is
// configured (dev, tests). Expiry is honored so a crashed goroutine cannot
// wedge a key forever.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, held := l.locks[key]; held && time.Now().Before(exp) {
		return nil, ErrNotAcquired
	}
	l.locks[key] = time.Now().Add(ttl)
	release := func() {
		l.mu.Lock()
		delete(l.locks, key)
		l.mu.Unlock()
	}
	return release, nil
}
