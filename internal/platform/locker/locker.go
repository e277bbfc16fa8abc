package locker

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when a lock is already held by another worker.
var ErrNotAcquired = errors.New("locker: lock not acquired")

// Locker serializes mutations to a single entity. Callers hold the lock for
// the duration of a read-modify-write and release it through the returned
// function.
type Locker interface {
	// Acquire takes the named lock or fails fast with ErrNotAcquired.
	// The lock expires after ttl even if release is never called.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// WithLock runs fn while holding the named lock, retrying acquisition until
// the context is cancelled.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func() error) error {
	for {
		release, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			defer release()
			return fn()
		}
		if !errors.Is(err, ErrNotAcquired) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}
