package locker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLocker_AcquireAndRelease(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "obs:1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := l.Acquire(ctx, "obs:1", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	release()

	if _, err := l.Acquire(ctx, "obs:1", time.Minute); err != nil {
		t.Fatalf("expected acquire to succeed after release, got %v", err)
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "obs:1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Acquire(ctx, "obs:2", time.Minute); err != nil {
		t.Fatalf("expected different key to acquire, got %v", err)
	}
}

func TestMemoryLocker_ExpiredLockIsReacquirable(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "obs:1", time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := l.Acquire(ctx, "obs:1", time.Minute); err != nil {
		t.Fatalf("expected acquire after expiry, got %v", err)
	}
}

func TestWithLock_RunsFn(t *testing.T) {
	l := NewMemoryLocker()

	ran := false
	err := WithLock(context.Background(), l, "sr:1", time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Error("expected fn to run")
	}
}

func TestWithLock_WaitsForHolder(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "sr:1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	err = WithLock(ctx, l, "sr:1", time.Minute, func() error { return nil })
	if err != nil {
		t.Fatalf("expected WithLock to succeed once the holder released, got %v", err)
	}
}

func TestWithLock_ContextCancelled(t *testing.T) {
	l := NewMemoryLocker()
	if _, err := l.Acquire(context.Background(), "sr:1", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := WithLock(ctx, l, "sr:1", time.Minute, func() error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
