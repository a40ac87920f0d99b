package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	l := NewLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	r1, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	r2, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	if _, err := l.Acquire(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy when full, got %v", err)
	}

	r1()
	r3, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	r2()
	r3()
}

func TestLimiterWaitsForRelease(t *testing.T) {
	l := NewLimiter(1, 2*time.Second)
	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.AfterFunc(50*time.Millisecond, release)

	next, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected the queued caller to get the slot, got %v", err)
	}
	next()
}

func TestLimiterCanceledContext(t *testing.T) {
	l := NewLimiter(1, time.Second)
	release, _ := l.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewLimiterFloor(t *testing.T) {
	l := NewLimiter(0, 10*time.Millisecond)
	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected one slot, got %v", err)
	}
	release()
}
