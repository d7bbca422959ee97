package ollama

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	b := newBreaker(2, time.Minute)
	b.now = func() time.Time { return now }

	b.failure()
	if err := b.allow(); err != nil {
		t.Fatalf("expected closed after one failure, got %v", err)
	}
	b.failure()
	if err := b.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := b.allow(); err != nil {
		t.Fatalf("expected half-open after cooldown, got %v", err)
	}
	b.failure()
	if err := b.allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopen after half-open failure, got %v", err)
	}

	now = now.Add(time.Minute)
	_ = b.allow()
	b.success()
	b.failure()
	if err := b.allow(); err != nil {
		t.Fatalf("expected closed after success reset, got %v", err)
	}
}

func TestBreaker_Disabled(t *testing.T) {
	b := newBreaker(0, time.Minute)
	for i := 0; i < 10; i++ {
		b.failure()
	}
	if err := b.allow(); err != nil {
		t.Fatalf("expected disabled breaker to allow, got %v", err)
	}
}
