package ollama

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// breaker opens after threshold consecutive failures and rejects calls until
// the cooldown has passed. The first call after the cooldown is let through; a
// failure reopens the circuit immediately.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *breaker) allow() error {
	if b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.now().Before(b.openUntil) {
		return ErrCircuitOpen
	}
	b.failures = b.threshold - 1
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.threshold > 0 && b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
	}
}
