package main

import (
	"sync"
	"time"
)

// Throttler calls fn at most once per interval. The first value of a quiet
// period is delivered at once; values arriving inside the window coalesce
// and the latest one is delivered when the window closes.
type Throttler[T any] struct {
	interval time.Duration
	fn       func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	latest  T
}

// NewThrottler creates a throttler around fn
func NewThrottler[T any](interval time.Duration, fn func(T)) *Throttler[T] {
	return &Throttler[T]{interval: interval, fn: fn}
}

// Trigger offers a value
func (t *Throttler[T]) Trigger(v T) {
	t.mu.Lock()
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.flush)
		t.mu.Unlock()
		t.fn(v)
		return
	}
	t.latest = v
	t.pending = true
	t.mu.Unlock()
}

func (t *Throttler[T]) flush() {
	t.mu.Lock()
	if !t.pending {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	v := t.latest
	t.pending = false
	t.timer = time.AfterFunc(t.interval, t.flush)
	t.mu.Unlock()
	t.fn(v)
}

// Stop drops any pending value
func (t *Throttler[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
}
