// Package internal provides internal utilities for the revcalc packages.
package internal

import (
	"sync"
	"time"
)

// Clock is the time source used to bound slider convergence.
// Swapping it out lets tests exhaust a timeout without sleeping.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing values.
	Now() time.Time
}

// MonotonicClock reads the system clock. time.Now carries a monotonic
// reading, so elapsed-time comparisons are immune to wall-clock jumps.
type MonotonicClock struct{}

// Now returns the current system time.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually advanced Clock for tests. Simulated controls
// advance it on every nudge to model a slow-rendering page.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMockClock creates a MockClock starting at t, or at a fixed epoch if t
// is zero.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d.
// Panics if d is negative.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}
