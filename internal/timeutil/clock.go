// Package timeutil abstracts wall-clock operations so code with mandatory
// real-time delays (device settle windows, probe deadlines) can be tested
// without actually waiting.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the time operations used by hardware-facing code.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// RealClock delegates to the time package.
type RealClock struct{}

func NewRealClock() *RealClock { return &RealClock{} }

func (*RealClock) Now() time.Time                         { return time.Now() }
func (*RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (*RealClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (*RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MockClock is a manually-advanced clock for tests. Sleep returns
// immediately and records the requested duration; After fires as soon as
// the clock has been advanced past the deadline.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep records d and advances the clock by it without blocking.
func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.fire()
}

func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{deadline: c.now.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward, firing any After channels whose
// deadline has passed.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.fire()
}

// Sleeps returns the durations passed to Sleep, in call order.
func (c *MockClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

func (c *MockClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(c.now) {
			w.ch <- c.now
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}
