// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// StepClock is a clock for code that takes a func() time.Time. Every call to
// Now returns the current time and then advances it by a fixed step, so
// measured durations are multiples of the step.
type StepClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
	calls   int
}

// NewStepClock returns a clock starting at start. A zero start uses a fixed
// reference time.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if start.IsZero() {
		start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &StepClock{current: start, step: step}
}

// Now returns the current time and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	c.calls++
	return now
}

// Calls reports how many times Now was called.
func (c *StepClock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
