package testutil

import (
	"sync"
	"time"
)

// Now is the fixed "current time" of the fixture: Wednesday 2026-10-21 15:30 UTC.
var Now = time.Date(2026, time.October, 21, 15, 30, 0, 0, time.UTC)

// Clock is a manually advanced clock, safe for concurrent use.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to [Now].
func NewClock() *Clock {
	return &Clock{current: Now}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}
