package epoch

import (
	"fmt"
	"sync"
)

// Clock is the process-wide epoch counter. It is advanced either manually
// (operator endpoint) or by the scheduler's epoch ticker; nothing inside the
// billing core moves it on its own.
type Clock struct {
	mu      sync.RWMutex
	current Epoch
}

// NewClock creates a clock starting at the given epoch.
func NewClock(start Epoch) *Clock {
	return &Clock{current: start}
}

// Current returns the current epoch.
func (c *Clock) Current() Epoch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// Advance moves the clock forward by n epochs and returns the new value.
// Advancing by zero is a no-op and returns the current epoch.
func (c *Clock) Advance(n Epoch) Epoch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current += n
	return c.current
}

// Restore sets the clock to a snapshotted value. The clock never moves
// backward: restoring below the current epoch is rejected.
func (c *Clock) Restore(e Epoch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e < c.current {
		return fmt.Errorf("cannot restore clock to %d: already at %d", e, c.current)
	}
	c.current = e
	return nil
}
