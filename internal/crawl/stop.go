package crawl

import "sync"

// StopController tracks cumulative bytes written across all workers and
// raises the run-wide stop flag once the byte budget is reached. The
// transition is one-way: once stopped, never running again. The lock is
// only held across the in-memory mutation, never across I/O.
type StopController struct {
	mu      sync.Mutex
	budget  int64
	total   int64
	stopped bool
}

// NewStopController returns a controller that stops the run once
// budgetBytes have been written.
func NewStopController(budgetBytes int64) *StopController {
	return &StopController{budget: budgetBytes}
}

// RecordBytes adds n to the cumulative total, called exactly once per
// successful flush after the unit is durable. It reports whether the run
// should now stop.
func (c *StopController) RecordBytes(n int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += n
	if !c.stopped && c.total >= c.budget {
		c.stopped = true
	}
	return c.stopped
}

// ShouldStop reports whether the byte budget has been reached. It is cheap
// and intended to be polled at every item and flush boundary.
func (c *StopController) ShouldStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Total returns the cumulative bytes recorded so far.
func (c *StopController) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
