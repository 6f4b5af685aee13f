// Package mediatest provides deterministic time and scheduling for tests
// that drive media.Sim elements.
package mediatest

import (
	"sync"
	"time"
)

// Clock is a manually advanced wall clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 19, 30, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type task struct {
	id      int
	f       func()
	stopped bool
}

// Scheduler queues callbacks until the test runs them.
type Scheduler struct {
	mu    sync.Mutex
	next  int
	tasks []*task
}

// AfterFunc implements media.Scheduler. The delay is ignored; callbacks run
// in the order they were scheduled when Run or RunAll is called.
func (s *Scheduler) AfterFunc(_ time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	t := &task{id: s.next, f: f}
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Pending returns the number of queued, unstopped callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Run executes the oldest pending callback and reports whether one ran.
func (s *Scheduler) Run() bool {
	s.mu.Lock()
	var next *task
	for len(s.tasks) > 0 {
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		if !t.stopped {
			t.stopped = true
			next = t
			break
		}
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

// RunAll executes pending callbacks, including ones scheduled while
// running, until none remain.
func (s *Scheduler) RunAll() {
	for s.Run() {
	}
}
