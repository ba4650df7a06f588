// Package scheduler runs single-shot deferred callbacks.
//
// The scheduler models the latency between a cause event and its visible
// effect: an account opens some seconds after the application is filed, a
// payment confirmation trails the payment creation, a shipment tracking
// number arrives after dispatch. Each callback runs once on its own
// goroutine and re-enters the caller's caches, so it is subject to the
// same locking as message handlers.
//
// Unlike a bare time.AfterFunc, every scheduled callback returns a Task
// handle that can be cancelled, and Stop cancels everything still
// pending so a shutdown does not leave timers firing into torn-down
// components.
package scheduler

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled callback.
type Task struct {
	id    uint64
	timer *time.Timer
	s     *Scheduler
}

// Cancel stops the task if it has not fired yet and reports whether the
// callback was prevented from running.
func (t *Task) Cancel() bool {
	stopped := t.timer.Stop()
	if t.s != nil {
		t.s.remove(t.id)
	}
	return stopped
}

// Scheduler defers callbacks and tracks them until they fire.
// Construct with New; safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	pending map[uint64]*Task
	nextID  uint64
	stopped bool
}

// New creates a Scheduler ready for use.
func New() *Scheduler {
	return &Scheduler{pending: make(map[uint64]*Task)}
}

// Schedule runs fn once after delay and returns a cancellable handle.
//
// If the scheduler has been stopped the callback never runs and the
// returned task is already cancelled. There is no guarantee of execution
// if the process exits before the delay elapses.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		t := time.NewTimer(delay)
		t.Stop()
		return &Task{timer: t}
	}

	s.nextID++
	id := s.nextID
	task := &Task{id: id, s: s}
	task.timer = time.AfterFunc(delay, func() {
		s.remove(id)
		fn()
	})
	s.pending[id] = task
	return task
}

// Pending returns the number of callbacks that have not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels all pending callbacks. Callbacks already running are not
// interrupted. The scheduler accepts no further work afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, task := range s.pending {
		task.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}
