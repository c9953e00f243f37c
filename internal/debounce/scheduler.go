// Package debounce delays a call until its triggers have settled.
package debounce

import (
	"sync"
	"time"
)

// Scheduler fires at most one call per burst of Schedule calls, once the window
// has elapsed without a new trigger. The zero window fires on the next goroutine.
type Scheduler struct {
	mu      sync.Mutex
	window  time.Duration
	clock   Clock
	timer   Timer
	gen     uint64
	pending func()
}

func New(window time.Duration, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{window: window, clock: clock}
}

func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule replaces any pending call with fn and restarts the window.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.pending = fn

	if s.window <= 0 {
		go s.fire(gen)
		return
	}
	s.timer = s.clock.AfterFunc(s.window, func() { s.fire(gen) })
}

// Cancel drops the pending call. A canceled call never fires, even if its
// timer already expired and is waiting for the lock.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	s.pending = nil
}

// Flush runs the pending call immediately on the caller's goroutine.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	fn := s.pending
	if fn == nil {
		s.mu.Unlock()
		return false
	}
	s.stopLocked()
	s.gen++
	s.pending = nil
	s.mu.Unlock()

	fn()
	return true
}

// Pending reports whether a call is waiting for the window to elapse.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	fn()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
