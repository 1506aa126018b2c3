// Package scheduler arms one deferred callback per reservation.  Timers are
// held in memory only and do not survive a restart.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/metrics"
)

var (
	// ErrAlreadyArmed is returned by Arm when the id already has a timer.
	ErrAlreadyArmed = errors.New("timer already armed for reservation")
	// ErrStopped is returned by Arm after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

// Scheduler owns the id -> timer mapping.  Arm, Cancel and the firing of a
// timer are safe to run concurrently; a callback runs at most once and
// never after a successful Cancel.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
	metrics *metrics.Collector
	now     func() time.Time
}

// New returns an empty Scheduler.  m may be nil.
func New(m *metrics.Collector) *Scheduler {
	return &Scheduler{
		timers:  make(map[string]*time.Timer),
		metrics: m,
		now:     time.Now,
	}
}

// Arm schedules fn to run once at fireAt.  A fireAt in the past fires
// immediately.  Re-arming an id that still has a pending timer fails with
// ErrAlreadyArmed.
func (s *Scheduler) Arm(id string, fireAt time.Time, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if _, ok := s.timers[id]; ok {
		return ErrAlreadyArmed
	}
	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id, fn) })
	s.metrics.RecordTimerArmed()
	logger.Debug("deadline armed", "reservation_id", id, "fire_at", fireAt)
	return nil
}

// fire claims the timer entry and runs fn.  If Cancel removed the entry
// first the callback is skipped.
func (s *Scheduler) fire(id string, fn func()) {
	s.mu.Lock()
	if _, ok := s.timers[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("deadline callback panicked", "reservation_id", id, "panic", r)
		}
	}()
	s.metrics.RecordTimerFired()
	fn()
}

// Cancel stops the pending timer for id.  It reports false when there is
// nothing to cancel: the id was never armed, was already cancelled, or its
// callback has already started.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, id)
	s.metrics.RecordTimerCancelled()
	logger.Debug("deadline cancelled", "reservation_id", id)
	return true
}

// Pending returns the number of armed timers that have not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Armed reports whether id has a pending timer.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Stop cancels every pending timer, rejects further Arm calls and waits
// for callbacks already running to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		s.metrics.RecordTimerCancelled()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
