package memo

import (
	"sync"
	"time"
)

// Scheduler runs deferred memo work on cancellable timers. Scheduling
// against a thread that already has a pending timer replaces it, so a
// thread never fires twice for one reply.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arranges fn to run after delay, keyed by thread ID. A
// pending timer for the same thread is cancelled first.
func (s *Scheduler) Schedule(threadID string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if prev, ok := s.timers[threadID]; ok {
		prev.Stop()
	}
	s.timers[threadID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, threadID)
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

// Cancel stops the pending timer for a thread, if any.
func (s *Scheduler) Cancel(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[threadID]; ok {
		t.Stop()
		delete(s.timers, threadID)
	}
}

// Pending reports whether a thread has a timer waiting.
func (s *Scheduler) Pending(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[threadID]
	return ok
}

// Close cancels every pending timer and rejects new ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
