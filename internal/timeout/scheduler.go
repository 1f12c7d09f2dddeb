// Package timeout runs the per-applicant expiry timers. Each applicant has
// at most one live timer; scheduling again supersedes the previous one via a
// generation counter, so a stale fire is a no-op even before the fire
// function re-reads persisted state.
package timeout

import (
	"context"
	"sync"
	"time"

	"voicegate-backend/internal/logger"
)

// FireFunc is invoked when a timer elapses and its generation is still
// current. It must consult persisted status itself; the scheduler only
// guarantees the timer was not superseded.
type FireFunc func(ctx context.Context, applicantID int64)

type Scheduler struct {
	delay time.Duration
	fire  FireFunc

	mu     sync.Mutex
	gens   map[int64]uint64
	timers map[int64]*time.Timer
	closed bool

	wg sync.WaitGroup
}

func NewScheduler(delay time.Duration, fire FireFunc) *Scheduler {
	return &Scheduler{
		delay:  delay,
		fire:   fire,
		gens:   make(map[int64]uint64),
		timers: make(map[int64]*time.Timer),
	}
}

// Schedule arms the expiry timer for an applicant, replacing any running
// timer for the same identity.
func (s *Scheduler) Schedule(applicantID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if t, ok := s.timers[applicantID]; ok {
		t.Stop()
	}
	s.gens[applicantID]++
	gen := s.gens[applicantID]

	s.timers[applicantID] = time.AfterFunc(s.delay, func() {
		s.onFire(applicantID, gen)
	})
}

func (s *Scheduler) onFire(applicantID int64, gen uint64) {
	s.mu.Lock()
	if s.closed || s.gens[applicantID] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, applicantID)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Timer fire panicked", "applicant_id", applicantID, "panic", r)
		}
	}()

	s.fire(context.Background(), applicantID)
}

// Pending reports whether a timer is currently armed for the applicant.
func (s *Scheduler) Pending(applicantID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[applicantID]
	return ok
}

// Shutdown stops all armed timers and waits for in-flight fires to finish
// or the context to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
