package testutil

import (
	"sync"
	"time"

	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

// ManualScheduler is a game.Scheduler whose tasks only run when a test fires them.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualTimer
}

// ManualTimer is a task registered with ManualScheduler.
type ManualTimer struct {
	Delay time.Duration

	mu      sync.Mutex
	fn      func()
	stopped bool
	fired   bool
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) game.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &ManualTimer{Delay: d, fn: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Stop cancels the task if it has not run yet.
func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Stopped reports whether Stop cancelled the task.
func (t *ManualTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fire runs the task unless it was stopped.
func (t *ManualTimer) Fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
}

// ForceFire runs the task even if it was stopped, the way a timer that already
// fired races a Stop call.
func (t *ManualTimer) ForceFire() {
	t.mu.Lock()
	t.fired = true
	t.mu.Unlock()
	t.fn()
}

// Tasks returns every task scheduled so far.
func (s *ManualScheduler) Tasks() []*ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ManualTimer(nil), s.tasks...)
}

// Last returns the most recently scheduled task, or nil.
func (s *ManualScheduler) Last() *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// FireAll runs every task that is still pending.
func (s *ManualScheduler) FireAll() {
	for _, t := range s.Tasks() {
		t.Fire()
	}
}
