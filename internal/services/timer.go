package services

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	taskPending int32 = iota
	taskFired
	taskCancelled
)

// TimeoutTask is the handle for one scheduled callback. Exactly one of
// firing and cancelling takes effect.
type TimeoutTask struct {
	key   string
	state atomic.Int32
	timer clockwork.Timer
	owner *TimerScheduler
}

// Cancel stops the task if it has not fired. It reports whether this call
// prevented the callback; repeated calls return false.
func (t *TimeoutTask) Cancel() bool {
	if t == nil || !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	t.owner.mu.Lock()
	timer := t.timer
	t.owner.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	t.owner.forget(t)
	return true
}

func (t *TimeoutTask) Fired() bool {
	return t != nil && t.state.Load() == taskFired
}

// TimerScheduler keeps at most one pending callback per key.
type TimerScheduler struct {
	clock clockwork.Clock

	mu    sync.Mutex
	tasks map[string]*TimeoutTask
}

func NewTimerScheduler(clk clockwork.Clock) *TimerScheduler {
	return &TimerScheduler{
		clock: clk,
		tasks: make(map[string]*TimeoutTask),
	}
}

// Schedule runs fn after delay, replacing any pending task for key.
func (s *TimerScheduler) Schedule(key string, delay time.Duration, fn func()) *TimeoutTask {
	if delay < 0 {
		delay = 0
	}
	task := &TimeoutTask{key: key, owner: s}

	s.mu.Lock()
	previous := s.tasks[key]
	s.tasks[key] = task
	s.mu.Unlock()

	if previous != nil {
		previous.Cancel()
	}

	timer := s.clock.AfterFunc(delay, func() {
		if !task.state.CompareAndSwap(taskPending, taskFired) {
			return
		}
		s.forget(task)
		fn()
	})

	s.mu.Lock()
	task.timer = timer
	s.mu.Unlock()

	log.Printf("[TIMER] scheduled %s in %s", key, delay)
	return task
}

// Cancel cancels the pending task for key, if any.
func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	task := s.tasks[key]
	s.mu.Unlock()
	return task.Cancel()
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TimerScheduler) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop cancels every pending task.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	tasks := make([]*TimeoutTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

func (s *TimerScheduler) forget(task *TimeoutTask) {
	s.mu.Lock()
	if s.tasks[task.key] == task {
		delete(s.tasks, task.key)
	}
	s.mu.Unlock()
}
