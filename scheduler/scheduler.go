// Package scheduler runs a set of registered tasks over and over, in registration order, on a
// single background goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/utils"
)

// A Task is a registered function. Its identity is the pointer returned by Register.
type Task struct {
	name   string
	fn     func()
	runs   atomic.Int64
	faults atomic.Int64

	faultLog rate.Sometimes
}

// Name returns the name the task was registered with.
func (t *Task) Name() string {
	return t.name
}

// Runs returns how many times the task has been invoked.
func (t *Task) Runs() int64 {
	return t.runs.Load()
}

// Faults returns how many invocations of the task panicked.
func (t *Task) Faults() int64 {
	return t.faults.Load()
}

// Scheduler invokes every registered task once per pass, in registration order, with no pause
// between passes. A slow task delays every task after it. A task that panics is logged and
// stays registered; repeated panics from one task are logged at most once a second.
type Scheduler struct {
	logger logging.Logger

	mu    sync.Mutex
	tasks []*Task
	wake  chan struct{}

	passes atomic.Uint64

	workersMu sync.Mutex
	workers   utils.StoppableWorkers
}

// New returns a stopped scheduler with no tasks.
func New(logger logging.Logger) *Scheduler {
	return &Scheduler{logger: logger, wake: make(chan struct{}, 1)}
}

// Register appends fn to the task list. It is safe to call while the scheduler runs; the task
// joins from the next pass.
func (s *Scheduler) Register(name string, fn func()) *Task {
	t := &Task{name: name, fn: fn, faultLog: rate.Sometimes{First: 1, Interval: time.Second}}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// Unregister removes t and reports whether it was registered. A pass already under way may
// still invoke it once.
func (s *Scheduler) Unregister(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, registered := range s.tasks {
		if registered == t {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Tasks returns the registered tasks in order.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Passes returns how many complete passes have run.
func (s *Scheduler) Passes() uint64 {
	return s.passes.Load()
}

// Start launches the background goroutine. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	if s.workers != nil {
		return
	}
	s.workers = utils.NewStoppableWorkers(s.run)
}

// Close stops the background goroutine after the task it is running returns.
func (s *Scheduler) Close(ctx context.Context) error {
	s.workersMu.Lock()
	workers := s.workers
	s.workers = nil
	s.workersMu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		tasks := s.Tasks()
		if len(tasks) == 0 {
			// nothing to run; park instead of spinning
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}
		for _, t := range tasks {
			if ctx.Err() != nil {
				return
			}
			s.invoke(t)
		}
		s.passes.Inc()
	}
}

func (s *Scheduler) invoke(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			faults := t.faults.Inc()
			t.faultLog.Do(func() {
				s.logger.Errorw("scheduled task panicked", "task", t.name, "panic", r, "faults", faults)
			})
		}
	}()
	t.runs.Inc()
	t.fn()
}
