package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by hand. Nothing runs until Fire or Advance
// is called, and then fn runs synchronously on the caller's goroutine.
type Manual struct {
	mu    sync.Mutex
	tasks []*ManualTask
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// ManualTask is a task scheduled on a Manual scheduler.
type ManualTask struct {
	Period time.Duration

	fn      func()
	mu      sync.Mutex
	stopped bool
	elapsed time.Duration
	fired   int
}

// Stop implements Task.
func (t *ManualTask) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (t *ManualTask) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Fired returns how many times the task ran.
func (t *ManualTask) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Every implements Scheduler.
func (m *Manual) Every(period time.Duration, fn func()) Task {
	t := &ManualTask{Period: period, fn: fn}
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return t
}

// Tasks returns every task ever scheduled, stopped ones included.
func (m *Manual) Tasks() []*ManualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ManualTask, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Active returns the tasks that have not been stopped.
func (m *Manual) Active() []*ManualTask {
	var out []*ManualTask
	for _, t := range m.Tasks() {
		if !t.Stopped() {
			out = append(out, t)
		}
	}
	return out
}

// Fire runs every active task once.
func (m *Manual) Fire() {
	for _, t := range m.Active() {
		t.run()
	}
}

// Advance moves the clock forward by d, running each active task once for
// every full period that elapses.
func (m *Manual) Advance(d time.Duration) {
	for _, t := range m.Active() {
		t.mu.Lock()
		t.elapsed += d
		n := 0
		if t.Period > 0 {
			n = int(t.elapsed / t.Period)
			t.elapsed %= t.Period
		}
		t.mu.Unlock()

		for i := 0; i < n; i++ {
			if !t.run() {
				break
			}
		}
	}
}

func (t *ManualTask) run() bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	t.fired++
	fn := t.fn
	t.mu.Unlock()
	fn()
	return true
}
