// Package scheduler runs a function on a fixed period until cancelled.
//
// The monitor takes a Scheduler instead of calling time.NewTicker directly so
// tests can drive ticks by hand with Manual.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler schedules recurring work.
type Scheduler interface {
	// Every runs fn once per period, first after one period has elapsed.
	Every(period time.Duration, fn func()) Task
}

// Task is a handle to scheduled work.
type Task interface {
	// Stop cancels the task. It is safe to call more than once. An
	// invocation already under way is not interrupted.
	Stop()
}

// Ticker is the wall-clock Scheduler backed by time.Ticker.
//
// fn runs on the task's own goroutine. When fn overruns the period the
// ticker drops the missed ticks rather than queueing them.
type Ticker struct{}

// NewTicker returns a wall-clock scheduler.
func NewTicker() Ticker { return Ticker{} }

// Every implements Scheduler.
func (Ticker) Every(period time.Duration, fn func()) Task {
	t := &tickerTask{
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type tickerTask struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTask) run(fn func()) {
	defer t.ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			// select picks randomly when both are ready.
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.done) })
}
