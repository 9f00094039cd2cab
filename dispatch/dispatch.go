// Package dispatch provides the single-threaded task loop every GAP
// component runs on. Components never lock; anything arriving from another
// goroutine is posted onto the loop first.
package dispatch

import (
	"sync"
	"time"
)

// Task is a scheduled unit of work that may be canceled before it runs.
type Task interface {
	// Cancel prevents the task from running. It returns false if the task
	// already ran or was already canceled.
	Cancel() bool
}

// Dispatcher runs posted functions serially.
type Dispatcher interface {
	Post(f func())
	PostAfter(d time.Duration, f func()) Task
	Now() time.Time
}

// Loop is a Dispatcher backed by one goroutine. Its queue is unbounded so
// that tasks running on the loop can always post more work.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewLoop creates a loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			tasks := l.tasks
			l.tasks = nil
			l.mu.Unlock()
			if len(tasks) == 0 {
				break
			}
			for _, f := range tasks {
				select {
				case <-l.done:
					return
				default:
				}
				f()
			}
		}
	}
}

// Post queues f and never blocks. It is safe to call from any goroutine,
// including the loop itself. Posting to a stopped loop drops f.
func (l *Loop) Post(f func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostAfter runs f on the loop once d has elapsed.
func (l *Loop) PostAfter(d time.Duration, f func()) Task {
	t := &timerTask{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.canceled || t.ran {
				return
			}
			t.ran = true
			f()
		})
	})
	return t
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Sync posts f and waits for it to run. It must not be called from the loop.
func (l *Loop) Sync(f func()) {
	ch := make(chan struct{})
	l.Post(func() {
		f()
		close(ch)
	})
	select {
	case <-ch:
	case <-l.done:
	}
}

// Stop terminates the loop. Queued tasks that have not started are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
}

// Done is closed once Stop is called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// timerTask fields other than timer are only touched on the loop goroutine.
type timerTask struct {
	timer    *time.Timer
	canceled bool
	ran      bool
}

func (t *timerTask) Cancel() bool {
	if t.canceled || t.ran {
		return false
	}
	t.canceled = true
	t.timer.Stop()
	return true
}
