// Package dispatchtest provides a deterministic dispatcher with a virtual
// clock for tests.
package dispatchtest

import (
	"sort"
	"time"

	"github.com/rigado/bthost/dispatch"
)

// Loop is a dispatch.Dispatcher whose tasks only run when the test drives it.
type Loop struct {
	now     time.Time
	seq     uint64
	pending []*task
}

type task struct {
	deadline time.Time
	seq      uint64
	fn       func()
	done     bool
}

func (t *task) Cancel() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}

// NewLoop returns a loop whose clock starts at an arbitrary fixed instant.
func NewLoop() *Loop {
	return &Loop{now: time.Unix(1000, 0)}
}

func (l *Loop) Post(f func()) {
	l.PostAfter(0, f)
}

func (l *Loop) PostAfter(d time.Duration, f func()) dispatch.Task {
	if d < 0 {
		d = 0
	}
	l.seq++
	t := &task{deadline: l.now.Add(d), seq: l.seq, fn: f}
	l.pending = append(l.pending, t)
	return t
}

func (l *Loop) Now() time.Time {
	return l.now
}

// next removes and returns the earliest runnable task due at or before limit.
func (l *Loop) next(limit time.Time) *task {
	live := l.pending[:0]
	for _, t := range l.pending {
		if !t.done {
			live = append(live, t)
		}
	}
	l.pending = live

	sort.SliceStable(l.pending, func(i, j int) bool {
		a, b := l.pending[i], l.pending[j]
		if !a.deadline.Equal(b.deadline) {
			return a.deadline.Before(b.deadline)
		}
		return a.seq < b.seq
	})
	if len(l.pending) == 0 || l.pending[0].deadline.After(limit) {
		return nil
	}
	t := l.pending[0]
	l.pending = l.pending[1:]
	return t
}

func (l *Loop) run(limit time.Time) bool {
	ran := false
	for {
		t := l.next(limit)
		if t == nil {
			return ran
		}
		if t.deadline.After(l.now) {
			l.now = t.deadline
		}
		t.done = true
		t.fn()
		ran = true
	}
}

// RunUntilIdle runs every task that is due without advancing the clock.
func (l *Loop) RunUntilIdle() bool {
	return l.run(l.now)
}

// RunFor advances the clock by d, running tasks as their deadlines pass.
func (l *Loop) RunFor(d time.Duration) bool {
	end := l.now.Add(d)
	ran := l.run(end)
	l.now = end
	return ran
}

// PendingCount reports how many tasks have not yet run or been canceled.
func (l *Loop) PendingCount() int {
	n := 0
	for _, t := range l.pending {
		if !t.done {
			n++
		}
	}
	return n
}
