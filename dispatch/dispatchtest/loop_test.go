package dispatchtest

import (
	"testing"
	"time"
)

func TestVirtualClock(t *testing.T) {
	l := NewLoop()
	start := l.Now()

	var order []string
	l.PostAfter(2*time.Second, func() { order = append(order, "late") })
	l.PostAfter(time.Second, func() { order = append(order, "early") })
	l.Post(func() { order = append(order, "now") })

	l.RunUntilIdle()
	if len(order) != 1 || order[0] != "now" {
		t.Fatalf("unexpected order after idle: %v", order)
	}

	l.RunFor(1500 * time.Millisecond)
	if len(order) != 2 || order[1] != "early" {
		t.Fatalf("unexpected order: %v", order)
	}
	if got := l.Now().Sub(start); got != 1500*time.Millisecond {
		t.Fatalf("clock at %v", got)
	}

	task := l.PostAfter(time.Second, func() { order = append(order, "canceled") })
	if !task.Cancel() {
		t.Fatalf("cancel failed")
	}
	l.RunFor(10 * time.Second)
	if len(order) != 3 || order[2] != "late" {
		t.Fatalf("unexpected order: %v", order)
	}
	if l.PendingCount() != 0 {
		t.Fatalf("tasks left behind")
	}
}
