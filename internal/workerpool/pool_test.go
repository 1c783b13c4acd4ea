package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndDrain(t *testing.T) {
	p := New("test", 2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if !p.Submit("job", func() { count.Add(1) }) {
			t.Fatalf("Submit %d failed", i)
		}
	}

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Drain(ctx)

	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
}

func TestSubmitAfterStopAcceptingReturnsFalse(t *testing.T) {
	p := New("test", 1, 1)
	p.StopAccepting()
	if p.Submit("job", func() {}) {
		t.Fatal("Submit after StopAccepting should return false")
	}
	p.Drain(context.Background())
}

func TestQueueFullReturnsFalse(t *testing.T) {
	p := New("test", 1, 1)
	blocker := make(chan struct{})
	p.Submit("job", func() { <-blocker })

	time.Sleep(10 * time.Millisecond)
	p.Submit("job", func() {})

	if p.Submit("job", func() {}) {
		t.Fatal("Submit should return false when queue is full")
	}

	close(blocker)
	p.StopAccepting()
	p.Drain(context.Background())
}

func TestDrainRespectsContextDeadline(t *testing.T) {
	p := New("test", 1, 10)
	blocker := make(chan struct{})
	p.Submit("job", func() { <-blocker })
	p.StopAccepting()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Drain(ctx)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("Drain should have timed out in ~100ms, took %v", elapsed)
	}
	close(blocker)
}

func TestPanicRecovery(t *testing.T) {
	p := New("test", 1, 10)
	var count atomic.Int32

	p.Submit("panicker", func() { panic("test panic") })
	p.Submit("job", func() { count.Add(1) })

	p.StopAccepting()
	p.Drain(context.Background())

	if got := count.Load(); got != 1 {
		t.Fatalf("task after panic: count = %d, want 1", got)
	}
}
