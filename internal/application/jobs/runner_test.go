package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerExecutesRegisteredJobs(t *testing.T) {
	r := NewRunner()

	var runs int64
	r.Register("tick", 10*time.Millisecond, func(context.Context) {
		atomic.AddInt64(&runs, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if got := atomic.LoadInt64(&runs); got < 3 {
		t.Fatalf("runs = %d, want >= 3", got)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner()

	var runs int64
	r.Register("tick", 10*time.Millisecond, func(context.Context) {
		atomic.AddInt64(&runs, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	after := atomic.LoadInt64(&runs)
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(&runs); got != after {
		t.Fatalf("job still running after cancel: %d -> %d", after, got)
	}
}

func TestRunnerSurvivesPanickingJob(t *testing.T) {
	r := NewRunner()

	var runs int64
	r.Register("boom", 10*time.Millisecond, func(context.Context) {
		atomic.AddInt64(&runs, 1)
		panic("job blew up")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt64(&runs) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt64(&runs); got < 2 {
		t.Fatalf("panicking job stopped rescheduling: runs = %d", got)
	}
}
