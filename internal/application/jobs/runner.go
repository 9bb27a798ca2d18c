package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner executes registered maintenance jobs on their own intervals. It
// exists so periodic work (memory sweeps, task cleanup, health probes) is
// wired explicitly and testable in isolation instead of hanging off a
// process-wide timer registry.
type Runner struct {
	mu   sync.Mutex
	jobs []job
}

type job struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
}

func NewRunner() *Runner {
	return &Runner{}
}

// Register adds a job. Must be called before Start.
func (r *Runner) Register(name string, interval time.Duration, fn func(context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job{name: name, interval: interval, fn: fn})
}

// Start launches one ticker goroutine per job and returns. Jobs stop when
// ctx is cancelled. A panicking job is logged and skipped, not fatal.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	jobs := append([]job(nil), r.jobs...)
	r.mu.Unlock()

	for _, j := range jobs {
		go r.loop(ctx, j)
	}
}

func (r *Runner) loop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, j)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("job panic: name=%s err=%v", j.name, rec)
		}
	}()
	j.fn(ctx)
}
