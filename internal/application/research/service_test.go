package research

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	appconsensus "github.com/halcyonlabs/sentinel/internal/application/consensus"
	domain "github.com/halcyonlabs/sentinel/internal/domain/consensus"
	research "github.com/halcyonlabs/sentinel/internal/domain/research"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeDispatcher answers per engine id; failAt makes one engine fail.
type fakeDispatcher struct {
	mu      sync.Mutex
	failing map[string]bool
	prompts []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, engineID, requestID, prompt string, _ time.Duration) domain.EngineAnalysis {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	a := domain.EngineAnalysis{EngineID: engineID, RequestID: requestID, RespondedAt: time.Now()}
	if f.failing[engineID] {
		a.Failed = true
		a.Error = "engine unreachable"
		return a
	}
	if engineID == "arbiter" {
		a.RawText = "score: 0.2\naction: MONITOR\nconfidence: 0.8"
	} else {
		a.RawText = "findings from " + engineID
	}
	return a
}

func testScheduler(d *fakeDispatcher) *Service {
	clock := fixedClock{t: time.Now()}
	evaluator := &appconsensus.Evaluator{
		Dispatcher:  d,
		ArbiterID:   "arbiter",
		CallTimeout: time.Second,
		Clock:       clock,
	}
	return NewService(d, evaluator, clock, time.Second, map[research.Phase]string{
		research.PhaseInitialResearch:  "researcher",
		research.PhaseCriticalAnalysis: "reviewer",
		research.PhaseSecurityReview:   "specialist",
	})
}

func waitTerminal(t *testing.T, s *Service, id string) research.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := s.Get(id)
		if !ok {
			t.Fatalf("task %s disappeared", id)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return research.Task{}
}

func TestSubmitReturnsImmediately(t *testing.T) {
	s := testScheduler(&fakeDispatcher{})

	id := s.Submit("topic X", research.PriorityNormal)
	if id == "" {
		t.Fatal("empty task id")
	}
	if _, ok := s.Get(id); !ok {
		t.Fatal("task not retrievable right after submit")
	}

	task := waitTerminal(t, s, id)
	if task.Status != research.StatusCompleted {
		t.Fatalf("status = %s, want completed (error=%s)", task.Status, task.Error)
	}
	if len(task.PhaseResults) != 4 {
		t.Fatalf("phase results = %d, want 4", len(task.PhaseResults))
	}
	if task.Consensus == nil || task.Consensus.Action != domain.ActionMonitor {
		t.Fatalf("consensus = %+v", task.Consensus)
	}
	if task.EndedAt == nil {
		t.Fatal("completed task without EndedAt")
	}
}

func TestStatusTransitionsInOrder(t *testing.T) {
	s := testScheduler(&fakeDispatcher{})

	var mu sync.Mutex
	var seen []research.Status
	done := make(chan struct{})
	s.Notify = func(task research.Task) {
		mu.Lock()
		seen = append(seen, task.Status)
		mu.Unlock()
		if task.Status.Terminal() {
			close(done)
		}
	}

	s.Submit("topic X", research.PriorityHigh)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []research.Status{
		research.StatusPending,
		research.PhaseStatus(research.PhaseInitialResearch),
		research.PhaseStatus(research.PhaseCriticalAnalysis),
		research.PhaseStatus(research.PhaseSecurityReview),
		research.PhaseStatus(research.PhaseFinalConsensus),
		research.StatusCompleted,
	}
	var distinct []research.Status
	for _, st := range seen {
		if len(distinct) == 0 || distinct[len(distinct)-1] != st {
			distinct = append(distinct, st)
		}
	}
	if len(distinct) != len(want) {
		t.Fatalf("transitions = %v, want %v", distinct, want)
	}
	for i := range want {
		if distinct[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, distinct[i], want[i])
		}
	}
}

func TestPhaseFailureHaltsTask(t *testing.T) {
	d := &fakeDispatcher{failing: map[string]bool{"reviewer": true}}
	s := testScheduler(d)

	id := s.Submit("topic X", research.PriorityNormal)
	task := waitTerminal(t, s, id)

	if task.Status != research.StatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
	// exactly the phases completed before the failure, never more
	if len(task.PhaseResults) != 1 {
		t.Fatalf("phase results = %d, want 1", len(task.PhaseResults))
	}
	if !strings.Contains(task.Error, string(research.PhaseCriticalAnalysis)) {
		t.Fatalf("error %q does not name the failed phase", task.Error)
	}
}

func TestArbiterFailureKeepsPhaseResults(t *testing.T) {
	d := &fakeDispatcher{failing: map[string]bool{"arbiter": true}}
	s := testScheduler(d)

	id := s.Submit("topic X", research.PriorityNormal)
	task := waitTerminal(t, s, id)

	if task.Status != research.StatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
	if len(task.PhaseResults) != 3 {
		t.Fatalf("phase results = %d, want 3", len(task.PhaseResults))
	}
	if task.Consensus != nil {
		t.Fatal("failed task must not carry a consensus")
	}
}

func TestLaterPhasesSeePriorOutputs(t *testing.T) {
	d := &fakeDispatcher{}
	s := testScheduler(d)

	id := s.Submit("topic X", research.PriorityNormal)
	waitTerminal(t, s, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	// prompts: initial, critical, security, arbiter
	if len(d.prompts) != 4 {
		t.Fatalf("dispatches = %d, want 4", len(d.prompts))
	}
	if !strings.Contains(d.prompts[2], "findings from researcher") {
		t.Fatal("security review prompt missing initial research output")
	}
	if !strings.Contains(d.prompts[2], "findings from reviewer") {
		t.Fatal("security review prompt missing critical analysis output")
	}
}

func TestConcurrentTasksDoNotInterfere(t *testing.T) {
	s := testScheduler(&fakeDispatcher{})

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = s.Submit("topic", research.PriorityLow)
	}
	for _, id := range ids {
		task := waitTerminal(t, s, id)
		if task.Status != research.StatusCompleted {
			t.Fatalf("task %s status = %s", id, task.Status)
		}
		if len(task.PhaseResults) != 4 {
			t.Fatalf("task %s phase results = %d", id, len(task.PhaseResults))
		}
	}
}

func TestSweepEvictsTerminalTasks(t *testing.T) {
	clock := &mutableClock{t: time.Now()}
	d := &fakeDispatcher{}
	s := testScheduler(d)
	s.Clock = clock
	s.Evaluator.Clock = clock

	id := s.Submit("topic", research.PriorityNormal)
	waitTerminal(t, s, id)

	if evicted := s.Sweep(24 * time.Hour); evicted != 0 {
		t.Fatalf("fresh task evicted: %d", evicted)
	}

	clock.advance(25 * time.Hour)
	if evicted := s.Sweep(24 * time.Hour); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := s.Get(id); ok {
		t.Fatal("evicted task still retrievable")
	}
	if s.ActiveCount() != 0 {
		t.Fatalf("active = %d, want 0", s.ActiveCount())
	}
}

type mutableClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mutableClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
