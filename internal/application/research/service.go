package research

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/sentinel/internal/application"
	appconsensus "github.com/halcyonlabs/sentinel/internal/application/consensus"
	domain "github.com/halcyonlabs/sentinel/internal/domain/consensus"
	research "github.com/halcyonlabs/sentinel/internal/domain/research"
	"github.com/halcyonlabs/sentinel/internal/infra/engine/prompt"
)

// Service runs four-phase investigations as detached background tasks.
// Submission returns immediately; status is pollable by id and pushed
// through Notify on every transition. Tasks never interfere with each
// other and cannot be cancelled once a phase has started.
type Service struct {
	Dispatcher   domain.Dispatcher
	Evaluator    *appconsensus.Evaluator
	Clock        application.Clock
	PhaseTimeout time.Duration
	// PhaseEngines maps the three research phases to engine ids. The final
	// consensus phase always uses the evaluator's arbiter.
	PhaseEngines map[research.Phase]string
	// Notify receives a snapshot after every status change. Optional.
	Notify func(research.Task)

	mu    sync.RWMutex
	tasks map[string]*research.Task
}

func NewService(dispatcher domain.Dispatcher, evaluator *appconsensus.Evaluator, clock application.Clock, phaseTimeout time.Duration, phaseEngines map[research.Phase]string) *Service {
	return &Service{
		Dispatcher:   dispatcher,
		Evaluator:    evaluator,
		Clock:        clock,
		PhaseTimeout: phaseTimeout,
		PhaseEngines: phaseEngines,
		tasks:        make(map[string]*research.Task),
	}
}

// Submit registers a task and starts it detached, like a webhook-triggered
// background run: the caller gets the id back before any phase begins.
func (s *Service) Submit(topic string, priority research.Priority) string {
	id := uuid.New().String()
	task := &research.Task{
		ID:        id,
		Topic:     topic,
		Priority:  priority,
		Status:    research.StatusPending,
		StartedAt: s.Clock.Now(),
	}

	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()
	s.publish(task.Clone())

	// run with context.Background() so the task survives the request that
	// created it
	go s.run(context.Background(), id)
	return id
}

// Get returns a snapshot of the task.
func (s *Service) Get(id string) (research.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return research.Task{}, false
	}
	return task.Clone(), true
}

// ActiveCount reports how many tasks are not yet terminal.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := 0
	for _, task := range s.tasks {
		if !task.Status.Terminal() {
			active++
		}
	}
	return active
}

// Sweep evicts terminal tasks that ended before the horizon and returns
// how many were removed.
func (s *Service) Sweep(maxAge time.Duration) int {
	horizon := s.Clock.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, task := range s.tasks {
		if task.Status.Terminal() && task.EndedAt != nil && task.EndedAt.Before(horizon) {
			delete(s.tasks, id)
			evicted++
		}
	}
	return evicted
}

func (s *Service) run(ctx context.Context, id string) {
	topic := s.topic(id)

	// phases run strictly in order; each result is recorded before the
	// next phase starts, and a failure halts everything after it
	for _, phase := range research.Phases[:len(research.Phases)-1] {
		s.setStatus(id, research.PhaseStatus(phase))

		engineID, ok := s.PhaseEngines[phase]
		if !ok {
			s.fail(id, fmt.Sprintf("no engine configured for phase %s", phase))
			return
		}

		phasePrompt := prompt.ResearchPhase(string(phase), topic, s.results(id))
		analysis := s.Dispatcher.Dispatch(ctx, engineID, id, phasePrompt, s.PhaseTimeout)
		if analysis.Failed {
			s.fail(id, fmt.Sprintf("phase %s: %s", phase, analysis.Error))
			return
		}
		s.appendResult(id, analysis)
	}

	s.setStatus(id, research.PhaseStatus(research.PhaseFinalConsensus))
	arbiter, result := s.Evaluator.Arbitrate(ctx, id, s.results(id))
	if arbiter.Failed {
		s.fail(id, fmt.Sprintf("phase %s: %s", research.PhaseFinalConsensus, arbiter.Error))
		return
	}
	s.complete(id, arbiter, result)
}

func (s *Service) topic(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if task, ok := s.tasks[id]; ok {
		return task.Topic
	}
	return ""
}

func (s *Service) results(id string) []domain.EngineAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if task, ok := s.tasks[id]; ok {
		return append([]domain.EngineAnalysis(nil), task.PhaseResults...)
	}
	return nil
}

func (s *Service) setStatus(id string, status research.Status) {
	s.mutate(id, func(task *research.Task) {
		task.Status = status
	})
}

func (s *Service) appendResult(id string, analysis domain.EngineAnalysis) {
	s.mutate(id, func(task *research.Task) {
		task.PhaseResults = append(task.PhaseResults, analysis)
	})
}

func (s *Service) fail(id, reason string) {
	log.Printf("research task failed: id=%s reason=%q", id, reason)
	s.mutate(id, func(task *research.Task) {
		ended := s.Clock.Now()
		task.Status = research.StatusFailed
		task.Error = reason
		task.EndedAt = &ended
	})
}

func (s *Service) complete(id string, arbiter domain.EngineAnalysis, result domain.ConsensusResult) {
	s.mutate(id, func(task *research.Task) {
		ended := s.Clock.Now()
		task.PhaseResults = append(task.PhaseResults, arbiter)
		task.Consensus = &result
		task.Status = research.StatusCompleted
		task.EndedAt = &ended
	})
}

func (s *Service) mutate(id string, fn func(*research.Task)) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(task)
	snapshot := task.Clone()
	s.mu.Unlock()
	s.publish(snapshot)
}

func (s *Service) publish(task research.Task) {
	if s.Notify != nil {
		s.Notify(task)
	}
}
