package research

import (
	"time"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
)

// Phase enum. Phases always run in the order listed by Phases.
type Phase string

const (
	PhaseInitialResearch  Phase = "initial_research"
	PhaseCriticalAnalysis Phase = "critical_analysis"
	PhaseSecurityReview   Phase = "security_review"
	PhaseFinalConsensus   Phase = "final_consensus"
)

// Phases is the fixed execution order.
var Phases = []Phase{
	PhaseInitialResearch,
	PhaseCriticalAnalysis,
	PhaseSecurityReview,
	PhaseFinalConsensus,
}

// Status enum. phase:<name> statuses are derived via PhaseStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PhaseStatus builds the in-flight status for a phase.
func PhaseStatus(p Phase) Status {
	return Status("phase:" + string(p))
}

// Terminal reports whether a task in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority enum for task submission.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Task is one background investigation. Mutated in place after each phase;
// terminal once completed or failed. A phase failure keeps the results of
// every phase that finished before it.
type Task struct {
	ID           string                     `json:"id"`
	Topic        string                     `json:"topic"`
	Priority     Priority                   `json:"priority"`
	Status       Status                     `json:"status"`
	PhaseResults []consensus.EngineAnalysis `json:"phase_results"`
	Consensus    *consensus.ConsensusResult `json:"consensus,omitempty"`
	StartedAt    time.Time                  `json:"started_at"`
	EndedAt      *time.Time                 `json:"ended_at,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to callers while the
// scheduler keeps mutating the original.
func (t *Task) Clone() Task {
	out := *t
	out.PhaseResults = append([]consensus.EngineAnalysis(nil), t.PhaseResults...)
	if t.Consensus != nil {
		c := *t.Consensus
		out.Consensus = &c
	}
	if t.EndedAt != nil {
		e := *t.EndedAt
		out.EndedAt = &e
	}
	return out
}
