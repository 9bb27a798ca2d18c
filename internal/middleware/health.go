package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// EngineHealthChecker probes one engine through the inference client.
type EngineHealthChecker struct {
	Client   consensus.EngineClient
	EngineID string
}

func (e *EngineHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.Client.Generate(ctx, e.EngineID, "Reply with the single word: pong")
	return err
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthProbe holds the latest probe results so the health endpoint can
// answer without hitting the engines on every request. The periodic
// health-probe job refreshes it.
type HealthProbe struct {
	Checkers map[string]HealthChecker

	mu      sync.RWMutex
	results map[string]CheckStatus
}

func NewHealthProbe(checkers map[string]HealthChecker) *HealthProbe {
	return &HealthProbe{
		Checkers: checkers,
		results:  make(map[string]CheckStatus),
	}
}

// Run executes every checker and caches the outcome.
func (p *HealthProbe) Run(ctx context.Context) {
	for name, checker := range p.Checkers {
		status := CheckStatus{Status: "healthy", CheckedAt: time.Now()}
		if err := checker.Check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Message = err.Error()
		}
		p.mu.Lock()
		p.results[name] = status
		p.mu.Unlock()
	}
}

// Snapshot returns the cached results and the overall status.
func (p *HealthProbe) Snapshot() (string, map[string]CheckStatus) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	overall := "healthy"
	out := make(map[string]CheckStatus, len(p.results))
	for name, status := range p.results {
		out[name] = status
		if status.Status != "healthy" {
			overall = "unhealthy"
		}
	}
	return overall, out
}
