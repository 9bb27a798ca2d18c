package consensus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyonlabs/sentinel/internal/application"
	domain "github.com/halcyonlabs/sentinel/internal/domain/consensus"
	memdomain "github.com/halcyonlabs/sentinel/internal/domain/memory"
	"github.com/halcyonlabs/sentinel/internal/infra/engine/prompt"
)

// Service implements the synchronous orchestrator operations: analyze,
// evaluate-policy and memory queries. Research submission lives in its own
// scheduler. Safe for concurrent use.
type Service struct {
	Evaluator *Evaluator
	Store     memdomain.VerdictStore
	Clock     application.Clock
}

// Report is the full response for one analysis.
type Report struct {
	RequestID      string                   `json:"request_id"`
	Analyses       []domain.EngineAnalysis  `json:"analyses"`
	Consensus      domain.ConsensusResult   `json:"consensus"`
	Recommendation string                   `json:"recommendation"`
	Confidence     float64                  `json:"confidence"`
	FromMemory     bool                     `json:"from_memory"`
}

// PolicyEvaluation is the response for one policy review round.
type PolicyEvaluation struct {
	Policy         string        `json:"policy"`
	Evaluation     string        `json:"evaluation"`
	Action         domain.Action `json:"action"`
	Recommendation string        `json:"recommendation"`
}

// Analyze runs the full consensus round for a piece of content. Recurring
// fingerprints are answered straight from immune memory without another
// engine round. The call always produces a verdict; backend outages fail
// closed into QUARANTINE rather than erroring.
func (s *Service) Analyze(ctx context.Context, content string, severity domain.Severity, source string) (*Report, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidRequest)
	}

	fingerprint := memdomain.Fingerprint(content)
	if entry, ok := s.Store.Lookup(ctx, fingerprint); ok {
		return &Report{
			RequestID:      entry.Consensus.RequestID,
			Analyses:       []domain.EngineAnalysis{},
			Consensus:      entry.Consensus,
			Recommendation: domain.Recommendation(entry.Consensus.Action),
			Confidence:     entry.Consensus.Confidence,
			FromMemory:     true,
		}, nil
	}

	req := domain.AnalysisRequest{
		ID:          uuid.New().String(),
		Content:     content,
		Severity:    severity,
		Source:      source,
		SubmittedAt: s.Clock.Now(),
	}

	analyses, result := s.Evaluator.Evaluate(ctx, req)
	_ = s.Store.Record(ctx, fingerprint, memdomain.Excerpt(content), result)

	return &Report{
		RequestID:      req.ID,
		Analyses:       analyses,
		Consensus:      result,
		Recommendation: domain.Recommendation(result.Action),
		Confidence:     result.Confidence,
	}, nil
}

// EvaluatePolicy fans the policy text out to the roster with the policy
// framing and arbitrates the reviews into a recommended action.
func (s *Service) EvaluatePolicy(ctx context.Context, policy, policyCtx string) (*PolicyEvaluation, error) {
	if strings.TrimSpace(policy) == "" {
		return nil, fmt.Errorf("%w: policy is required", domain.ErrInvalidRequest)
	}

	requestID := uuid.New().String()
	reviewPrompt := prompt.Policy(policy, policyCtx)
	analyses := s.Evaluator.FanOut(ctx, requestID, func(Reviewer) string { return reviewPrompt })
	_, result := s.Evaluator.Arbitrate(ctx, requestID, analyses)

	evaluation := result.ArbiterText
	if evaluation == "" {
		evaluation = "Policy review could not reach a verdict; treating the policy as unsafe until re-evaluated."
	}

	return &PolicyEvaluation{
		Policy:         policy,
		Evaluation:     evaluation,
		Action:         result.Action,
		Recommendation: domain.Recommendation(result.Action),
	}, nil
}

// QueryMemory looks up the verdict remembered for seed content. The lookup
// itself counts as an access.
func (s *Service) QueryMemory(ctx context.Context, seed string) (*memdomain.Entry, bool) {
	return s.Store.Lookup(ctx, memdomain.Fingerprint(seed))
}
