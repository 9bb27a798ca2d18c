package consensus

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halcyonlabs/sentinel/internal/application"
	domain "github.com/halcyonlabs/sentinel/internal/domain/consensus"
	"github.com/halcyonlabs/sentinel/internal/infra/engine/prompt"
)

// Reviewer is one member of the fixed analysis roster.
type Reviewer struct {
	EngineID string
	Role     string
}

// Evaluator fans one envelope out to the reviewer roster, waits for every
// reviewer to answer or time out, then asks the arbiter engine to score
// agreement. It fails closed: any gap in the chain yields the QUARANTINE
// fail-safe verdict, never a hard error.
type Evaluator struct {
	Dispatcher  domain.Dispatcher
	Reviewers   []Reviewer
	ArbiterID   string
	CallTimeout time.Duration
	Clock       application.Clock
}

// Strict arbiter output contract. Values outside [0,1] or a missing label
// count as a parse miss; there is no looser fallback.
var (
	scoreRe      = regexp.MustCompile(`(?i)\bscore\s*[:=]\s*([0-9]*\.?[0-9]+)`)
	actionRe     = regexp.MustCompile(`(?i)\baction\s*[:=]\s*(ALLOW|MONITOR|BLOCK|QUARANTINE)\b`)
	confidenceRe = regexp.MustCompile(`(?i)\bconfidence\s*[:=]\s*([0-9]*\.?[0-9]+)`)
)

// Evaluate runs the full round for one request: reviewer fan-out, then
// arbitration. The returned analyses are the reviewer results in roster
// order; the arbiter's own text lives on the ConsensusResult.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.AnalysisRequest) ([]domain.EngineAnalysis, domain.ConsensusResult) {
	analyses := e.FanOut(ctx, req.ID, func(r Reviewer) string {
		env := prompt.Envelope{Role: r.Role, Severity: req.Severity, Source: req.Source}
		return env.Render(req.Content)
	})
	_, result := e.Arbitrate(ctx, req.ID, analyses)
	return analyses, result
}

// FanOut dispatches one prompt per reviewer concurrently and collects every
// result, failed or not. A slow engine delays the barrier only by its own
// timeout; it never blocks the other calls.
func (e *Evaluator) FanOut(ctx context.Context, requestID string, promptFor func(Reviewer) string) []domain.EngineAnalysis {
	analyses := make([]domain.EngineAnalysis, len(e.Reviewers))

	g, gctx := errgroup.WithContext(ctx)
	for i, reviewer := range e.Reviewers {
		i, reviewer := i, reviewer
		g.Go(func() error {
			// errors are captured inside the analysis, never returned
			analyses[i] = e.Dispatcher.Dispatch(gctx, reviewer.EngineID, requestID, promptFor(reviewer), e.CallTimeout)
			return nil
		})
	}
	_ = g.Wait()
	return analyses
}

// Arbitrate runs the arbiter step over the collected analyses. Quorum is
// the arbiter plus at least one usable reviewer; below quorum the arbiter
// is not consulted at all and the fail-safe verdict is returned.
func (e *Evaluator) Arbitrate(ctx context.Context, requestID string, analyses []domain.EngineAnalysis) (domain.EngineAnalysis, domain.ConsensusResult) {
	now := e.Clock.Now()

	usable := make([]domain.EngineAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if !a.Failed {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return domain.EngineAnalysis{
			EngineID:    e.ArbiterID,
			RequestID:   requestID,
			RespondedAt: now,
			Failed:      true,
			Error:       "quorum not met: no usable reviewer analyses",
		}, domain.FailSafe(requestID, now)
	}

	arbiter := e.Dispatcher.Dispatch(ctx, e.ArbiterID, requestID, prompt.Arbiter(usable), e.CallTimeout)
	if arbiter.Failed {
		return arbiter, domain.FailSafe(requestID, e.Clock.Now())
	}

	result, ok := parseVerdict(arbiter.RawText)
	computedAt := e.Clock.Now()
	if !ok {
		fallback := domain.FailSafe(requestID, computedAt)
		fallback.ArbiterText = arbiter.RawText
		return arbiter, fallback
	}
	result.RequestID = requestID
	result.ArbiterText = arbiter.RawText
	result.ComputedAt = computedAt
	return arbiter, result
}

func parseVerdict(text string) (domain.ConsensusResult, bool) {
	var out domain.ConsensusResult

	score, ok := parseUnit(scoreRe, text)
	if !ok {
		return out, false
	}
	confidence, ok := parseUnit(confidenceRe, text)
	if !ok {
		return out, false
	}
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return out, false
	}
	action := domain.Action(strings.ToUpper(m[1]))
	if !domain.ValidAction(action) {
		return out, false
	}

	out.Score = score
	out.Action = action
	out.Confidence = confidence
	return out, true
}

func parseUnit(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}
