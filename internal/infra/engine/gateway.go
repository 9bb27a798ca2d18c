package engine

import (
	"context"
	"time"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
)

// Gateway sends one prepared prompt to one named engine and reports the
// outcome as data. Timeouts and connection failures come back as
// Failed=true analyses, never as errors; retries are a caller policy.
type Gateway struct {
	Client consensus.EngineClient

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewGateway(client consensus.EngineClient) *Gateway {
	return &Gateway{Client: client, Now: time.Now}
}

// Dispatch runs one engine call bounded by timeout.
func (g *Gateway) Dispatch(ctx context.Context, engineID, requestID, prompt string, timeout time.Duration) consensus.EngineAnalysis {
	now := g.Now
	if now == nil {
		now = time.Now
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := g.Client.Generate(callCtx, engineID, prompt)
	analysis := consensus.EngineAnalysis{
		EngineID:    engineID,
		RequestID:   requestID,
		RespondedAt: now(),
	}
	if err != nil {
		analysis.Failed = true
		analysis.Error = err.Error()
		return analysis
	}
	analysis.RawText = text
	return analysis
}
