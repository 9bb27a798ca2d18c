package consensus

import (
	"context"
	"time"
)

// EngineClient port (interface to the inference backend). One call per
// engine; the implementation decides which model serves which engine id.
type EngineClient interface {
	Generate(ctx context.Context, engineID, prompt string) (string, error)
}

// Dispatcher port (interface for the gateway layer). Failures come back as
// data inside the EngineAnalysis, never as errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, engineID, requestID, prompt string, timeout time.Duration) EngineAnalysis
}
