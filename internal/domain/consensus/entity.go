package consensus

import (
	"time"
)

// Severity enum for inbound content
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action enum emitted by the arbiter
type Action string

const (
	ActionAllow      Action = "ALLOW"
	ActionMonitor    Action = "MONITOR"
	ActionBlock      Action = "BLOCK"
	ActionQuarantine Action = "QUARANTINE"
)

// ValidAction reports whether a is one of the four arbiter actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionAllow, ActionMonitor, ActionBlock, ActionQuarantine:
		return true
	}
	return false
}

// AnalysisRequest is one inbound piece of content. Immutable once built;
// discarded after the response is produced (only the verdict is remembered).
type AnalysisRequest struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Severity    Severity  `json:"severity"`
	Source      string    `json:"source,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// EngineAnalysis is one engine's answer (or failure) for one request.
// Failures are data, not errors: callers above the gateway never see an
// error for an unreachable engine, they see Failed=true.
type EngineAnalysis struct {
	EngineID    string    `json:"engine_id"`
	RequestID   string    `json:"request_id"`
	RawText     string    `json:"raw_text,omitempty"`
	RespondedAt time.Time `json:"responded_at"`
	Failed      bool      `json:"failed"`
	Error       string    `json:"error,omitempty"`
}

// ConsensusResult is the single verdict for a request. Exactly one is
// produced per request; under total engine failure the fail-safe values
// apply (score 0, QUARANTINE, confidence 0).
type ConsensusResult struct {
	RequestID   string    `json:"request_id"`
	Score       float64   `json:"score"`
	Action      Action    `json:"action"`
	Confidence  float64   `json:"confidence"`
	ArbiterText string    `json:"arbiter_text,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}

// FailSafe builds the fail-closed verdict used whenever quorum is not met
// or the arbiter output cannot be parsed.
func FailSafe(requestID string, at time.Time) ConsensusResult {
	return ConsensusResult{
		RequestID:  requestID,
		Score:      0,
		Action:     ActionQuarantine,
		Confidence: 0,
		ComputedAt: at,
	}
}

// Recommendation maps an action to the operator-facing advice string.
func Recommendation(a Action) string {
	switch a {
	case ActionAllow:
		return "Content appears benign. No action required."
	case ActionMonitor:
		return "Allow, but keep the source under observation and re-evaluate on repeat submissions."
	case ActionBlock:
		return "Block the content at the ingress and notify the source owner."
	case ActionQuarantine:
		return "Isolate the content and escalate for manual review before any further handling."
	}
	return "Unknown action; treat as quarantined and escalate."
}
