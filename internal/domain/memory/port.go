package memory

import (
	"context"
	"time"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
)

// VerdictStore port (interface for the immune memory backing store).
// Implementations must update each entry atomically per key; a lookup
// racing another lookup on the same fingerprint counts both accesses.
type VerdictStore interface {
	// Lookup returns a snapshot of the entry and bumps its access counter.
	Lookup(ctx context.Context, fingerprint string) (*Entry, bool)
	// Record inserts or overwrites the entry for a fingerprint.
	Record(ctx context.Context, fingerprint, excerpt string, verdict consensus.ConsensusResult) error
	// Sweep evicts entries created before the horizon and returns how many
	// were removed. Eviction is the only deletion path.
	Sweep(ctx context.Context, horizon time.Time) int
	// Len reports the number of stored entries.
	Len() int
}
