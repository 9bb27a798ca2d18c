package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
)

const excerptLen = 160

// Entry is one remembered verdict, keyed by content fingerprint.
// AccessCount and LastAccessedAt mutate on every lookup; the consensus
// snapshot never changes after Record.
type Entry struct {
	Fingerprint    string                    `json:"fingerprint"`
	ContentExcerpt string                    `json:"content_excerpt"`
	Consensus      consensus.ConsensusResult `json:"consensus"`
	CreatedAt      time.Time                 `json:"created_at"`
	LastAccessedAt time.Time                 `json:"last_accessed_at"`
	AccessCount    int                       `json:"access_count"`
}

// Fingerprint hashes normalized content. Pure: the same input (and any
// whitespace/case variant of it) always yields the same fingerprint.
func Fingerprint(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Excerpt trims content to the stored excerpt length.
func Excerpt(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= excerptLen {
		return content
	}
	return content[:excerptLen]
}
