package middleware

import (
	"fmt"
	"strings"

	"github.com/halcyonlabs/sentinel/internal/domain/consensus"
	"github.com/halcyonlabs/sentinel/internal/domain/research"
)

// Input validation and sanitization utilities

const (
	maxContentLen = 64 * 1024
	maxTopicLen   = 512
)

// ValidateSeverity checks the severity against the allowed values. An
// empty severity defaults to medium.
func ValidateSeverity(severity string) (consensus.Severity, error) {
	if severity == "" {
		return consensus.SeverityMedium, nil
	}
	switch s := consensus.Severity(strings.ToLower(severity)); s {
	case consensus.SeverityLow, consensus.SeverityMedium, consensus.SeverityHigh, consensus.SeverityCritical:
		return s, nil
	}
	return "", fmt.Errorf("invalid severity: %s (allowed: low, medium, high, critical)", severity)
}

// ValidatePriority checks the research priority. Empty defaults to normal.
func ValidatePriority(priority string) (research.Priority, error) {
	if priority == "" {
		return research.PriorityNormal, nil
	}
	switch p := research.Priority(strings.ToLower(priority)); p {
	case research.PriorityLow, research.PriorityNormal, research.PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority: %s (allowed: low, normal, high)", priority)
}

// ValidateContent bounds the analyzed content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if len(content) > maxContentLen {
		return fmt.Errorf("content too large: %d bytes (max %d)", len(content), maxContentLen)
	}
	return nil
}

// ValidateTopic bounds the research topic.
func ValidateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if len(topic) > maxTopicLen {
		return fmt.Errorf("topic too long: %d bytes (max %d)", len(topic), maxTopicLen)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
