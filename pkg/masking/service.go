// Package masking redacts sensitive data in MCP tool results before it
// reaches an agent's reasoning context or gets persisted to the work item
// log.
package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/bpmflow/pkg/config"
)

// Service applies data masking to MCP tool results. Created once at
// application startup (singleton). Thread-safe and stateless aside from
// its compiled patterns.
//
// Unlike a registry of named, shareable pattern groups, every pattern here
// is scoped to the MCP server that declared it: a refund-processing server
// masking account numbers has no bearing on what a notification server
// masks, so there is no cross-server pattern vocabulary to resolve.
type Service struct {
	registry *config.MCPServerRegistry
	patterns map[string][]*CompiledPattern // serverID -> its compiled custom patterns
}

// NewService creates a masking service with compiled patterns. All patterns
// are compiled eagerly at creation time. Invalid patterns are logged and
// skipped rather than failing startup.
func NewService(registry *config.MCPServerRegistry) *Service {
	s := &Service{
		registry: registry,
		patterns: make(map[string][]*CompiledPattern),
	}

	s.compilePatterns()

	slog.Info("Masking service initialized", "servers_with_patterns", len(s.patterns))

	return s
}

// MaskToolResult applies server-specific masking to MCP tool result content.
// Returns the original content unchanged if the server has no masking
// configured, fails closed to a redaction notice only if applying the
// configured patterns would itself panic (e.g. a pathological regex).
func (s *Service) MaskToolResult(content string, serverID string) (result string) {
	if content == "" {
		return content
	}

	patterns, ok := s.patterns[serverID]
	if !ok || len(patterns) == 0 {
		return content
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("masking panicked, redacting content (fail-closed)",
				"server", serverID, "panic", r)
			result = "[REDACTED: data masking failure, tool result could not be safely processed]"
		}
	}()

	masked := content
	for _, pattern := range patterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}
	return masked
}
