package masking

import (
	"fmt"
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// compilePatterns compiles each configured MCP server's custom masking
// patterns. Patterns are keyed as "{serverID}:{index}" for diagnostics;
// only the server that declared a pattern ever has it applied.
func (s *Service) compilePatterns() {
	for serverID, serverCfg := range s.registry.GetAll() {
		if serverCfg.DataMasking == nil || !serverCfg.DataMasking.Enabled {
			continue
		}

		for i, pattern := range serverCfg.DataMasking.CustomPatterns {
			name := fmt.Sprintf("%s:%d", serverID, i)
			compiled, err := regexp.Compile(pattern.Pattern)
			if err != nil {
				slog.Error("failed to compile masking pattern, skipping",
					"pattern", name, "server", serverID, "error", err)
				continue
			}

			s.patterns[serverID] = append(s.patterns[serverID], &CompiledPattern{
				Name:        name,
				Regex:       compiled,
				Replacement: pattern.Replacement,
				Description: pattern.Description,
			})
		}
	}
}
