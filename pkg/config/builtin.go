package config

import (
	"sync"
)

// BuiltinConfig holds all built-in configuration data.
// This provides default agents, MCP servers, and LLM providers that a
// deployment's YAML can override or extend.
type BuiltinConfig struct {
	Agents             map[string]BuiltinAgentConfig
	MCPServers         map[string]MCPServerConfig
	LLMProviders       map[string]LLMProviderConfig
	DefaultLLMProvider string
}

// BuiltinAgentConfig holds built-in agent metadata.
type BuiltinAgentConfig struct {
	Type                AgentType
	Description        string
	URL                string
	MCPServers         []string
	CustomInstructions string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Agents:             initBuiltinAgents(),
		MCPServers:         initBuiltinMCPServers(),
		LLMProviders:       initBuiltinLLMProviders(),
		DefaultLLMProvider: "anthropic-default",
	}
}

func initBuiltinAgents() map[string]BuiltinAgentConfig {
	return map[string]BuiltinAgentConfig{
		"refund-agent": {
			Description: "Handles refund and order-adjustment work items over A2A",
			URL:         "http://localhost:9101/a2a/refund-agent",
			MCPServers:  []string{"payments-server"},
		},
		"notification-agent": {
			Description: "Drafts and sends customer-facing notifications over A2A",
			URL:         "http://localhost:9102/a2a/notification-agent",
			MCPServers:  []string{"mail-server"},
		},
	}
}

func initBuiltinMCPServers() map[string]MCPServerConfig {
	return map[string]MCPServerConfig{
		"payments-server": {
			Transport: TransportConfig{
				Type:    TransportTypeStdio,
				Command: "npx",
				Args:    []string{"-y", "payments-mcp-server@latest"},
			},
			Instructions: `Use charge_card, refund_charge, and adjust_inventory tools to act
on orders. Every mutating call must be traceable back to an order id so the
compensation planner can reverse it later.`,
			DataMasking: &MaskingConfig{
				Enabled: true,
				CustomPatterns: []MaskingPattern{
					{
						Pattern:     `(?i)card[_-]?number["\']?\s*[:=]\s*["\']?(\d{12,19})["\']?`,
						Replacement: `"card_number": "[MASKED_CARD_NUMBER]"`,
						Description: "Payment card numbers",
					},
				},
			},
			Summarization: &SummarizationConfig{
				Enabled:              true,
				SizeThresholdTokens:  DefaultSizeThresholdTokens,
				SummaryMaxTokenLimit: 1000,
			},
		},
		"mail-server": {
			Transport: TransportConfig{
				Type:    TransportTypeStdio,
				Command: "npx",
				Args:    []string{"-y", "gmail-mcp-server@latest"},
			},
			Instructions: `Use send_email_tool to deliver customer notifications. Never send
a message without a subject and recipient resolved from the work item's input.`,
		},
	}
}

func initBuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"anthropic-default": {
			Type:                LLMProviderTypeAnthropic,
			Model:               "claude-sonnet-4-5-20250929",
			APIKeyEnv:           "ANTHROPIC_API_KEY",
			MaxToolResultTokens: 4096,
		},
	}
}
