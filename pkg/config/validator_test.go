package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAgents(t *testing.T) {
	tests := []struct {
		name    string
		agents  map[string]*AgentConfig
		servers map[string]*MCPServerConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid agent",
			agents: map[string]*AgentConfig{
				"test-agent": {
					MCPServers: []string{"test-server"},
				},
			},
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{Type: TransportTypeStdio, Command: "test"},
				},
			},
			wantErr: false,
		},
		{
			name: "agent with no MCP servers is valid",
			agents: map[string]*AgentConfig{
				"test-agent": {
					MCPServers: []string{},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: false,
		},
		{
			name: "agent with nil MCP servers is valid",
			agents: map[string]*AgentConfig{
				"toolless-agent": {
					MCPServers: nil,
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: false,
		},
		{
			name: "agent with invalid MCP server reference",
			agents: map[string]*AgentConfig{
				"test-agent": {
					MCPServers: []string{"nonexistent-server"},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: true,
			errMsg:  "MCP server 'nonexistent-server' not found",
		},
		{
			name: "agent with invalid type",
			agents: map[string]*AgentConfig{
				"test-agent": {
					MCPServers: []string{"test-server"},
					Type:       "invalid-type",
				},
			},
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{Type: TransportTypeStdio, Command: "test"},
				},
			},
			wantErr: true,
			errMsg:  "invalid agent type",
		},
		{
			name: "orchestrator agent with orchestrator config is valid",
			agents: map[string]*AgentConfig{
				"my-orch": {
					Type:         AgentTypeOrchestrator,
					Orchestrator: &OrchestratorConfig{MaxConcurrentAgents: intPtr(3)},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: false,
		},
		{
			name: "non-orchestrator agent with orchestrator config is invalid",
			agents: map[string]*AgentConfig{
				"regular": {
					Orchestrator: &OrchestratorConfig{MaxConcurrentAgents: intPtr(3)},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: true,
			errMsg:  "orchestrator config only valid on orchestrator agents",
		},
		{
			name: "orchestrator config with zero max_concurrent_agents",
			agents: map[string]*AgentConfig{
				"orch": {
					Type:         AgentTypeOrchestrator,
					Orchestrator: &OrchestratorConfig{MaxConcurrentAgents: intPtr(0)},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: true,
			errMsg:  "must be at least 1",
		},
		{
			name: "orchestrator config with negative agent_timeout",
			agents: map[string]*AgentConfig{
				"orch": {
					Type:         AgentTypeOrchestrator,
					Orchestrator: &OrchestratorConfig{AgentTimeout: durPtr(-1 * time.Second)},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name: "orchestrator config with zero max_budget",
			agents: map[string]*AgentConfig{
				"orch": {
					Type:         AgentTypeOrchestrator,
					Orchestrator: &OrchestratorConfig{MaxBudget: durPtr(0)},
				},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name: "orchestrator agent without orchestrator config is valid",
			agents: map[string]*AgentConfig{
				"orch": {Type: AgentTypeOrchestrator},
			},
			servers: map[string]*MCPServerConfig{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				AgentRegistry:     NewAgentRegistry(tt.agents),
				MCPServerRegistry: NewMCPServerRegistry(tt.servers),
			}

			validator := NewValidator(cfg)
			err := validator.validateAgents()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMCPServers(t *testing.T) {
	tests := []struct {
		name    string
		servers map[string]*MCPServerConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid stdio server",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type:    TransportTypeStdio,
						Command: "test-command",
					},
				},
			},
			wantErr: false,
		},
		{
			name: "valid http server",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type: TransportTypeHTTP,
						URL:  "http://example.com",
					},
				},
			},
			wantErr: false,
		},
		{
			name: "invalid transport type",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type: "invalid",
					},
				},
			},
			wantErr: true,
			errMsg:  "invalid transport type",
		},
		{
			name: "stdio server missing command",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type: TransportTypeStdio,
					},
				},
			},
			wantErr: true,
			errMsg:  "command required for stdio transport",
		},
		{
			name: "http server missing url",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type: TransportTypeHTTP,
					},
				},
			},
			wantErr: true,
			errMsg:  "url required for http transport",
		},
		{
			name: "custom pattern missing pattern field",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type:    TransportTypeStdio,
						Command: "test",
					},
					DataMasking: &MaskingConfig{
						Enabled: true,
						CustomPatterns: []MaskingPattern{
							{Replacement: "[MASKED]"},
						},
					},
				},
			},
			wantErr: true,
			errMsg:  "pattern required",
		},
		{
			name: "custom pattern missing replacement field",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type:    TransportTypeStdio,
						Command: "test",
					},
					DataMasking: &MaskingConfig{
						Enabled: true,
						CustomPatterns: []MaskingPattern{
							{Pattern: `\d+`},
						},
					},
				},
			},
			wantErr: true,
			errMsg:  "replacement required",
		},
		{
			name: "valid summarization with explicit threshold",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type:    TransportTypeStdio,
						Command: "test",
					},
					Summarization: &SummarizationConfig{
						Enabled:             true,
						SizeThresholdTokens: 5000,
					},
				},
			},
			wantErr: false,
		},
		{
			name: "invalid summarization threshold too low",
			servers: map[string]*MCPServerConfig{
				"test-server": {
					Transport: TransportConfig{
						Type:    TransportTypeStdio,
						Command: "test",
					},
					Summarization: &SummarizationConfig{
						Enabled:             true,
						SizeThresholdTokens: 50,
					},
				},
			},
			wantErr: true,
			errMsg:  "must be at least 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				MCPServerRegistry: NewMCPServerRegistry(tt.servers),
			}

			validator := NewValidator(cfg)
			err := validator.validateMCPServers()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLLMProviders(t *testing.T) {
	tests := []struct {
		name      string
		providers map[string]*LLMProviderConfig
		env       map[string]string
		wantErr   bool
		errMsg    string
	}{
		{
			name: "valid provider with API key set",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                LLMProviderTypeAnthropic,
					Model:               "test-model",
					APIKeyEnv:           "TEST_API_KEY",
					MaxToolResultTokens: 100000,
				},
			},
			env:     map[string]string{"TEST_API_KEY": "test-key"},
			wantErr: false,
		},
		{
			name: "provider with missing API key errors",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                LLMProviderTypeAnthropic,
					Model:               "test-model",
					APIKeyEnv:           "MISSING_API_KEY",
					MaxToolResultTokens: 100000,
				},
			},
			env:     map[string]string{},
			wantErr: true,
			errMsg:  "environment variable MISSING_API_KEY is not set",
		},
		{
			name: "provider with invalid type",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                "invalid",
					Model:               "test-model",
					MaxToolResultTokens: 100000,
				},
			},
			env:     map[string]string{},
			wantErr: true,
			errMsg:  "invalid provider type",
		},
		{
			name: "provider with empty model",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                LLMProviderTypeAnthropic,
					Model:               "",
					MaxToolResultTokens: 100000,
				},
			},
			env:     map[string]string{},
			wantErr: true,
			errMsg:  "model required",
		},
		{
			name: "provider with low max tokens",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                LLMProviderTypeAnthropic,
					Model:               "test-model",
					MaxToolResultTokens: 500, // Less than 1000
				},
			},
			env:     map[string]string{},
			wantErr: true,
			errMsg:  "must be at least 1000",
		},
		{
			name: "provider without api_key_env does not require an environment variable",
			providers: map[string]*LLMProviderConfig{
				"test-provider": {
					Type:                LLMProviderTypeOpenAI,
					Model:               "gpt-5",
					MaxToolResultTokens: 100000,
				},
			},
			env:     map[string]string{},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set environment variables
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := &Config{
				LLMProviderRegistry: NewLLMProviderRegistry(tt.providers),
			}

			validator := NewValidator(cfg)
			err := validator.validateLLMProviders()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("agent", "test-agent", "mcp_servers", assert.AnError)

	assert.Equal(t, "agent", err.Component)
	assert.Equal(t, "test-agent", err.ID)
	assert.Equal(t, "mcp_servers", err.Field)
	assert.Contains(t, err.Error(), "agent 'test-agent'")
	assert.Contains(t, err.Error(), "mcp_servers")
	assert.Same(t, assert.AnError, err.Unwrap())
}

// TestValidateAllFailFast tests that ValidateAll fails fast on first error
func TestValidateAllFailFast(t *testing.T) {
	// Create config with multiple validation errors:
	// - Agent references nonexistent MCP server (fails in agent validation)
	// - LLM provider has an invalid type (would fail later)
	// ValidateAll should stop at the first error.
	cfg := &Config{
		Queue: DefaultQueueConfig(),
		AgentRegistry: NewAgentRegistry(map[string]*AgentConfig{
			"bad-agent": {MCPServers: []string{"nonexistent"}},
		}),
		MCPServerRegistry: NewMCPServerRegistry(map[string]*MCPServerConfig{}),
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
			"bad-provider": {Type: "invalid"},
		}),
	}

	validator := NewValidator(cfg)
	err := validator.ValidateAll()

	// Should fail fast at agent validation (before reaching LLM provider validation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent validation failed")
	assert.Contains(t, err.Error(), "MCP server 'nonexistent' not found")
}

// TestValidateMCPServersSSETransport tests SSE transport validation
func TestValidateMCPServersSSETransport(t *testing.T) {
	tests := []struct {
		name    string
		server  *MCPServerConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid SSE server",
			server: &MCPServerConfig{
				Transport: TransportConfig{
					Type: TransportTypeSSE,
					URL:  "http://example.com/sse",
				},
			},
			wantErr: false,
		},
		{
			name: "SSE server missing URL",
			server: &MCPServerConfig{
				Transport: TransportConfig{
					Type: TransportTypeSSE,
				},
			},
			wantErr: true,
			errMsg:  "url required for sse transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				MCPServerRegistry: NewMCPServerRegistry(map[string]*MCPServerConfig{
					"test-server": tt.server,
				}),
			}

			validator := NewValidator(cfg)
			err := validator.validateMCPServers()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	tests := []struct {
		name     string
		defaults *Defaults
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "nil defaults passes",
			defaults: nil,
			wantErr:  false,
		},
		{
			name:     "empty defaults passes",
			defaults: &Defaults{},
			wantErr:  false,
		},
		{
			name:     "valid llm_provider passes",
			defaults: &Defaults{LLMProvider: "anthropic-default"},
			wantErr:  false,
		},
		{
			name:     "max_iterations at least 1 passes",
			defaults: &Defaults{MaxIterations: intPtr(3)},
			wantErr:  false,
		},
		{
			name:     "max_iterations zero fails",
			defaults: &Defaults{MaxIterations: intPtr(0)},
			wantErr:  true,
			errMsg:   "must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Defaults: tt.defaults,
				LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{
					"anthropic-default": {Type: LLMProviderTypeAnthropic, Model: "claude", MaxToolResultTokens: 100000},
				}),
			}

			validator := NewValidator(cfg)
			err := validator.validateDefaults()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDefaults_LLMProviderReference(t *testing.T) {
	cfg := &Config{
		Defaults:            &Defaults{LLMProvider: "nonexistent-provider"},
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{}),
	}

	validator := NewValidator(cfg)
	err := validator.validateDefaults()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM provider 'nonexistent-provider' not found")
}

func TestValidateDefaults_IntegrationWithValidateAll(t *testing.T) {
	// Verify validateDefaults is called as part of ValidateAll
	cfg := &Config{
		Queue:               DefaultQueueConfig(),
		AgentRegistry:       NewAgentRegistry(map[string]*AgentConfig{}),
		MCPServerRegistry:   NewMCPServerRegistry(map[string]*MCPServerConfig{}),
		LLMProviderRegistry: NewLLMProviderRegistry(map[string]*LLMProviderConfig{}),
		Defaults: &Defaults{
			LLMProvider: "nonexistent-provider",
		},
	}

	validator := NewValidator(cfg)
	err := validator.ValidateAll()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaults validation failed")
	assert.Contains(t, err.Error(), "LLM provider 'nonexistent-provider' not found")
}

func TestValidateOrchestratorDefaults(t *testing.T) {
	tests := []struct {
		name    string
		orch    *OrchestratorConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "nil orchestrator defaults is valid",
			orch:    nil,
			wantErr: false,
		},
		{
			name:    "zero max_concurrent_agents",
			orch:    &OrchestratorConfig{MaxConcurrentAgents: intPtr(0)},
			wantErr: true,
			errMsg:  "must be at least 1",
		},
		{
			name:    "negative agent_timeout",
			orch:    &OrchestratorConfig{AgentTimeout: durPtr(-5 * time.Second)},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "zero max_budget",
			orch:    &OrchestratorConfig{MaxBudget: durPtr(0)},
			wantErr: true,
			errMsg:  "must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				AgentRegistry: NewAgentRegistry(map[string]*AgentConfig{
					"orch": {Type: AgentTypeOrchestrator, Orchestrator: tt.orch},
				}),
				MCPServerRegistry: NewMCPServerRegistry(map[string]*MCPServerConfig{}),
			}

			validator := NewValidator(cfg)
			err := validator.validateAgents()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSubAgentRefs(t *testing.T) {
	baseAgents := map[string]*AgentConfig{
		"LogAnalyzer":    {Description: "Analyzes logs"},
		"MetricChecker":  {Description: "Checks metrics"},
		"MyOrchestrator": {Type: AgentTypeOrchestrator, Description: "Orchestrator"},
	}

	t.Run("valid sub-agent refs", func(t *testing.T) {
		cfg := &Config{AgentRegistry: NewAgentRegistry(baseAgents)}
		validator := NewValidator(cfg)
		err := validator.validateSubAgentRefs([]string{"LogAnalyzer", "MetricChecker"}, "agent", "orch", "sub_agents")
		assert.NoError(t, err)
	})

	t.Run("unknown agent fails", func(t *testing.T) {
		cfg := &Config{AgentRegistry: NewAgentRegistry(baseAgents)}
		validator := NewValidator(cfg)
		err := validator.validateSubAgentRefs([]string{"Ghost"}, "agent", "orch", "sub_agents")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent 'Ghost' not found")
	})

	t.Run("cannot reference orchestrator", func(t *testing.T) {
		cfg := &Config{AgentRegistry: NewAgentRegistry(baseAgents)}
		validator := NewValidator(cfg)
		err := validator.validateSubAgentRefs([]string{"MyOrchestrator"}, "agent", "orch", "sub_agents")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is an orchestrator and cannot be a sub-agent")
	})
}

func intPtr(i int) *int {
	return &i
}

func durPtr(d time.Duration) *time.Duration {
	return &d
}
