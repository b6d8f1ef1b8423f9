// Package config provides configuration management for the process
// orchestration engine, including agent, MCP server, and LLM provider
// configurations.
package config

import (
	"fmt"
	"sync"
	"time"
)

// AgentConfig defines a dispatch-target agent: an external A2A endpoint
// the Agent Dispatcher (pkg/agentdispatch) can hand a work item to, plus
// the MCP servers it's allowed to use when the compensation planner
// builds its tool index.
type AgentConfig struct {
	// Agent type: default dispatch target, or an orchestrator that fans
	// out to named sub-agents.
	Type AgentType `yaml:"type,omitempty"`

	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// URL is the A2A endpoint handed to agentdispatch.Agent.
	URL string `yaml:"url,omitempty"`

	// ToolsEndpoint is an optional MCP (SSE/streamable-http) endpoint the
	// agent itself exposes for tool introspection, distinct from
	// MCPServers below: it lets agentdispatch ask the agent what tools it
	// has before a request is built, rather than routing through the
	// tenant's own MCP server registry.
	ToolsEndpoint string `yaml:"tools_endpoint,omitempty"`

	// MCP servers this agent is allowed to use
	MCPServers []string `yaml:"mcp_servers" validate:"omitempty"`

	// Custom instructions for this agent. Loaded and merged with the
	// built-in agents; pkg/agentdispatch does not read this field.
	CustomInstructions string `yaml:"custom_instructions"`

	// Max iterations for this agent, at least 1 when set. Validated only:
	// pkg/agentdispatch does not read it and retries each substep a fixed
	// three times.
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// Orchestrator-specific configuration (only valid when Type == orchestrator)
	Orchestrator *OrchestratorConfig `yaml:"orchestrator,omitempty"`
}

// OrchestratorConfig holds orchestrator-specific settings.
type OrchestratorConfig struct {
	MaxConcurrentAgents *int           `yaml:"max_concurrent_agents,omitempty"`
	AgentTimeout        *time.Duration `yaml:"agent_timeout,omitempty"`
	MaxBudget           *time.Duration `yaml:"max_budget,omitempty"`
}

// AgentRegistry stores agent configurations in memory with thread-safe access
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{
		agents: copied,
	}
}

// Get retrieves an agent configuration by name (thread-safe)
func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// GetAll returns all agent configurations (thread-safe, returns copy)
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Return a copy to prevent external modification
	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has checks if an agent exists in the registry (thread-safe)
func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.agents[name]
	return exists
}

// Len returns the number of agents in the registry (thread-safe)
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
