package config

// AgentType determines how an agent config is used: a default dispatch
// target, or an orchestrator that fans out to named sub-agents.
type AgentType string

const (
	AgentTypeDefault      AgentType = ""             // Regular dispatch target agent
	AgentTypeOrchestrator AgentType = "orchestrator" // Fans out to sub-agents, see OrchestratorConfig
)

// IsValid checks if the agent type is valid (empty string is valid — means default).
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeDefault, AgentTypeOrchestrator:
		return true
	default:
		return false
	}
}

// TransportType defines MCP server transport types
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses HTTP/HTTPS JSON-RPC
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events
	TransportTypeSSE TransportType = "sse"
)

// IsValid checks if the transport type is valid
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// LLMProviderType defines supported LLM providers
type LLMProviderType string

const (
	// LLMProviderTypeAnthropic is Anthropic Claude API
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	// LLMProviderTypeOpenAI is OpenAI API
	LLMProviderTypeOpenAI LLMProviderType = "openai"
)

// IsValid checks if the LLM provider type is valid
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeAnthropic, LLMProviderTypeOpenAI:
		return true
	default:
		return false
	}
}
