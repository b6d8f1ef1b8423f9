package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	configDir := setupTestConfigDir(t)

	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.NotNil(t, cfg.AgentRegistry)
	assert.NotNil(t, cfg.MCPServerRegistry)
	assert.NotNil(t, cfg.LLMProviderRegistry)
	assert.NotNil(t, cfg.Defaults)

	assert.True(t, cfg.AgentRegistry.Has("refund-agent"))
	assert.True(t, cfg.MCPServerRegistry.Has("payments-server"))
	assert.True(t, cfg.LLMProviderRegistry.Has("anthropic-default"))

	stats := cfg.Stats()
	assert.Greater(t, stats.Agents, 0)
	assert.Greater(t, stats.MCPServers, 0)
	assert.Greater(t, stats.LLMProviders, 0)
}

func TestInitializeConfigNotFound(t *testing.T) {
	ctx := context.Background()
	_, err := Initialize(ctx, "/nonexistent/directory")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := t.TempDir()

	invalidYAML := `{{{`
	err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(invalidYAML), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeValidationFailure(t *testing.T) {
	configDir := t.TempDir()

	invalidConfig := `
agents:
  test-agent:
    mcp_servers:
      - "nonexistent-server"
`
	err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(invalidConfig), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	ctx := context.Background()
	_, err = Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "nonexistent-server")
}

func TestLoadEngineYAML(t *testing.T) {
	configDir := t.TempDir()

	config := `
defaults:
  llm_provider: "test-provider"
  max_iterations: 25

agents:
  test-agent:
    mcp_servers:
      - "test-server"
    custom_instructions: "Test instructions"

mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "test-command"
`
	err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: configDir}
	engineConfig, err := loader.loadEngineYAML()

	require.NoError(t, err)
	assert.NotNil(t, engineConfig.Defaults)
	assert.Equal(t, "test-provider", engineConfig.Defaults.LLMProvider)
	assert.Equal(t, 25, *engineConfig.Defaults.MaxIterations)
	assert.Len(t, engineConfig.Agents, 1)
	assert.Len(t, engineConfig.MCPServers, 1)
}

func TestLoadEngineYAML_OrchestratorFields(t *testing.T) {
	configDir := t.TempDir()

	config := `
defaults:
  llm_provider: "test-provider"

agents:
  worker-agent:
    description: "Worker"
    mcp_servers:
      - "test-server"
  orch-agent:
    type: orchestrator
    description: "Orchestrator"
    orchestrator:
      max_concurrent_agents: 3
      agent_timeout: 2m

mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "test-command"
`
	err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: configDir}
	cfg, err := loader.loadEngineYAML()
	require.NoError(t, err)

	orch := cfg.Agents["orch-agent"]
	assert.Equal(t, AgentTypeOrchestrator, orch.Type)
	require.NotNil(t, orch.Orchestrator)
	assert.Equal(t, 3, *orch.Orchestrator.MaxConcurrentAgents)
	assert.Nil(t, orch.Orchestrator.MaxBudget)

	worker := cfg.Agents["worker-agent"]
	assert.Equal(t, AgentType(""), worker.Type)
	assert.Equal(t, []string{"test-server"}, worker.MCPServers)
}

func TestLoadLLMProvidersYAML(t *testing.T) {
	configDir := t.TempDir()

	config := `
llm_providers:
  test-provider:
    type: anthropic
    model: test-model
    api_key_env: TEST_API_KEY
    max_tool_result_tokens: 100000
`
	err := os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: configDir}
	providers, err := loader.loadLLMProvidersYAML()

	require.NoError(t, err)
	assert.Len(t, providers, 1)
	provider := providers["test-provider"]
	assert.Equal(t, LLMProviderTypeAnthropic, provider.Type)
	assert.Equal(t, "test-model", provider.Model)
	assert.Equal(t, "TEST_API_KEY", provider.APIKeyEnv)
}

func TestEnvironmentVariableInterpolationInConfig(t *testing.T) {
	configDir := t.TempDir()

	config := `
mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "{{.TEST_COMMAND}}"
      args:
        - "{{.TEST_ARG1}}"
        - "{{.TEST_ARG2}}"
`
	err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	t.Setenv("TEST_COMMAND", "test-cmd")
	t.Setenv("TEST_ARG1", "arg1-value")
	t.Setenv("TEST_ARG2", "arg2-value")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	server, err := cfg.MCPServerRegistry.Get("test-server")
	require.NoError(t, err)
	assert.Equal(t, "test-cmd", server.Transport.Command)
	assert.Equal(t, []string{"arg1-value", "arg2-value"}, server.Transport.Args)
}

// TestLoadYAMLWithMalformedTemplates verifies that loadYAML properly handles
// malformed template syntax by passing it through to the YAML parser.
func TestLoadYAMLWithMalformedTemplates(t *testing.T) {
	tests := []struct {
		name          string
		yamlContent   string
		expectSuccess bool
		description   string
	}{
		{
			name: "malformed template but valid YAML - should succeed",
			yamlContent: `
mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "test-cmd"
      args: ["{{.UNCLOSED_VAR"]
`,
			expectSuccess: true,
			description:   "Malformed template passed through, YAML is valid",
		},
		{
			name: "valid YAML without templates - should succeed",
			yamlContent: `
mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "test-cmd"
      args: ["arg1", "arg2"]
`,
			expectSuccess: true,
			description:   "No templates, just valid YAML",
		},
		{
			name: "malformed template AND invalid YAML - should fail",
			yamlContent: `
mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "test-cmd"
      args: ["{{.UNCLOSED"
        invalid: indentation
`,
			expectSuccess: false,
			description:   "Both malformed template and invalid YAML - YAML parser catches it",
		},
		{
			name: "valid template syntax - should succeed and expand",
			yamlContent: `
mcp_servers:
  test-server:
    transport:
      type: "stdio"
      command: "{{.TEST_CMD}}"
      args: ["{{.TEST_ARG}}"]
`,
			expectSuccess: true,
			description:   "Valid template syntax should expand successfully",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testFile := filepath.Join(dir, "test.yaml")
			err := os.WriteFile(testFile, []byte(tt.yamlContent), 0644)
			require.NoError(t, err)

			t.Setenv("TEST_CMD", "expanded-cmd")
			t.Setenv("TEST_ARG", "expanded-arg")

			loader := &configLoader{configDir: dir}
			var result EngineYAMLConfig
			err = loader.loadYAML("test.yaml", &result)

			if tt.expectSuccess {
				assert.NoError(t, err, "Expected loadYAML to succeed: %s", tt.description)
				if err == nil {
					assert.NotNil(t, result.MCPServers, "MCPServers should be parsed")
				}
			} else {
				assert.Error(t, err, "Expected loadYAML to fail: %s", tt.description)
			}
		})
	}
}

// TestLoadYAMLExpandEnvIntegration verifies that loadYAML correctly calls ExpandEnv
// and receives the original data back when template parsing fails.
func TestLoadYAMLExpandEnvIntegration(t *testing.T) {
	dir := t.TempDir()

	malformedYAML := `
mcp_servers:
  server1:
    transport:
      type: "stdio"
      command: "cmd"
      args: ["{{.MALFORMED"]
`
	testFile1 := filepath.Join(dir, "malformed.yaml")
	err := os.WriteFile(testFile1, []byte(malformedYAML), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: dir}
	var result1 EngineYAMLConfig
	err = loader.loadYAML("malformed.yaml", &result1)

	assert.NoError(t, err, "loadYAML should succeed with malformed template but valid YAML")
	assert.NotNil(t, result1.MCPServers)
	assert.Contains(t, result1.MCPServers, "server1")
	assert.Equal(t, "{{.MALFORMED", result1.MCPServers["server1"].Transport.Args[0],
		"Malformed template should be preserved as literal string")

	validYAML := `
mcp_servers:
  server2:
    transport:
      type: "stdio"
      command: "{{.TEST_COMMAND}}"
      args: ["{{.TEST_ARG1}}"]
`
	testFile2 := filepath.Join(dir, "valid.yaml")
	err = os.WriteFile(testFile2, []byte(validYAML), 0644)
	require.NoError(t, err)

	t.Setenv("TEST_COMMAND", "expanded-command")
	t.Setenv("TEST_ARG1", "expanded-arg")

	var result2 EngineYAMLConfig
	err = loader.loadYAML("valid.yaml", &result2)

	assert.NoError(t, err, "loadYAML should succeed with valid template")
	assert.NotNil(t, result2.MCPServers)
	assert.Contains(t, result2.MCPServers, "server2")
	assert.Equal(t, "expanded-command", result2.MCPServers["server2"].Transport.Command,
		"Valid template should be expanded")
	assert.Equal(t, "expanded-arg", result2.MCPServers["server2"].Transport.Args[0],
		"Valid template should be expanded")
}

// TestLoadYAMLPreservesOriginalDataOnTemplateError verifies that when ExpandEnv
// returns original data due to template errors, loadYAML receives that exact data
// and the YAML parser processes it correctly.
func TestLoadYAMLPreservesOriginalDataOnTemplateError(t *testing.T) {
	dir := t.TempDir()

	yamlContent := `
mcp_servers:
  test1:
    transport:
      type: "stdio"
      command: "cmd1"
      args: ["{{.UNCLOSED"]
  test2:
    transport:
      type: "stdio"
      command: "cmd2"
      args: ["{{.VAR1", "{{.VAR2}"]
  test3:
    transport:
      type: "stdio"
      command: "cmd3"
      args: ["{{", "}}", "{{.}}"]
`
	testFile := filepath.Join(dir, "malformed-multi.yaml")
	err := os.WriteFile(testFile, []byte(yamlContent), 0644)
	require.NoError(t, err)

	t.Setenv("UNCLOSED", "should-not-appear")
	t.Setenv("VAR1", "should-not-appear")
	t.Setenv("VAR2", "should-not-appear")

	loader := &configLoader{configDir: dir}
	var result EngineYAMLConfig
	err = loader.loadYAML("malformed-multi.yaml", &result)

	require.NoError(t, err, "loadYAML should succeed when YAML structure is valid")

	assert.Equal(t, "{{.UNCLOSED", result.MCPServers["test1"].Transport.Args[0],
		"Malformed template should be preserved")
	assert.Equal(t, "{{.VAR1", result.MCPServers["test2"].Transport.Args[0],
		"Malformed template should be preserved")
	assert.Equal(t, "{{.VAR2}", result.MCPServers["test2"].Transport.Args[1],
		"Malformed template should be preserved")
	assert.Equal(t, "{{", result.MCPServers["test3"].Transport.Args[0],
		"Malformed template should be preserved")
	assert.Equal(t, "}}", result.MCPServers["test3"].Transport.Args[1],
		"Malformed template should be preserved")

	assert.NotContains(t, result.MCPServers["test1"].Transport.Args[0], "should-not-appear")
	assert.NotContains(t, result.MCPServers["test2"].Transport.Args[0], "should-not-appear")
}

// TestQueueConfigMerging verifies that partial queue config properly merges with defaults
func TestQueueConfigMerging(t *testing.T) {
	tests := []struct {
		name               string
		queueYAML          string
		expectWorkerCount  int
		expectClaimBatch   int
		expectPollInterval string
		expectJitter       string
	}{
		{
			name:               "nil queue config uses all defaults",
			queueYAML:          "",
			expectWorkerCount:  4,
			expectClaimBatch:   5,
			expectPollInterval: "5s",
			expectJitter:       "1s",
		},
		{
			name: "partial queue config merges with defaults",
			queueYAML: `
queue:
  worker_count: 10`,
			expectWorkerCount:  10,
			expectClaimBatch:   5,
			expectPollInterval: "5s",
			expectJitter:       "1s",
		},
		{
			name: "multiple fields override preserves unset defaults",
			queueYAML: `
queue:
  worker_count: 20
  claim_batch_size: 15`,
			expectWorkerCount:  20,
			expectClaimBatch:   15,
			expectPollInterval: "5s",
			expectJitter:       "1s",
		},
		{
			name: "all fields can be overridden",
			queueYAML: `
queue:
  worker_count: 3
  claim_batch_size: 10
  poll_interval: 2s
  poll_interval_jitter: 1500ms`,
			expectWorkerCount:  3,
			expectClaimBatch:   10,
			expectPollInterval: "2s",
			expectJitter:       "1.5s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configDir := t.TempDir()

			engineYAML := `
defaults:
  llm_provider: "anthropic-default"

agents: {}
mcp_servers: {}
` + tt.queueYAML

			err := os.WriteFile(filepath.Join(configDir, "engine.yaml"), []byte(engineYAML), 0644)
			require.NoError(t, err)

			err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
			require.NoError(t, err)

			t.Setenv("ANTHROPIC_API_KEY", "test-key")

			ctx := context.Background()
			cfg, err := Initialize(ctx, configDir)

			require.NoError(t, err)
			require.NotNil(t, cfg.Queue)

			assert.Equal(t, tt.expectWorkerCount, cfg.Queue.WorkerCount,
				"WorkerCount should be %d", tt.expectWorkerCount)
			assert.Equal(t, tt.expectClaimBatch, cfg.Queue.ClaimBatchSize,
				"ClaimBatchSize should be %d", tt.expectClaimBatch)
			assert.Equal(t, tt.expectPollInterval, cfg.Queue.PollInterval.String(),
				"PollInterval should be %s", tt.expectPollInterval)
			assert.Equal(t, tt.expectJitter, cfg.Queue.PollIntervalJitter.String(),
				"PollIntervalJitter should be %s", tt.expectJitter)
		})
	}
}

// Helper function to set up test config directory
func setupTestConfigDir(t *testing.T) string {
	dir := t.TempDir()

	engineYAML := `
defaults:
  llm_provider: "anthropic-default"
  max_iterations: 20

agents: {}
mcp_servers: {}
`
	err := os.WriteFile(filepath.Join(dir, "engine.yaml"), []byte(engineYAML), 0644)
	require.NoError(t, err)

	llmYAML := `
llm_providers: {}
`
	err = os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(llmYAML), 0644)
	require.NoError(t, err)

	return dir
}

func TestLoadAppliesSummarizationDefaults(t *testing.T) {
	dir := t.TempDir()

	engineYAML := `
defaults:
  llm_provider: "anthropic-default"
  max_iterations: 20
agents: {}
mcp_servers:
  my-server:
    transport:
      type: "http"
      url: "https://example.com/mcp"
    summarization:
      enabled: true
      summary_max_token_limit: 1200
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine.yaml"), []byte(engineYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte("llm_providers: {}\n"), 0644))

	cfg, err := load(context.Background(), dir)
	require.NoError(t, err)

	server, err := cfg.MCPServerRegistry.Get("my-server")
	require.NoError(t, err)
	require.NotNil(t, server.Summarization)
	assert.True(t, server.Summarization.Enabled)
	assert.Equal(t, DefaultSizeThresholdTokens, server.Summarization.SizeThresholdTokens,
		"size_threshold_tokens should default to %d when not specified", DefaultSizeThresholdTokens)
	assert.Equal(t, 1200, server.Summarization.SummaryMaxTokenLimit)
}

func TestLoadRetentionConfigMerging(t *testing.T) {
	t.Run("no retention section uses defaults", func(t *testing.T) {
		dir := setupTestConfigDir(t)

		cfg, err := load(context.Background(), dir)
		require.NoError(t, err)

		require.NotNil(t, cfg.Retention)
		assert.Equal(t, 365, cfg.Retention.SessionRetentionDays)
	})

	t.Run("partial retention section overrides defaults", func(t *testing.T) {
		dir := t.TempDir()

		engineYAML := `
retention:
  session_retention_days: 90

defaults:
  llm_provider: "anthropic-default"
agents: {}
mcp_servers: {}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "engine.yaml"), []byte(engineYAML), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte("llm_providers: {}\n"), 0644))

		cfg, err := load(context.Background(), dir)
		require.NoError(t, err)

		require.NotNil(t, cfg.Retention)
		assert.Equal(t, 90, cfg.Retention.SessionRetentionDays)
		assert.Equal(t, DefaultRetentionConfig().EventTTL, cfg.Retention.EventTTL,
			"unset fields keep the built-in default")
	})
}
