// Package reasoning implements the engine's four reasoning-layer
// collaborators — the LLM as a replaceable collaborator behind a plain
// Go interface — on top of Anthropic's Claude API: next-step advice,
// compensation synthesis,
// agent request building, and agent response normalization. Every
// collaborator is a thin interface in its owning package — this
// package is one possible implementation, not a required dependency of
// the engine's core logic.
package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultModel is a stable Sonnet generation, matching the default used
// by other Anthropic-backed services in this codebase's lineage.
const defaultModel = "claude-sonnet-4-5-20250929"

const defaultMaxTokens = 4096

// Client wraps the Anthropic SDK with the one operation every
// collaborator in this package needs: send a system+user prompt pair,
// get back the model's raw text.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
}

// Config configures New.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// New returns a Client. APIKey is required; Model and MaxTokens default
// to a stable Sonnet generation and 4096 tokens.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("reasoning: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// complete sends one system prompt + one user prompt and returns the
// concatenated text of every text block in the reply.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("reasoning: messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("reasoning: model returned no text content")
	}
	return text, nil
}
