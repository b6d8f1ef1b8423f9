package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/ent"
	"github.com/codeready-toolchain/bpmflow/pkg/agentdispatch"
)

const requestBuilderSystemPrompt = `You write the request text handed to an
external agent over A2A. Use the prior activities' outputs and the current
work item's input to produce a clear, self-contained instruction the agent
can act on without any further context. Return plain text only.`

const responseNormalizerSystemPrompt = `You convert an external agent's raw
response into a single JSON object of the exact shape:
{"html": "<table>...</table>", "table_data": [{"...snake_case keys...": "..."}]}

The "html" field must be a valid HTML table using <thead> and <tbody>, with
any "link"-shaped field rendered as a clickable <a href="...">. Apply this
generically — the input may describe anything, not just a fixed domain.
Return only the JSON object, no prose, no markdown fences.`

// RequestBuilder implements agentdispatch.AgentRequestBuilder.
type RequestBuilder struct {
	Client *Client
}

var _ agentdispatch.AgentRequestBuilder = (*RequestBuilder)(nil)

// BuildRequest implements agentdispatch.AgentRequestBuilder.
func (r *RequestBuilder) BuildRequest(ctx context.Context, previousOutput map[string]any, item *ent.WorkItem) (string, error) {
	prevJSON, err := json.Marshal(previousOutput)
	if err != nil {
		return "", fmt.Errorf("reasoning: marshal previous output: %w", err)
	}
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("reasoning: marshal work item: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Previous output:\n%s\n\n", prevJSON)
	fmt.Fprintf(&user, "Work item:\n%s\n", itemJSON)

	return r.Client.complete(ctx, requestBuilderSystemPrompt, user.String())
}

// ResponseNormalizer implements agentdispatch.AgentResponseNormalizer.
type ResponseNormalizer struct {
	Client *Client
}

var _ agentdispatch.AgentResponseNormalizer = (*ResponseNormalizer)(nil)

type normalizedResult struct {
	HTML      string           `json:"html"`
	TableData []map[string]any `json:"table_data"`
}

// Normalize implements agentdispatch.AgentResponseNormalizer.
func (n *ResponseNormalizer) Normalize(ctx context.Context, raw any) (agentdispatch.AgentResult, error) {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return agentdispatch.AgentResult{}, fmt.Errorf("reasoning: marshal agent response: %w", err)
	}

	text, err := n.Client.complete(ctx, responseNormalizerSystemPrompt, string(rawJSON))
	if err != nil {
		return agentdispatch.AgentResult{}, err
	}

	var parsed normalizedResult
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return agentdispatch.AgentResult{}, fmt.Errorf("reasoning: parse normalized agent response: %w", err)
	}
	return agentdispatch.AgentResult{HTML: parsed.HTML, TableData: parsed.TableData}, nil
}

// stripFences removes a wrapping ```json ... ``` or ``` ... ``` block, if
// present, the same light cleanup the original polling service applied
// before calling json.loads on an agent's output-processing response.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
