package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/bpmflow/pkg/compensation"
)

const compensationSystemPrompt = `You write a deterministic Python reverse-action
script that undoes the side effects of a sequence of completed tool calls.

Rules:
- Define "async def run(...):" that calls "call_tool(server, tool, args)" for
  each action that must be reversed, in reverse chronological order.
- Parse every value you need from the supplied event log; never hardcode a
  value you could instead read from an event's recorded arguments.
- Only call tools present in the supplied tool-to-server map.
- A numeric mutation (e.g. "stock_quantity = stock_quantity - 20") reverses
  by negating the delta (e.g. "+20"), never by re-deriving an absolute value.
- Return only the Python source, no prose and no markdown fences.`

// Synthesizer implements compensation.CompensationSynthesizer on top of
// a reasoning Client.
type Synthesizer struct {
	Client *Client
}

var _ compensation.CompensationSynthesizer = (*Synthesizer)(nil)

// Synthesize implements compensation.CompensationSynthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, events []compensation.ToolEvent, tools compensation.ToolIndex) (string, error) {
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("reasoning: marshal compensation events: %w", err)
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return "", fmt.Errorf("reasoning: marshal tool index: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "User request that started this run: %s\n\n", query)
	fmt.Fprintf(&user, "Tool-to-server map:\n%s\n\n", toolsJSON)
	fmt.Fprintf(&user, "Event log to reverse (chronological):\n%s\n", eventsJSON)

	return s.Client.complete(ctx, compensationSystemPrompt, user.String())
}
