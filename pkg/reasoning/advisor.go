package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/bpmflow/pkg/handler"
)

const advisorSystemPrompt = `You advance a running business process by one step.
Given the process instance's current activity, its resolved input data,
the condition data of any gateway immediately downstream, its current
output, and its assignee list, decide which activities complete and
which activities become the new frontier.

Respond with a single JSON object matching this shape and nothing else:
{
  "instanceId": "...", "instanceName": "...", "processDefinitionId": "...",
  "fieldMappings": [...], "roleBindings": [...],
  "completedActivities": [{"completedActivityId": "...", "completedActivityName": "...", "completedUserEmail": "...", "result": "DONE"}],
  "nextActivities": [{"nextActivityId": "...", "nextActivityName": "...", "nextUserEmail": "..."}],
  "cannotProceedErrors": [], "referenceInfo": []
}`

// Advisor implements handler.NextStepAdvisor on top of a reasoning
// Client: it serializes the assembled context as the user turn and
// returns the model's raw text for handler.ParseDecision to extract.
type Advisor struct {
	Client *Client
}

var _ handler.NextStepAdvisor = (*Advisor)(nil)

// Propose implements handler.NextStepAdvisor.
func (a *Advisor) Propose(ctx context.Context, c handler.Context) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("reasoning: marshal advisor context: %w", err)
	}
	return a.Client.complete(ctx, advisorSystemPrompt, string(payload))
}
