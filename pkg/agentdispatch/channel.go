package agentdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/codeready-toolchain/bpmflow/ent"
)

// a2aEnvelope is the request body sent to the external execution
// service: an A2A message wrapping the request text as its sole text
// part, plus the routing metadata (agent url, task id, room id) the
// original polling service attached as out-of-band options.
type a2aEnvelope struct {
	Message *a2a.Message       `json:"message"`
	Options a2aEnvelopeOptions `json:"options"`
}

type a2aEnvelopeOptions struct {
	AgentURL string `json:"agent_url"`
	TaskID   string `json:"task_id"`
	RoomID   string `json:"chat_room_id"`
	IsStream bool   `json:"is_stream"`
}

// HTTPChannel implements AgentChannel by POSTing an A2A message envelope
// to a multi-agent chat endpoint and returning the decoded response (or
// its "response" sub-field, when the envelope wraps one) as the raw
// agent response.
type HTTPChannel struct {
	ExecutionServiceURL string
	HTTPClient          *http.Client
}

var _ AgentChannel = (*HTTPChannel)(nil)

// NewHTTPChannel returns an HTTPChannel posting to baseURL with a
// 60-second timeout, matching the original polling service's
// httpx.AsyncClient call.
func NewHTTPChannel(baseURL string) *HTTPChannel {
	return &HTTPChannel{
		ExecutionServiceURL: baseURL,
		HTTPClient:          &http.Client{Timeout: 60 * time.Second},
	}
}

// Send implements AgentChannel.
func (c *HTTPChannel) Send(ctx context.Context, agentURL, procInstID, requestText string, item *ent.WorkItem) (any, error) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: requestText})
	body, err := json.Marshal(a2aEnvelope{
		Message: msg,
		Options: a2aEnvelopeOptions{
			AgentURL: agentURL,
			TaskID:   item.ID,
			RoomID:   procInstID,
			IsStream: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agentdispatch: marshal a2a envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.ExecutionServiceURL+"/multi-agent/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agentdispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentdispatch: call execution service: %w", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("agentdispatch: decode execution service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agentdispatch: execution service returned status %d: %s", resp.StatusCode, raw)
	}

	return unwrapResponse(raw), nil
}

// unwrapResponse tries to decode raw as a {"response": ...} envelope
// whose inner value is itself an A2A message (matching the request
// envelope's own wire format), and falls back first to the bare A2A
// message shape and then to a plain decoded value for execution services
// that reply with an unstructured JSON payload instead.
func unwrapResponse(raw json.RawMessage) any {
	var wrapped struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Response) > 0 {
		if msg, ok := decodeA2AMessage(wrapped.Response); ok {
			return msg
		}
		var generic any
		if err := json.Unmarshal(wrapped.Response, &generic); err == nil {
			return generic
		}
	}

	if msg, ok := decodeA2AMessage(raw); ok {
		return msg
	}

	var generic any
	_ = json.Unmarshal(raw, &generic)
	return generic
}

func decodeA2AMessage(raw json.RawMessage) (*a2a.Message, bool) {
	var msg a2a.Message
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Parts) == 0 {
		return nil, false
	}
	return &msg, true
}
