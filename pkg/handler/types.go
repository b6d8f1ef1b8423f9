// Package handler implements the Work-Item Handler: it
// assembles the decision-making context for a claimed SUBMITTED work
// item, asks a pluggable NextStepAdvisor for the next-step decision,
// robustly parses and validates that decision, and streams the raw
// response into the item's log with debounced writes.
package handler

import "context"

// FieldMapping is a single process-variable write proposed by a
// decision's `fieldMappings`.
type FieldMapping struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RoleBinding updates an assignee binding for future steps.
type RoleBinding struct {
	Name           string `json:"name"`
	Endpoint       string `json:"endpoint"`
	ResolutionRule string `json:"resolutionRule,omitempty"`
}

// CompletedActivity records an activity the decision considers DONE.
type CompletedActivity struct {
	CompletedActivityID   string `json:"completedActivityId"`
	CompletedActivityName string `json:"completedActivityName,omitempty"`
	CompletedUserEmail    string `json:"completedUserEmail,omitempty"`
	Result      string `json:"result"`
	Description string `json:"description,omitempty"`
}

// NextActivity is a proposed frontier member.
type NextActivity struct {
	NextActivityID   string `json:"nextActivityId"`
	NextActivityName string `json:"nextActivityName,omitempty"`
	NextUserEmail    string `json:"nextUserEmail,omitempty"`
	Result           string `json:"result"`
	Description      string `json:"description,omitempty"`
}

// Error taxonomy values surfaced in cannotProceedErrors.
const (
	ErrProceedConditionNotMet = "PROCEED_CONDITION_NOT_MET"
	ErrSystemError            = "SYSTEM_ERROR"
	ErrDataFieldNotExist      = "DATA_FIELD_NOT_EXIST"
)

// ProceedError is one entry of the decision's cannotProceedErrors list.
type ProceedError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ReferenceInfo is a free-form key/value the decision wants surfaced in
// the instance's chat trail.
type ReferenceInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Decision is the reasoning layer's response, validated against
// decisionSchema before being applied by the resolver.
type Decision struct {
	InstanceID           string              `json:"instanceId"`
	InstanceName         string              `json:"instanceName"`
	ProcessDefinitionID  string              `json:"processDefinitionId"`
	FieldMappings        []FieldMapping      `json:"fieldMappings,omitempty"`
	RoleBindings         []RoleBinding       `json:"roleBindings,omitempty"`
	CompletedActivities  []CompletedActivity `json:"completedActivities,omitempty"`
	NextActivities       []NextActivity      `json:"nextActivities,omitempty"`
	CannotProceedErrors  []ProceedError      `json:"cannotProceedErrors,omitempty"`
	ReferenceInfo        []ReferenceInfo     `json:"referenceInfo,omitempty"`
}

// Assignee is a resolved member of a comma-joined user id.
type Assignee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	// Type is one of user, agent, a2a, external_customer, unknown.
	Type string `json:"type"`
}

// Assignee type constants.
const (
	AssigneeUser             = "user"
	AssigneeAgent            = "agent"
	AssigneeA2A              = "a2a"
	AssigneeExternalCustomer = "external_customer"
	AssigneeUnknown          = "unknown"
)

// Context is the assembled input to a NextStepAdvisor call.
type Context struct {
	InstanceID    string
	ActivityID    string
	InputData     map[string]map[string]any
	ConditionData map[string]map[string]map[string]any
	Assignees     []Assignee
	CurrentOutput map[string]any
}

// NextStepAdvisor is the reasoning-layer collaborator. Implementations
// call out to an LLM or any deterministic stub and return the raw
// textual response — parsing/validation happens in this package, not
// the advisor.
type NextStepAdvisor interface {
	Propose(ctx context.Context, c Context) (raw string, err error)
}
