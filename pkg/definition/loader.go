package definition

import (
	"encoding/json"
	"fmt"
)

// rawEvent matches the "events" array of a definition document, which is
// folded into the gateway collection during Load.
type rawEvent struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	Type        string         `json:"type"`
	Process     string         `json:"process"`
	Condition   map[string]any `json:"condition"`
	Properties  string         `json:"properties"`
	Description string         `json:"description"`
}

type rawGateway struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Role          string         `json:"role"`
	Type          string         `json:"type"`
	Process       string         `json:"process"`
	Condition     any            `json:"condition"`
	ConditionData []string       `json:"conditionData"`
	Description   string         `json:"description"`
	AgentMode     string         `json:"agentMode"`
	Orchestration string         `json:"orchestration"`
	Duration      int            `json:"duration"`
}

type rawActivity struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Instruction    string   `json:"instruction"`
	Role           string   `json:"role"`
	InputData      []string `json:"inputData"`
	OutputData     []string `json:"outputData"`
	Checkpoints    []string `json:"checkpoints"`
	AttachedEvents []string `json:"attachedEvents"`
	Tool           string   `json:"tool"`
	AgentMode      string   `json:"agentMode"`
	Orchestration  string   `json:"orchestration"`
	Duration       int      `json:"duration"`
	PythonCode     string   `json:"pythonCode"`
	ScriptCode     string   `json:"scriptCode"`
}

type rawSubProcess struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Role           string          `json:"role"`
	AttachedEvents []string        `json:"attachedEvents"`
	Duration       int             `json:"duration"`
	Children       json.RawMessage `json:"children"`
}

type rawSequence struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Condition  any    `json:"condition"`
	Properties any    `json:"properties"`
}

type rawRole struct {
	Name           string `json:"name"`
	Endpoint       any    `json:"endpoint"`
	ResolutionRule string `json:"resolutionRule"`
}

type rawData struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Table       string `json:"table"`
	Description string `json:"description"`
}

type rawDefinition struct {
	ProcessDefinitionName string          `json:"processDefinitionName"`
	ProcessDefinitionID   string          `json:"processDefinitionId"`
	Description           string          `json:"description"`
	Data                  []rawData       `json:"data"`
	Roles                 []rawRole       `json:"roles"`
	Activities            []rawActivity   `json:"activities"`
	SubProcesses          []rawSubProcess `json:"subProcesses"`
	Sequences             []rawSequence   `json:"sequences"`
	Gateways              []rawGateway    `json:"gateways"`
	Events                []rawEvent      `json:"events"`
}

// Load parses a process-definition JSON document and returns the typed
// graph. Events are folded into the gateway collection, and every
// activity's and gateway's SrcTrg is populated from an incoming sequence
// (see assignSrcTrg). Load does not check the
// single-start-event/single-end-event invariants from the data model.
func Load(raw []byte) (*Definition, error) {
	var rd rawDefinition
	if err := json.Unmarshal(raw, &rd); err != nil {
		return nil, fmt.Errorf("definition: decode: %w", err)
	}
	return fromRaw(rd)
}

func fromRaw(rd rawDefinition) (*Definition, error) {
	def := &Definition{
		ID:          rd.ProcessDefinitionID,
		Name:        rd.ProcessDefinitionName,
		Description: rd.Description,
	}

	for _, d := range rd.Data {
		def.Data = append(def.Data, DataDecl{
			Name: d.Name, Type: d.Type, Table: d.Table, Description: d.Description,
		})
	}
	for _, r := range rd.Roles {
		def.Roles = append(def.Roles, Role{Name: r.Name, Endpoint: r.Endpoint, ResolutionRule: r.ResolutionRule})
	}
	for _, a := range rd.Activities {
		code := a.PythonCode
		if code == "" {
			code = a.ScriptCode
		}
		def.Activities = append(def.Activities, Activity{
			ID: a.ID, Name: a.Name, Type: a.Type, Description: a.Description,
			Instruction: a.Instruction, Role: a.Role, InputData: a.InputData,
			OutputData: a.OutputData, Checkpoints: a.Checkpoints,
			AttachedEvents: a.AttachedEvents, Tool: a.Tool, AgentMode: a.AgentMode,
			Orchestration: a.Orchestration, Duration: a.Duration, ScriptCode: code,
		})
	}
	for _, s := range rd.SubProcesses {
		var children *Definition
		if len(s.Children) > 0 && string(s.Children) != "null" {
			var childRaw rawDefinition
			if err := json.Unmarshal(s.Children, &childRaw); err != nil {
				return nil, fmt.Errorf("definition: sub-process %q children: %w", s.ID, err)
			}
			child, err := fromRaw(childRaw)
			if err != nil {
				return nil, err
			}
			children = child
		}
		def.SubProcs = append(def.SubProcs, SubProcess{
			ID: s.ID, Name: s.Name, Type: s.Type, Role: s.Role,
			AttachedEvents: s.AttachedEvents, Duration: s.Duration, Children: children,
		})
	}
	for _, sq := range rd.Sequences {
		def.Sequences = append(def.Sequences, Sequence{
			ID: sq.ID, Source: sq.Source, Target: sq.Target,
			Condition:  normalizeCondition(sq.Condition),
			Properties: toMap(sq.Properties),
		})
	}
	for _, g := range rd.Gateways {
		def.Gateways = append(def.Gateways, Gateway{
			ID: g.ID, Name: g.Name, Role: g.Role, Type: g.Type, Process: g.Process,
			Condition: normalizeCondition(g.Condition), ConditionData: g.ConditionData,
			Description: g.Description, AgentMode: g.AgentMode,
			Orchestration: g.Orchestration, Duration: g.Duration,
		})
	}
	// Events are unified into the gateway collection to simplify traversal.
	for _, e := range rd.Events {
		def.Gateways = append(def.Gateways, Gateway{
			ID: e.ID, Name: e.Name, Role: e.Role, Type: e.Type, Process: e.Process,
			Condition: normalizeCondition(e.Condition), Description: e.Description,
		})
	}

	assignSrcTrg(def)
	return def, nil
}

// normalizeCondition converts an empty-string condition (as produced by
// some authoring tools) into an empty map, matching the load-time
// normalization the pydantic model performs via its root validator.
func normalizeCondition(v any) map[string]any {
	switch c := v.(type) {
	case map[string]any:
		return c
	case nil:
		return map[string]any{}
	case string:
		if c == "" {
			return map[string]any{}
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(c), &m); err == nil {
			return m
		}
		return map[string]any{}
	default:
		return map[string]any{}
	}
}

func toMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// MarshalJSON serializes the definition back into the same document shape
// Load accepts. Gateways whose type marks them as folded-in events are
// *not* re-split into a separate "events" array — Load treats both forms
// identically, so the round trip is stable either way, and keeping them
// as gateways avoids re-deriving which folded type belongs in which
// bucket.
func (d *Definition) MarshalJSON() ([]byte, error) {
	rd := rawDefinition{
		ProcessDefinitionName: d.Name,
		ProcessDefinitionID:   d.ID,
		Description:           d.Description,
	}
	for _, dd := range d.Data {
		rd.Data = append(rd.Data, rawData{Name: dd.Name, Type: dd.Type, Table: dd.Table, Description: dd.Description})
	}
	for _, r := range d.Roles {
		rd.Roles = append(rd.Roles, rawRole{Name: r.Name, Endpoint: r.Endpoint, ResolutionRule: r.ResolutionRule})
	}
	for _, a := range d.Activities {
		rd.Activities = append(rd.Activities, rawActivity{
			ID: a.ID, Name: a.Name, Type: a.Type, Description: a.Description,
			Instruction: a.Instruction, Role: a.Role, InputData: a.InputData,
			OutputData: a.OutputData, Checkpoints: a.Checkpoints,
			AttachedEvents: a.AttachedEvents, Tool: a.Tool, AgentMode: a.AgentMode,
			Orchestration: a.Orchestration, Duration: a.Duration, ScriptCode: a.ScriptCode,
		})
	}
	for _, s := range d.SubProcs {
		var children json.RawMessage
		if s.Children != nil {
			b, err := s.Children.MarshalJSON()
			if err != nil {
				return nil, err
			}
			children = b
		}
		rd.SubProcesses = append(rd.SubProcesses, rawSubProcess{
			ID: s.ID, Name: s.Name, Type: s.Type, Role: s.Role,
			AttachedEvents: s.AttachedEvents, Duration: s.Duration, Children: children,
		})
	}
	for _, sq := range d.Sequences {
		rd.Sequences = append(rd.Sequences, rawSequence{
			ID: sq.ID, Source: sq.Source, Target: sq.Target,
			Condition: sq.Condition, Properties: sq.Properties,
		})
	}
	for _, g := range d.Gateways {
		rd.Gateways = append(rd.Gateways, rawGateway{
			ID: g.ID, Name: g.Name, Role: g.Role, Type: g.Type, Process: g.Process,
			Condition: g.Condition, ConditionData: g.ConditionData,
			Description: g.Description, AgentMode: g.AgentMode,
			Orchestration: g.Orchestration, Duration: g.Duration,
		})
	}
	return json.Marshal(rd)
}

// assignSrcTrg sets SrcTrg on every activity and gateway that is the
// target of an incoming sequence, mirroring load_process_definition's
// single pass over sequences: a node with several incoming sequences
// keeps the source of the last one in document order.
func assignSrcTrg(def *Definition) {
	for _, seq := range def.Sequences {
		for i := range def.Activities {
			if def.Activities[i].ID == seq.Target {
				def.Activities[i].SrcTrg = seq.Source
			}
		}
		for i := range def.Gateways {
			if def.Gateways[i].ID == seq.Target {
				def.Gateways[i].SrcTrg = seq.Source
			}
		}
	}
}
