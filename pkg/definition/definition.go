// Package definition models a loaded process definition as an in-memory
// graph and exposes the pure graph queries the rest of the engine is built
// on: predecessor/successor resolution, boundary-event attachment, and
// start/end discovery.
//
// Events are folded into the gateway collection at load time (a gateway's
// Type carries values like "startEvent", "endEvent", "boundaryTimerEvent",
// "eventBasedGateway" alongside the true gateway types "exclusiveGateway",
// "inclusiveGateway", "parallelGateway"). This mirrors how the source
// system represents BPMN events as gateways with an event-flavored type
// tag, and it lets every traversal walk a single Gateways slice instead of
// juggling two node kinds.
package definition

// Activity is a unit of work: a human task, script task, service task,
// send/receive task, manual task, or sub-process placeholder.
type Activity struct {
	ID             string
	Name           string
	Type           string
	Description    string
	Instruction    string
	Role           string
	InputData      []string
	OutputData     []string
	Checkpoints    []string
	AttachedEvents []string
	Tool           string
	AgentMode      string
	Orchestration  string
	Duration       int
	ScriptCode     string
	// SrcTrg is the id of the single immediate predecessor recorded at
	// load time, enabling O(1) lookups in simple linear regions.
	SrcTrg string
}

// SubProcess is a nested process boundary the engine does not enter; it is
// returned as an opaque node during forward/backward traversal.
type SubProcess struct {
	ID             string
	Name           string
	Type           string
	Role           string
	AttachedEvents []string
	Duration       int
	SrcTrg         string
	Children       *Definition
}

// Gateway is either a true BPMN gateway (exclusive/inclusive/parallel/
// event-based) or an event folded in at load time (start/end/boundary/
// timer). Condition holds the branch's condition expression data; it is
// never nil after loading (an empty condition string normalizes to an
// empty map).
type Gateway struct {
	ID            string
	Name          string
	Role          string
	Type          string
	Process       string
	Condition     map[string]any
	ConditionData []string
	Description   string
	AgentMode     string
	Orchestration string
	Duration      int
	SrcTrg        string
	// Sequence.Feedback marks sequence flows discovered by the block
	// finder's cycle-breaking pass; it lives on Sequence, not here, but
	// callers frequently pivot from a gateway to its incoming/outgoing
	// flows so the two are documented together.
}

// IsEvent reports whether g represents a folded-in BPMN event rather than
// a true gateway.
func (g Gateway) IsEvent() bool {
	switch g.Type {
	case "startEvent", "endEvent", "boundaryTimerEvent", "boundaryMessageEvent",
		"intermediateCatchEvent", "intermediateThrowEvent", "timerEvent":
		return true
	default:
		return contains(g.Type, "event") || contains(g.Type, "Event")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Sequence is a directed flow between two node ids (activity, gateway,
// event, or sub-process).
type Sequence struct {
	ID         string
	Source     string
	Target     string
	Condition  map[string]any
	Properties map[string]any
	// Feedback is set by the block finder's feedback-inference pass. A
	// feedback flow is a confirmed back-edge and is ignored by forward/
	// backward reachability so loops never confuse join semantics.
	Feedback bool
}

// Role binds a role name to a resolution rule or static endpoint.
type Role struct {
	Name           string
	Endpoint       any
	ResolutionRule string
}

// DataDecl declares a process-level data item (as opposed to a runtime
// variable, which lives on the instance).
type DataDecl struct {
	Name        string
	Type        string
	Table       string
	Description string
}

// Definition is the typed, loaded form of a process definition JSON
// document. All public methods are pure queries; none mutate the graph.
type Definition struct {
	ID          string
	Name        string
	Description string
	Version     int

	Data        []DataDecl
	Roles       []Role
	Activities  []Activity
	SubProcs    []SubProcess
	Sequences   []Sequence
	Gateways    []Gateway
}
