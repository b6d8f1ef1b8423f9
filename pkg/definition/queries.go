package definition

import "fmt"

// FindActivityByID returns the activity with the given id, or nil if none
// matches. Missing ids are not an error; callers treat nil as "not an
// activity" and fall through to gateway/sub-process lookups.
func (d *Definition) FindActivityByID(id string) *Activity {
	for i := range d.Activities {
		if d.Activities[i].ID == id {
			return &d.Activities[i]
		}
	}
	return nil
}

// FindSubProcessByID returns the sub-process with the given id, or nil.
func (d *Definition) FindSubProcessByID(id string) *SubProcess {
	for i := range d.SubProcs {
		if d.SubProcs[i].ID == id {
			return &d.SubProcs[i]
		}
	}
	return nil
}

// FindGatewayByID returns the gateway (or folded-in event) with the given
// id, or nil.
func (d *Definition) FindGatewayByID(id string) *Gateway {
	for i := range d.Gateways {
		if d.Gateways[i].ID == id {
			return &d.Gateways[i]
		}
	}
	return nil
}

// FindEventByID returns the gateway with the given id provided it is a
// folded-in event rather than a true gateway.
func (d *Definition) FindEventByID(id string) *Gateway {
	for i := range d.Gateways {
		if d.Gateways[i].ID == id && d.Gateways[i].IsEvent() {
			return &d.Gateways[i]
		}
	}
	return nil
}

func (d *Definition) startEvent() *Gateway {
	for i := range d.Gateways {
		if d.Gateways[i].Type == "startEvent" {
			return &d.Gateways[i]
		}
	}
	return nil
}

// IsStartingActivity reports whether the start event has a flow directly
// into activityID.
func (d *Definition) IsStartingActivity(activityID string) bool {
	start := d.startEvent()
	if start == nil {
		return false
	}
	for _, seq := range d.Sequences {
		if seq.Source == start.ID && seq.Target == activityID {
			return true
		}
	}
	return false
}

// FindInitialActivity returns the unique activity reached by the start
// event's outgoing flow. A missing start event or a start event with no
// outgoing flow to an activity is a precondition failure: execution
// cannot begin without a known first activity.
func (d *Definition) FindInitialActivity() (*Activity, error) {
	start := d.startEvent()
	if start == nil {
		return nil, fmt.Errorf("definition %s: no start event", d.ID)
	}
	for _, seq := range d.Sequences {
		if seq.Source == start.ID {
			if act := d.FindActivityByID(seq.Target); act != nil {
				return act, nil
			}
		}
	}
	return nil, fmt.Errorf("definition %s: start event %s has no outgoing flow to an activity", d.ID, start.ID)
}

// FindEndActivity returns the activity whose outgoing flow targets an end
// event, or nil if the definition has no discoverable end activity.
func (d *Definition) FindEndActivity() *Activity {
	for _, seq := range d.Sequences {
		if containsFold(seq.Target, "end_event") || containsFold(seq.Target, "endevent") {
			return d.FindActivityByID(seq.Source)
		}
	}
	// Fall back to the typed end-event gateway rather than relying on a
	// naming convention in the target id.
	for i := range d.Gateways {
		if d.Gateways[i].Type == "endEvent" {
			for _, seq := range d.Sequences {
				if seq.Target == d.Gateways[i].ID {
					if act := d.FindActivityByID(seq.Source); act != nil {
						return act
					}
				}
			}
		}
	}
	return nil
}

func containsFold(s, substr string) bool {
	return contains(toLower(s), toLower(substr))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// FindPrevActivities returns the full transitive set of upstream
// activities (gateways are traversed through but never returned),
// cycle-safe via a visited set keyed by node id.
func (d *Definition) FindPrevActivities(activityID string) []Activity {
	var result []Activity
	visited := map[string]bool{}
	d.collectPrevActivities(activityID, &result, visited)
	return result
}

func (d *Definition) collectPrevActivities(nodeID string, result *[]Activity, visited map[string]bool) {
	if visited[nodeID] {
		return
	}
	visited[nodeID] = true

	if d.FindActivityByID(nodeID) == nil && d.FindGatewayByID(nodeID) == nil {
		return
	}

	for _, seq := range d.Sequences {
		if seq.Feedback || seq.Target != nodeID {
			continue
		}
		sourceID := seq.Source
		if act := d.FindActivityByID(sourceID); act != nil {
			if !visited[sourceID] {
				appendUniqueActivity(result, *act)
			}
			d.collectPrevActivities(sourceID, result, visited)
			continue
		}
		if gw := d.FindGatewayByID(sourceID); gw != nil {
			d.collectPrevActivities(sourceID, result, visited)
		}
	}
}

func appendUniqueActivity(list *[]Activity, a Activity) {
	for _, existing := range *list {
		if existing.ID == a.ID {
			return
		}
	}
	*list = append(*list, a)
}

// FindImmediatePrevActivities returns the direct predecessor activities of
// activityID. When the immediate source is a gateway, the activities
// feeding into that gateway are returned instead (the gateway itself is
// never returned).
func (d *Definition) FindImmediatePrevActivities(activityID string) []Activity {
	var result []Activity
	for _, seq := range d.Sequences {
		if seq.Feedback || seq.Target != activityID {
			continue
		}
		d.addImmediatePrevSource(seq.Source, &result)
	}
	return result
}

func (d *Definition) addImmediatePrevSource(sourceID string, result *[]Activity) {
	if act := d.FindActivityByID(sourceID); act != nil {
		appendUniqueActivity(result, *act)
		return
	}
	gw := d.FindGatewayByID(sourceID)
	if gw == nil {
		return
	}
	for _, gwSeq := range d.Sequences {
		if gwSeq.Feedback || gwSeq.Target != gw.ID {
			continue
		}
		if gwSource := d.FindActivityByID(gwSeq.Source); gwSource != nil {
			appendUniqueActivity(result, *gwSource)
		}
	}
}

// NodeKind distinguishes the node types a forward traversal can surface.
type NodeKind string

const (
	NodeActivity   NodeKind = "activity"
	NodeSubProcess NodeKind = "subProcess"
	NodeEvent      NodeKind = "event"
)

// NodeRef is a forward-traversal result: exactly one of Activity,
// SubProcess, or Event is non-nil depending on Kind.
type NodeRef struct {
	Kind       NodeKind
	ID         string
	Activity   *Activity
	SubProcess *SubProcess
	Event      *Gateway
}

func activityRef(a *Activity) NodeRef     { return NodeRef{Kind: NodeActivity, ID: a.ID, Activity: a} }
func subProcessRef(s *SubProcess) NodeRef { return NodeRef{Kind: NodeSubProcess, ID: s.ID, SubProcess: s} }
func eventRef(e *Gateway) NodeRef         { return NodeRef{Kind: NodeEvent, ID: e.ID, Event: e} }

func containsRef(list []NodeRef, id string) bool {
	for _, n := range list {
		if n.ID == id {
			return true
		}
	}
	return false
}

// FindNextActivities returns the forward expansion of activityID: gateways
// are never returned (expansion-only); an event-based gateway contributes
// only the events directly connected to it; every other gateway expands
// through all outgoing branches. Activities and sub-processes are
// returned as-is, with their boundary events appended at the same level.
// Sub-process internals are never entered.
func (d *Definition) FindNextActivities(activityID string, includeEvents bool) []NodeRef {
	var results []NodeRef
	visited := map[string]bool{}

	var stack []string
	for _, seq := range d.Sequences {
		if !seq.Feedback && seq.Source == activityID {
			stack = append(stack, seq.Target)
		}
	}

	for len(stack) > 0 {
		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if sub := d.FindSubProcessByID(nodeID); sub != nil {
			if !containsRef(results, sub.ID) {
				results = append(results, subProcessRef(sub))
			}
			d.collectAttachedEvents(sub.AttachedEvents, &results, includeEvents, visited)
			d.expandThroughGateways(sub.ID, &results, includeEvents, visited)
			continue
		}
		if act := d.FindActivityByID(nodeID); act != nil {
			if !containsRef(results, act.ID) {
				results = append(results, activityRef(act))
			}
			d.collectAttachedEvents(act.AttachedEvents, &results, includeEvents, visited)
			d.expandThroughGateways(act.ID, &results, includeEvents, visited)
			continue
		}
		gw := d.FindGatewayByID(nodeID)
		if gw == nil {
			continue
		}
		hasEvent := false
		for _, seq2 := range d.Sequences {
			if seq2.Feedback || seq2.Source != gw.ID {
				continue
			}
			if ev := d.FindEventByID(seq2.Target); ev != nil {
				if includeEvents && !containsRef(results, ev.ID) {
					results = append(results, eventRef(ev))
				}
				hasEvent = true
			}
		}
		if !hasEvent {
			for _, seq2 := range d.Sequences {
				if !seq2.Feedback && seq2.Source == gw.ID {
					stack = append(stack, seq2.Target)
				}
			}
		}
	}
	return results
}

// collectAttachedEvents appends the activity/sub-process boundary events
// named in attached to results at the same level, recursing into any
// boundary activity's own attached events (never into a sub-process's
// internals, and never into a gateway — boundary events can't attach to
// one).
func (d *Definition) collectAttachedEvents(attached []string, results *[]NodeRef, includeEvents bool, visited map[string]bool) {
	for _, attachID := range attached {
		if visited[attachID] {
			continue
		}
		if ev := d.FindEventByID(attachID); ev != nil {
			if includeEvents && !containsRef(*results, ev.ID) {
				*results = append(*results, eventRef(ev))
			}
			continue
		}
		if sub := d.FindSubProcessByID(attachID); sub != nil {
			if !containsRef(*results, sub.ID) {
				*results = append(*results, subProcessRef(sub))
			}
			continue
		}
		if act := d.FindActivityByID(attachID); act != nil {
			if !containsRef(*results, act.ID) {
				*results = append(*results, activityRef(act))
			}
			if len(act.AttachedEvents) > 0 {
				d.collectAttachedEvents(act.AttachedEvents, results, includeEvents, visited)
			}
		}
	}
}

// expandThroughGateways continues a forward expansion from nodeID,
// collecting every downstream activity/sub-process/event without ever
// returning a gateway itself.
func (d *Definition) expandThroughGateways(nodeID string, results *[]NodeRef, includeEvents bool, visited map[string]bool) {
	if visited[nodeID] {
		return
	}
	visited[nodeID] = true

	for _, seq := range d.Sequences {
		if seq.Feedback || seq.Source != nodeID {
			continue
		}
		targetID := seq.Target

		if sub := d.FindSubProcessByID(targetID); sub != nil {
			if !containsRef(*results, sub.ID) {
				*results = append(*results, subProcessRef(sub))
			}
			d.collectAttachedEvents(sub.AttachedEvents, results, includeEvents, visited)
			d.expandThroughGateways(sub.ID, results, includeEvents, visited)
			continue
		}
		if act := d.FindActivityByID(targetID); act != nil {
			if !containsRef(*results, act.ID) {
				*results = append(*results, activityRef(act))
			}
			d.collectAttachedEvents(act.AttachedEvents, results, includeEvents, visited)
			d.expandThroughGateways(act.ID, results, includeEvents, visited)
			continue
		}
		gw := d.FindGatewayByID(targetID)
		if gw == nil {
			continue
		}
		hasEvent := false
		for _, seq2 := range d.Sequences {
			if seq2.Feedback || seq2.Source != gw.ID {
				continue
			}
			if ev := d.FindEventByID(seq2.Target); ev != nil {
				if includeEvents && !containsRef(*results, ev.ID) {
					*results = append(*results, eventRef(ev))
				}
				hasEvent = true
			}
		}
		if !hasEvent {
			d.expandThroughGateways(gw.ID, results, includeEvents, visited)
		}
	}
}

// FindAllFollowingActivities returns the transitive forward closure of
// activities downstream of activityID (gateways and sub-processes are
// traversed through but only activities are collected).
func (d *Definition) FindAllFollowingActivities(activityID string) []Activity {
	var result []Activity
	seen := map[string]bool{activityID: true}
	queue := []string{activityID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range d.FindNextActivities(id, false) {
			if n.Kind == NodeActivity && n.Activity != nil {
				appendUniqueActivity(&result, *n.Activity)
			}
			if !seen[n.ID] {
				seen[n.ID] = true
				queue = append(queue, n.ID)
			}
		}
	}
	return result
}

// FindSequences returns every flow matching the given optional source
// and/or target filter. A nil pointer means "don't filter on this
// endpoint"; passing both nil returns every sequence in the definition.
func (d *Definition) FindSequences(source, target *string) []Sequence {
	var result []Sequence
	for _, seq := range d.Sequences {
		if source != nil && seq.Source != *source {
			continue
		}
		if target != nil && seq.Target != *target {
			continue
		}
		result = append(result, seq)
	}
	return result
}

// FindAttachedActivity returns the activity that owns eventID as one of
// its boundary events, or nil.
func (d *Definition) FindAttachedActivity(eventID string) *Activity {
	for i := range d.Activities {
		for _, attached := range d.Activities[i].AttachedEvents {
			if attached == eventID {
				return &d.Activities[i]
			}
		}
	}
	return nil
}
