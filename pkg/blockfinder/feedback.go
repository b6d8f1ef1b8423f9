// Package blockfinder infers feedback (back-edge) sequence flows over a
// loaded process definition and, given a join gateway, identifies the
// matching split and the set of nodes between them — the "block" — so
// that join semantics are correct in the presence of loops.
package blockfinder

import (
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// Strategy selects how confirmed back-edge candidates are marked as
// feedback. All three are cycle-breaking; they differ in how many edges
// they mark per run.
type Strategy string

const (
	// AllBackEdges marks every confirmed candidate in one pass. This is
	// the default and matches the reference engine's single inference
	// pass.
	AllBackEdges Strategy = "all_back_edges"
	// SingleBest marks exactly one confirmed candidate — the stable-
	// tie-break minimum by (source id, target id, flow id) — guaranteeing
	// strictly fewer simple cycles than the input without necessarily
	// reaching an acyclic graph.
	SingleBest Strategy = "single_best"
	// IterativeBreak repeatedly marks one back-edge (by the same stable
	// tie-break as SingleBest) and recomputes levels/candidates from
	// scratch until none remain, guaranteeing an acyclic result.
	IterativeBreak Strategy = "iterative_break"
)

const infLevel = 1 << 30

// InferFeedback runs feedback inference over def in place, setting
// Sequence.Feedback on every flow the strategy confirms as a back-edge.
// Must run once per loaded definition before any query relies on
// Sequence.Feedback being accurate.
func InferFeedback(def *definition.Definition, strategy Strategy) {
	switch strategy {
	case SingleBest:
		markOne(def)
	case IterativeBreak:
		for {
			if !markOne(def) {
				return
			}
		}
	default:
		markAll(def)
	}
}

// markAll computes levels and candidates once and marks every confirmed
// candidate, mirroring the reference engine's _infer_feedback_flows.
func markAll(def *definition.Definition) {
	level := computeLevels(def)
	for i := range def.Sequences {
		if def.Sequences[i].Feedback {
			continue
		}
		if isConfirmedBackEdge(def, i, level) {
			def.Sequences[i].Feedback = true
		}
	}
}

// markOne recomputes levels and candidates, then marks just the stable
// tie-break minimum confirmed candidate. Returns false if there were no
// candidates left to mark (the graph is already acyclic under the
// flows considered).
func markOne(def *definition.Definition) bool {
	level := computeLevels(def)
	best := -1
	for i := range def.Sequences {
		if def.Sequences[i].Feedback {
			continue
		}
		if !isConfirmedBackEdge(def, i, level) {
			continue
		}
		if best == -1 || isEarlierCandidate(def.Sequences[i], def.Sequences[best]) {
			best = i
		}
	}
	if best == -1 {
		return false
	}
	def.Sequences[best].Feedback = true
	return true
}

func isEarlierCandidate(a, b definition.Sequence) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.ID < b.ID
}

// computeLevels assigns a BFS level to every node reachable from the
// start node(s), following only non-feedback flows. Nodes no start node
// reaches get no entry in the returned map.
func computeLevels(def *definition.Definition) map[string]int {
	level := map[string]int{}
	starts := startNodes(def)
	if len(starts) == 0 {
		return level
	}

	queue := make([]string, 0, len(starts))
	for _, s := range starts {
		level[s] = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curLevel := level[cur]
		for _, seq := range def.Sequences {
			if seq.Feedback || seq.Source != cur {
				continue
			}
			if lv, ok := level[seq.Target]; !ok || lv > curLevel+1 {
				level[seq.Target] = curLevel + 1
				queue = append(queue, seq.Target)
			}
		}
	}
	return level
}

// startNodes picks the nodes feedback inference treats as roots: gateways
// typed as a start event, falling back to nodes with no non-feedback
// incoming flow, falling back to every node (so levels stay well-defined
// even on a malformed definition with no discoverable root).
func startNodes(def *definition.Definition) []string {
	var starts []string
	for _, gw := range def.Gateways {
		if containsLower(gw.Type, "start") {
			starts = append(starts, gw.ID)
		}
	}
	if len(starts) > 0 {
		return starts
	}

	hasIncoming := map[string]bool{}
	for _, seq := range def.Sequences {
		if !seq.Feedback {
			hasIncoming[seq.Target] = true
		}
	}
	for _, id := range allNodeIDs(def) {
		if !hasIncoming[id] {
			starts = append(starts, id)
		}
	}
	if len(starts) > 0 {
		return starts
	}
	return allNodeIDs(def)
}

func allNodeIDs(def *definition.Definition) []string {
	var ids []string
	for _, a := range def.Activities {
		ids = append(ids, a.ID)
	}
	for _, g := range def.Gateways {
		ids = append(ids, g.ID)
	}
	for _, s := range def.SubProcs {
		ids = append(ids, s.ID)
	}
	return ids
}

// isConfirmedBackEdge reports whether sequence def.Sequences[i] is a
// candidate back-edge (source level >= target level) whose removal would
// break a real cycle: the target must still be able to reach the source
// through some other non-feedback path.
func isConfirmedBackEdge(def *definition.Definition, i int, level map[string]int) bool {
	seq := def.Sequences[i]
	ls, lsOK := level[seq.Source]
	lt, ltOK := level[seq.Target]
	if !lsOK || !ltOK {
		return false
	}
	if ls < lt {
		return false
	}
	return canReachSkipping(def, seq.Target, seq.Source, i)
}

// canReachSkipping performs a forward BFS from src to dst over
// non-feedback flows, ignoring the flow at skipIndex.
func canReachSkipping(def *definition.Definition, src, dst string, skipIndex int) bool {
	if src == dst {
		return true
	}
	seen := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i, seq := range def.Sequences {
			if i == skipIndex || seq.Feedback || seq.Source != cur {
				continue
			}
			if seq.Target == dst {
				return true
			}
			if !seen[seq.Target] {
				seen[seq.Target] = true
				queue = append(queue, seq.Target)
			}
		}
	}
	return false
}

func containsLower(s, substr string) bool {
	return containsFoldHelper(s, substr)
}
