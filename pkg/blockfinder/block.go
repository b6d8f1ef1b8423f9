package blockfinder

import (
	"fmt"

	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// BlockResult describes the block associated with a join node: the split
// that starts it (if one could be found), the join itself, the number of
// branches that must reconverge, and the nodes in between.
type BlockResult struct {
	StartContainerID     *string
	EndContainerID       string
	BranchCount          int
	BlockMembers         []string
	PossibleBlockMembers []string
}

// NodeIDs returns the block's member ids in a stable, de-duplicated
// order: start, block members, possible block members, end.
func (r *BlockResult) NodeIDs() []string {
	seen := map[string]bool{}
	var ordered []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	if r.StartContainerID != nil {
		add(*r.StartContainerID)
	}
	for _, id := range r.BlockMembers {
		add(id)
	}
	for _, id := range r.PossibleBlockMembers {
		add(id)
	}
	add(r.EndContainerID)
	return ordered
}

// FindBlock identifies the split/block for the join node joinID. Per
// spec: branch_count is the join's own non-feedback in-degree, or (when
// the join has fewer than two non-feedback incoming flows and its sole
// predecessor is itself a gateway) that predecessor's non-feedback
// in-degree. The split is the nearest backward node whose non-feedback
// out-degree toward the join equals branch_count. If no split can be
// found, the result still reports branch_count with empty member lists —
// it never returns an error for that case, only for an unknown join id.
func FindBlock(def *definition.Definition, joinID string) (*BlockResult, error) {
	if !nodeExists(def, joinID) {
		return nil, fmt.Errorf("blockfinder: unknown join node %q", joinID)
	}

	incoming := nonFeedbackIncoming(def, joinID)
	branchCount := len(incoming)

	var priorGateways []string
	for _, seq := range incoming {
		if isGateway(def, seq.Source) {
			priorGateways = append(priorGateways, seq.Source)
		}
	}
	if branchCount < 2 && len(priorGateways) > 0 {
		branchCount = len(nonFeedbackIncoming(def, priorGateways[0]))
	}

	start := findSplit(def, joinID, branchCount)
	if start == "" {
		return &BlockResult{
			EndContainerID: joinID,
			BranchCount:    branchCount,
		}, nil
	}

	var possibleChildren []string
	if isGateway(def, start) {
		for _, seq := range nonFeedbackOutgoing(def, start) {
			if !isGateway(def, seq.Target) && canReach(def, seq.Target, joinID) {
				possibleChildren = append(possibleChildren, seq.Target)
			}
		}
	}

	between := collectBetween(def, start, joinID)
	for _, id := range possibleChildren {
		if !containsStr(between, id) {
			between = append(between, id)
		}
	}

	startID := start
	return &BlockResult{
		StartContainerID:     &startID,
		EndContainerID:       joinID,
		BranchCount:          branchCount,
		BlockMembers:         between,
		PossibleBlockMembers: possibleChildren,
	}, nil
}

// findSplit walks backward from joinID BFS-style (ignoring feedback
// flows). For each visited node it counts how many of its non-feedback
// outgoing flows can still reach joinID; the first node (in backward BFS
// order) whose count equals branchCount and which has at least one
// outgoing flow is the split.
func findSplit(def *definition.Definition, joinID string, branchCount int) string {
	visited := map[string]bool{}
	queue := []string{joinID}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true

		outs := nonFeedbackOutgoing(def, node)
		outToJoin := 0
		for _, seq := range outs {
			if canReach(def, seq.Target, joinID) {
				outToJoin++
			}
		}
		if len(outs) > 0 && outToJoin == branchCount {
			return node
		}

		for _, seq := range nonFeedbackIncoming(def, node) {
			if !visited[seq.Source] {
				queue = append(queue, seq.Source)
			}
		}
	}
	return ""
}

// collectBetween gathers every node reachable forward from start (via
// non-feedback flows) that can still reach joinID, excluding start and
// joinID themselves.
func collectBetween(def *definition.Definition, start, joinID string) []string {
	var between []string
	visited := map[string]bool{}
	queue := []string{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		if cur != start && cur != joinID {
			between = append(between, cur)
		}
		if cur == joinID {
			continue
		}
		for _, seq := range nonFeedbackOutgoing(def, cur) {
			if visited[seq.Target] {
				continue
			}
			if seq.Target == joinID || canReach(def, seq.Target, joinID) {
				queue = append(queue, seq.Target)
			}
		}
	}
	return between
}

func canReach(def *definition.Definition, src, dst string) bool {
	if src == dst {
		return true
	}
	seen := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, seq := range nonFeedbackOutgoing(def, cur) {
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

func nonFeedbackIncoming(def *definition.Definition, id string) []definition.Sequence {
	var out []definition.Sequence
	for _, seq := range def.Sequences {
		if !seq.Feedback && seq.Target == id {
			out = append(out, seq)
		}
	}
	return out
}

func nonFeedbackOutgoing(def *definition.Definition, id string) []definition.Sequence {
	var out []definition.Sequence
	for _, seq := range def.Sequences {
		if !seq.Feedback && seq.Source == id {
			out = append(out, seq)
		}
	}
	return out
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
