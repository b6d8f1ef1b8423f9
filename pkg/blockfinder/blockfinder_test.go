package blockfinder

import (
	"testing"

	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// parallelSplitJoinDoc: S -> A -> [parallel split] -> {B, C} -> [join] -> D -> end
const parallelSplitJoinDoc = `{
  "processDefinitionName": "Parallel",
  "processDefinitionId": "parallel_proc",
  "activities": [
    {"id": "a", "name": "A", "type": "humanTask", "description": "", "role": "r"},
    {"id": "b", "name": "B", "type": "humanTask", "description": "", "role": "r"},
    {"id": "c", "name": "C", "type": "humanTask", "description": "", "role": "r"},
    {"id": "d", "name": "D", "type": "humanTask", "description": "", "role": "r"}
  ],
  "gateways": [
    {"id": "start_event", "type": "startEvent"},
    {"id": "end_event", "type": "endEvent"},
    {"id": "gsplit", "type": "parallelGateway"},
    {"id": "gjoin", "type": "parallelGateway"}
  ],
  "sequences": [
    {"id": "s0", "source": "start_event", "target": "a"},
    {"id": "s1", "source": "a", "target": "gsplit"},
    {"id": "s2", "source": "gsplit", "target": "b"},
    {"id": "s3", "source": "gsplit", "target": "c"},
    {"id": "s4", "source": "b", "target": "gjoin"},
    {"id": "s5", "source": "c", "target": "gjoin"},
    {"id": "s6", "source": "gjoin", "target": "d"},
    {"id": "s7", "source": "d", "target": "end_event"}
  ]
}`

// loopDoc: S -> A -> B -> [XOR Gj] -> {A (loop back), C -> end}
const loopDoc = `{
  "processDefinitionName": "Loop",
  "processDefinitionId": "loop_proc",
  "activities": [
    {"id": "a", "name": "A", "type": "humanTask", "description": "", "role": "r"},
    {"id": "b", "name": "B", "type": "humanTask", "description": "", "role": "r"},
    {"id": "c", "name": "C", "type": "humanTask", "description": "", "role": "r"}
  ],
  "gateways": [
    {"id": "start_event", "type": "startEvent"},
    {"id": "end_event", "type": "endEvent"},
    {"id": "gj", "type": "exclusiveGateway"}
  ],
  "sequences": [
    {"id": "s0", "source": "start_event", "target": "a"},
    {"id": "s1", "source": "a", "target": "b"},
    {"id": "s2", "source": "b", "target": "gj"},
    {"id": "s3", "source": "gj", "target": "a"},
    {"id": "s4", "source": "gj", "target": "c"},
    {"id": "s5", "source": "c", "target": "end_event"}
  ]
}`

func mustLoad(t *testing.T, doc string) *definition.Definition {
	t.Helper()
	def, err := definition.Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return def
}

func TestFindBlockBranchCountMatchesNonFeedbackInDegree(t *testing.T) {
	def := mustLoad(t, parallelSplitJoinDoc)
	InferFeedback(def, AllBackEdges)

	block, err := FindBlock(def, "gjoin")
	if err != nil {
		t.Fatalf("FindBlock: %v", err)
	}
	if block.BranchCount != 2 {
		t.Fatalf("expected branch_count 2, got %d", block.BranchCount)
	}
	if block.StartContainerID == nil || *block.StartContainerID != "gsplit" {
		t.Fatalf("expected split gsplit, got %v", block.StartContainerID)
	}
	for _, want := range []string{"b", "c"} {
		if !containsStr(block.BlockMembers, want) {
			t.Fatalf("expected %s in block members, got %v", want, block.BlockMembers)
		}
	}
}

func TestFindBlockNeverContainsStartOrEndEvent(t *testing.T) {
	def := mustLoad(t, parallelSplitJoinDoc)
	InferFeedback(def, AllBackEdges)
	block, err := FindBlock(def, "gjoin")
	if err != nil {
		t.Fatalf("FindBlock: %v", err)
	}
	for _, id := range block.NodeIDs() {
		if id == "start_event" || id == "end_event" {
			t.Fatalf("block must never contain start/end events, got %v", block.NodeIDs())
		}
	}
}

func TestFindBlockUnknownJoinErrors(t *testing.T) {
	def := mustLoad(t, parallelSplitJoinDoc)
	if _, err := FindBlock(def, "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown join node")
	}
}

func TestInferFeedbackMarksLoopBackEdge(t *testing.T) {
	def := mustLoad(t, loopDoc)
	InferFeedback(def, AllBackEdges)

	feedbackCount := 0
	for _, seq := range def.Sequences {
		if seq.Feedback {
			feedbackCount++
			if seq.Source != "gj" || seq.Target != "a" {
				t.Fatalf("expected gj->a marked as feedback, got %s->%s", seq.Source, seq.Target)
			}
		}
	}
	if feedbackCount != 1 {
		t.Fatalf("expected exactly one feedback flow, got %d", feedbackCount)
	}
}

// TestFindBlockWithLoopExcludesLoopBody covers a loop-back gateway: gj's
// only non-feedback incoming flow is b->gj (the gj->a feedback flow does
// not count toward branch_count, so it is 1), and find_block(Gj) must
// never include A among the block members via the loop.
func TestFindBlockWithLoopExcludesLoopBody(t *testing.T) {
	def := mustLoad(t, loopDoc)
	InferFeedback(def, AllBackEdges)

	block, err := FindBlock(def, "gj")
	if err != nil {
		t.Fatalf("FindBlock: %v", err)
	}
	if containsStr(block.BlockMembers, "a") {
		t.Fatalf("loop body must not be treated as a block member via the feedback edge: %v", block.BlockMembers)
	}
}

func TestIterativeBreakProducesAcyclicGraph(t *testing.T) {
	def := mustLoad(t, loopDoc)
	InferFeedback(def, IterativeBreak)

	// Acyclic under the surviving non-feedback flows: no path from any
	// node back to itself.
	for _, seq := range def.Sequences {
		if seq.Feedback {
			continue
		}
		if canReach(def, seq.Target, seq.Source) {
			t.Fatalf("graph still has a cycle through %s->%s after iterative_break", seq.Source, seq.Target)
		}
	}
}

func TestSingleBestMarksExactlyOneEdge(t *testing.T) {
	def := mustLoad(t, loopDoc)
	InferFeedback(def, SingleBest)

	marked := 0
	for _, seq := range def.Sequences {
		if seq.Feedback {
			marked++
		}
	}
	if marked != 1 {
		t.Fatalf("expected single_best to mark exactly one edge, got %d", marked)
	}
}

func TestJoinPolicyParallel(t *testing.T) {
	p := JoinPolicy{GatewayType: "parallelGateway"}
	if p.Proceed([]string{"DONE", "TODO"}) {
		t.Fatal("parallel join must not proceed while a branch is TODO")
	}
	if !p.Proceed([]string{"DONE", "SUBMITTED"}) {
		t.Fatal("parallel join should proceed once all branches are terminal")
	}
}

func TestJoinPolicyInclusive(t *testing.T) {
	p := JoinPolicy{GatewayType: "inclusiveGateway"}
	if p.Proceed([]string{"DONE", "IN_PROGRESS"}) {
		t.Fatal("inclusive join must not proceed while a branch is IN_PROGRESS")
	}
	if !p.Proceed([]string{"DONE", "TODO"}) {
		t.Fatal("inclusive join should proceed once one branch is terminal and none IN_PROGRESS")
	}
}

func TestJoinPolicyExclusive(t *testing.T) {
	p := JoinPolicy{GatewayType: "exclusiveGateway"}
	if !p.Proceed([]string{"DONE", "IN_PROGRESS"}) {
		t.Fatal("exclusive join should proceed once any branch is terminal, ignoring others")
	}
	if p.Proceed([]string{"TODO"}) {
		t.Fatal("exclusive join must not proceed with no terminal branch")
	}
}
