package blockfinder

import (
	"github.com/codeready-toolchain/bpmflow/pkg/definition"
)

// isGateway reports whether id resolves to a true BPMN gateway (as
// opposed to an activity, sub-process, or folded-in event). Matches the
// reference engine's convention: a node is a gateway iff its type string
// contains "gateway", case-insensitively.
func isGateway(def *definition.Definition, id string) bool {
	gw := def.FindGatewayByID(id)
	if gw == nil {
		return false
	}
	return containsFoldHelper(gw.Type, "gateway")
}

func nodeExists(def *definition.Definition, id string) bool {
	if def.FindActivityByID(id) != nil {
		return true
	}
	if def.FindGatewayByID(id) != nil {
		return true
	}
	if def.FindSubProcessByID(id) != nil {
		return true
	}
	return false
}

func containsFoldHelper(s, substr string) bool {
	ls, lsub := lower(s), lower(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return true
		}
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
