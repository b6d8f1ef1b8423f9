package blockfinder

// JoinPolicy evaluates whether a join gateway may let execution proceed,
// given the current status of every sibling branch feeding into it. It
// is consumed by the Next-Step Resolver once it has located the
// block via FindBlock.
type JoinPolicy struct {
	// GatewayType is one of "parallelGateway", "inclusiveGateway", or
	// "exclusiveGateway". Any other value is treated as exclusive — the
	// permissive single-path default.
	GatewayType string
}

var terminalStatuses = map[string]bool{
	"DONE":      true,
	"SUBMITTED": true,
	"COMPLETED": true,
}

// Proceed reports whether the join may fire given the current statuses
// of its sibling branches.
//
//   - Parallel: every branch must be terminal (DONE/SUBMITTED/COMPLETED).
//     Any TODO/PENDING/IN_PROGRESS branch blocks the join.
//   - Inclusive: at least one branch terminal, and no branch
//     IN_PROGRESS. A sibling still TODO does not block once another has
//     completed.
//   - Exclusive: at least one branch terminal is enough; IN_PROGRESS
//     siblings are ignored (single-path semantics).
func (p JoinPolicy) Proceed(branchStatuses []string) bool {
	switch p.GatewayType {
	case "parallelGateway":
		if len(branchStatuses) == 0 {
			return false
		}
		for _, s := range branchStatuses {
			if !terminalStatuses[s] {
				return false
			}
		}
		return true
	case "inclusiveGateway":
		hasTerminal := false
		for _, s := range branchStatuses {
			if s == "IN_PROGRESS" {
				return false
			}
			if terminalStatuses[s] {
				hasTerminal = true
			}
		}
		return hasTerminal
	default: // exclusiveGateway and anything else defaults to exclusive semantics
		for _, s := range branchStatuses {
			if terminalStatuses[s] {
				return true
			}
		}
		return false
	}
}
