package dialog

import (
	"fmt"
)

// Policy decides which role may speak after the given one. Successor
// sets are static per policy; the dispatcher resolves ties with the
// fixed speaking order.
type Policy interface {
	Allowed(from Role) []Role
}

// Next resolves the single role that speaks after from: the allowed
// successor with the lowest speaking order.
func Next(p Policy, from Role) (Role, error) {
	allowed := p.Allowed(from)
	if len(allowed) == 0 {
		return "", fmt.Errorf("no successor allowed after %s", from)
	}
	best := allowed[0]
	for _, r := range allowed[1:] {
		if speakingOrder[r] < speakingOrder[best] {
			best = r
		}
	}
	return best, nil
}

// LinearPolicy is the default pipeline: every patient message flows
// through the assistant, then the counselor, then the exchange ends.
type LinearPolicy struct{}

func (LinearPolicy) Allowed(from Role) []Role {
	switch from {
	case RolePatient:
		return []Role{RoleAssistant}
	case RoleAssistant:
		return []Role{RoleCounselor}
	case RoleCounselor:
		return []Role{RoleTerminal}
	}
	return nil
}

// MeshPolicy allows wider fan-out while the speaking order keeps turn
// selection deterministic. The visible result matches the linear
// pipeline; the extra edges exist for experiments with alternate
// responder sets.
type MeshPolicy struct{}

func (MeshPolicy) Allowed(from Role) []Role {
	switch from {
	case RolePatient:
		return []Role{RoleCounselor, RoleAssistant}
	case RoleAssistant:
		return []Role{RoleTerminal, RoleCounselor}
	case RoleCounselor:
		return []Role{RoleTerminal}
	}
	return nil
}

// NewPolicy selects a policy by configuration name.
func NewPolicy(mode string) (Policy, error) {
	switch mode {
	case "", "linear":
		return LinearPolicy{}, nil
	case "mesh":
		return MeshPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", mode)
	}
}
