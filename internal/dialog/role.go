package dialog

// Role names a participant in the counseling exchange. Patient turns
// come from the client; assistant and counselor turns are produced by
// registered responders. Terminal is the pseudo-role that closes an
// exchange.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
	RoleCounselor Role = "counselor"
	RoleTerminal  Role = "terminal"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleAssistant, RoleCounselor, RoleTerminal:
		return true
	}
	return false
}

// speakingOrder breaks ties when a policy allows several successors:
// the lowest-ranked allowed role speaks.
var speakingOrder = map[Role]int{
	RoleAssistant: 0,
	RoleCounselor: 1,
	RoleTerminal:  2,
}
