package counsel

import (
	"context"
	"regexp"
	"strings"

	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/tools"
)

var zipPattern = regexp.MustCompile(`\b\d{5}\b`)

// assistantResponder maps the client's message onto a capability
// request. It never produces visible text; its turns are tool-call
// envelopes the formatter keeps internal.
type assistantResponder struct {
	registry *tools.Registry
}

func (a *assistantResponder) Respond(_ context.Context, tr *dialog.Transcript) (dialog.Turn, error) {
	message := tr.LastUserMessage()
	name, argument := routeMessage(message)
	if _, ok := a.registry.Lookup(name); !ok {
		name, argument = CapAnswerQuestion, message
	}
	return dialog.ToolTurn(dialog.RoleAssistant, name, argument), nil
}

// routeMessage picks the capability for a client message. Unmatched
// messages become open questions.
func routeMessage(message string) (name, argument string) {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "assess my risk", "risk assessment", "am i at risk", "my hiv risk", "how risky"):
		return CapAssessRisk, ""
	case containsAny(lower, "ready for prep", "stage of change", "where am i with prep", "readiness"):
		return CapAssessStage, ""
	case containsAny(lower, "find a provider", "find providers", "prep provider", "clinic near", "doctor near") ||
		(zipPattern.MatchString(message) && containsAny(lower, "provider", "clinic", "near me", "prep")):
		return CapSearchProvider, zipPattern.FindString(message)
	case containsAny(lower, "right now", "right away", "urgent", "as soon as possible"):
		return CapNotifyAssistant, message
	case containsAny(lower, "talk to someone", "research assistant", "extra support", "help with insurance", "help with transportation", "need support"):
		return CapRecordSupport, ""
	case containsAny(lower, "summarize our conversation", "summarize this chat", "remember this conversation"):
		return CapSummarizeHistory, ""
	default:
		return CapAnswerQuestion, message
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
