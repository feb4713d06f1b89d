package dialog

import (
	"strings"
)

// rolePrefixes are labels upstream producers sometimes prepend to
// their own output. They are never shown to the client.
var rolePrefixes = []string{"counselor:", "chia:", "assistant:", "patient:"}

// wordReplacements softens clinical phrasing in outbound text.
var wordReplacements = []struct{ from, to string }{
	{"unprotected sexual intercourse", "sex"},
	{"STD", "STI"},
}

// Delivery is the formatter's verdict on one turn.
type Delivery struct {
	Text    string
	Deliver bool
	Reason  string // set when suppressed
}

// Suppression reasons surfaced to metrics.
const (
	SuppressToolCall  = "tool_call"
	SuppressDuplicate = "duplicate"
	SuppressEmpty     = "empty"
	SuppressInternal  = "internal_role"
)

// Formatter normalizes outbound turns and suppresses everything that
// must stay internal: tool-call envelopes, non-counselor chatter, and
// consecutive duplicates. One formatter serves one session.
type Formatter struct {
	lastDelivered string
}

func NewFormatter() *Formatter { return &Formatter{} }

// Format decides whether a turn reaches the client and in what shape.
func (f *Formatter) Format(turn Turn) Delivery {
	if turn.IsToolCall() {
		return Delivery{Reason: SuppressToolCall}
	}
	if turn.Role != RoleCounselor {
		return Delivery{Reason: SuppressInternal}
	}

	text := Clean(turn.Content)
	if text == "" {
		return Delivery{Reason: SuppressEmpty}
	}
	if text == f.lastDelivered {
		return Delivery{Reason: SuppressDuplicate}
	}

	f.lastDelivered = text
	return Delivery{Text: text, Deliver: true}
}

// Clean strips producer role labels and applies the outbound word
// replacements.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(text)
		for _, prefix := range rolePrefixes {
			if strings.HasPrefix(lower, prefix) {
				text = strings.TrimSpace(text[len(prefix):])
				changed = true
				break
			}
		}
	}
	for _, rep := range wordReplacements {
		text = strings.ReplaceAll(text, rep.from, rep.to)
	}
	return text
}

// IsTerminationPhrase reports whether visible content is the
// conversation-ending sentinel.
func IsTerminationPhrase(content string) bool {
	return strings.ToLower(strings.TrimSpace(content)) == "end conversation"
}
