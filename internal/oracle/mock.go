package oracle

import (
	"context"
	"fmt"
	"strings"
)

// MockOracle provides deterministic local replies when no answer service
// is configured. It understands the classification and translation prompt
// shapes well enough for the scripted flows to run end to end in dev.
type MockOracle struct{}

func NewMockOracle() *MockOracle { return &MockOracle{} }

func (o *MockOracle) Ask(ctx context.Context, question string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockAnswer(question), nil
}

func buildMockAnswer(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return "I'm listening."
	}

	lower := strings.ToLower(q)
	switch {
	case strings.Contains(lower, "classify this response"):
		return mockClassification(lower)
	case strings.Contains(lower, "translate the following sentence"):
		// Identity translation: return the text after the first colon.
		if idx := strings.Index(q, ":"); idx >= 0 {
			return strings.TrimSpace(q[idx+1:])
		}
		return q
	case strings.Contains(lower, "summarize"):
		return "We talked about HIV prevention and PrEP."
	default:
		return fmt.Sprintf("Here is what I can share: %s", q)
	}
}

func mockClassification(prompt string) string {
	// The quoted tail of the prompt is the user's reply.
	reply := prompt
	if idx := strings.LastIndex(prompt, ":"); idx >= 0 {
		reply = prompt[idx+1:]
	}
	reply = strings.Trim(strings.TrimSpace(reply), `'"`)

	switch {
	case containsAny(reply, "stop", "quit", "exit", "no more"):
		return "stop"
	case containsAny(reply, "what do you mean", "?", "explain", "clarify"):
		return "clarification"
	case containsAny(reply, "yes", "yeah", "yep", "i have", "i do"):
		return "affirmative"
	case containsAny(reply, "no", "nope", "never", "i haven't"):
		return "negative"
	default:
		return "unsure"
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
