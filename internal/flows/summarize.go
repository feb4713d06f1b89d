package flows

import (
	"context"
	"fmt"
	"strings"
)

// SummarizeHistory condenses a transcript for long-term memory. The
// summary is never shown to the client.
func (e *Engine) SummarizeHistory(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("nothing to summarize")
	}
	prompt := "Summarize the key facts, concerns, and follow-ups from this counseling conversation " +
		"in a few sentences, for the counselor's private notes:\n" + transcript
	summary, err := e.oracle.Ask(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
