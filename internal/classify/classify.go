package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antoniostano/chia/internal/oracle"
)

// Intent is the coarse label assigned to a free-text reply inside a
// scripted flow.
type Intent string

const (
	IntentAffirmative   Intent = "affirmative"
	IntentNegative      Intent = "negative"
	IntentStop          Intent = "stop"
	IntentClarification Intent = "clarification"
	IntentUnsure        Intent = "unsure"
)

// Service classifies replies and translates prompts through the answer
// oracle. It is stateless; every call is a pure function of its inputs.
type Service struct {
	oracle          oracle.Oracle
	defaultLanguage string
	log             *slog.Logger
}

func NewService(o oracle.Oracle, defaultLanguage string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(defaultLanguage) == "" {
		defaultLanguage = "English"
	}
	return &Service{oracle: o, defaultLanguage: defaultLanguage, log: log}
}

// Classify labels a reply. Ambiguous or failed classifications come back
// as IntentUnsure, never as an error.
func (s *Service) Classify(ctx context.Context, reply, language string) Intent {
	if strings.TrimSpace(reply) == "" {
		return IntentUnsure
	}
	if language == "" {
		language = s.defaultLanguage
	}

	prompt := fmt.Sprintf(
		"In %s, classify this response as 'affirmative', 'negative', 'stop' "+
			"(if the user wants to stop or exit out of the assessment), "+
			"'clarification', or 'unsure'. Do not add extra words, just return "+
			"the classification. The response is: '%s'",
		language, reply,
	)

	answer, err := s.oracle.Ask(ctx, prompt)
	if err != nil {
		s.log.Warn("classification failed, treating as unsure", "error", err)
		return IntentUnsure
	}

	switch Intent(strings.ToLower(strings.TrimSpace(answer))) {
	case IntentAffirmative:
		return IntentAffirmative
	case IntentNegative:
		return IntentNegative
	case IntentStop:
		return IntentStop
	case IntentClarification:
		return IntentClarification
	default:
		return IntentUnsure
	}
}

// Translate renders text in the session language. Translation failures
// fall back to the original text so a conversation never stalls on it.
func (s *Service) Translate(ctx context.Context, text, language string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if language == "" || strings.EqualFold(language, s.defaultLanguage) {
		return text
	}

	prompt := fmt.Sprintf("Translate the following sentence to %s: %s", language, text)
	answer, err := s.oracle.Ask(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		s.log.Warn("translation failed, keeping original text", "language", language, "error", err)
		return text
	}
	return strings.TrimSpace(answer)
}

// DefaultLanguage reports the language used when a session declares none.
func (s *Service) DefaultLanguage() string { return s.defaultLanguage }
