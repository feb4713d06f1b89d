package classify

import (
	"context"
	"errors"
	"testing"
)

type scriptedOracle struct {
	answer string
	err    error
	asked  []string
}

func (o *scriptedOracle) Ask(_ context.Context, question string) (string, error) {
	o.asked = append(o.asked, question)
	return o.answer, o.err
}

func TestClassifyMapsOracleLabels(t *testing.T) {
	cases := []struct {
		answer string
		want   Intent
	}{
		{"affirmative", IntentAffirmative},
		{"Negative", IntentNegative},
		{" stop ", IntentStop},
		{"clarification", IntentClarification},
		{"unsure", IntentUnsure},
		{"something else entirely", IntentUnsure},
	}
	for _, tc := range cases {
		o := &scriptedOracle{answer: tc.answer}
		s := NewService(o, "English", nil)
		if got := s.Classify(context.Background(), "yes", "English"); got != tc.want {
			t.Fatalf("Classify with oracle answer %q = %q, want %q", tc.answer, got, tc.want)
		}
	}
}

func TestClassifyOracleFailureIsUnsure(t *testing.T) {
	o := &scriptedOracle{err: errors.New("boom")}
	s := NewService(o, "English", nil)
	if got := s.Classify(context.Background(), "yes", "English"); got != IntentUnsure {
		t.Fatalf("Classify on oracle failure = %q, want unsure", got)
	}
}

func TestClassifyEmptyReplyIsUnsure(t *testing.T) {
	o := &scriptedOracle{answer: "affirmative"}
	s := NewService(o, "English", nil)
	if got := s.Classify(context.Background(), "   ", "English"); got != IntentUnsure {
		t.Fatalf("Classify(blank) = %q, want unsure", got)
	}
	if len(o.asked) != 0 {
		t.Fatalf("blank reply should not reach the oracle")
	}
}

func TestTranslateIdentityForDefaultLanguage(t *testing.T) {
	o := &scriptedOracle{answer: "should not be used"}
	s := NewService(o, "English", nil)
	if got := s.Translate(context.Background(), "hello", "english"); got != "hello" {
		t.Fatalf("Translate(default lang) = %q, want hello", got)
	}
	if len(o.asked) != 0 {
		t.Fatalf("default-language translation should not reach the oracle")
	}
}

func TestTranslateFallsBackOnFailure(t *testing.T) {
	o := &scriptedOracle{err: errors.New("down")}
	s := NewService(o, "English", nil)
	if got := s.Translate(context.Background(), "hello", "Spanish"); got != "hello" {
		t.Fatalf("Translate on failure = %q, want original text", got)
	}
}

func TestTranslateUsesOracleForOtherLanguages(t *testing.T) {
	o := &scriptedOracle{answer: "hola"}
	s := NewService(o, "English", nil)
	if got := s.Translate(context.Background(), "hello", "Spanish"); got != "hola" {
		t.Fatalf("Translate = %q, want hola", got)
	}
}
