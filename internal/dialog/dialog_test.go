package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTranscriptAppendValidation(t *testing.T) {
	tr := NewTranscript()

	if err := tr.Append(TextTurn(RolePatient, "hello")); err != nil {
		t.Fatalf("Append text turn: %v", err)
	}
	if err := tr.Append(ToolTurn(RoleAssistant, "answer_question", "hello")); err != nil {
		t.Fatalf("Append tool turn: %v", err)
	}
	if err := tr.Append(Turn{Role: RoleTerminal}); err != nil {
		t.Fatalf("Append terminal turn: %v", err)
	}

	if err := tr.Append(Turn{Role: "narrator", Content: "x"}); err == nil {
		t.Error("invalid role accepted")
	}
	if err := tr.Append(Turn{Role: RolePatient}); err == nil {
		t.Error("empty non-terminal turn accepted")
	}
	both := TextTurn(RoleAssistant, "text")
	both.Envelope = &ToolCall{Name: "answer_question"}
	if err := tr.Append(both); err == nil {
		t.Error("turn with both content and tool call accepted")
	}

	if got := tr.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestTranscriptRender(t *testing.T) {
	tr := NewTranscript()
	tr.Append(TextTurn(RolePatient, "how do I get PrEP?"))
	tr.Append(ToolTurn(RoleAssistant, "answer_question", "how do I get PrEP?"))
	tr.Append(TextTurn(RoleCounselor, "Here's how to get started."))
	tr.Append(Turn{Role: RoleTerminal})

	rendered := tr.Render()
	if !strings.Contains(rendered, "patient: how do I get PrEP?") {
		t.Errorf("render missing patient line:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[requested answer_question]") {
		t.Errorf("render missing tool marker:\n%s", rendered)
	}
	if strings.Contains(rendered, "terminal") {
		t.Errorf("render includes terminal turn:\n%s", rendered)
	}
}

func TestPolicyNext(t *testing.T) {
	for _, policy := range []Policy{LinearPolicy{}, MeshPolicy{}} {
		got, err := Next(policy, RolePatient)
		if err != nil {
			t.Fatalf("Next(patient): %v", err)
		}
		if got != RoleAssistant {
			t.Errorf("%T: Next(patient) = %s, want assistant", policy, got)
		}

		got, err = Next(policy, RoleAssistant)
		if err != nil {
			t.Fatalf("Next(assistant): %v", err)
		}
		if got != RoleCounselor {
			t.Errorf("%T: Next(assistant) = %s, want counselor", policy, got)
		}

		got, err = Next(policy, RoleCounselor)
		if err != nil {
			t.Fatalf("Next(counselor): %v", err)
		}
		if got != RoleTerminal {
			t.Errorf("%T: Next(counselor) = %s, want terminal", policy, got)
		}

		if _, err := Next(policy, RoleTerminal); err == nil {
			t.Errorf("%T: Next(terminal) should fail", policy)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	if _, err := NewPolicy(""); err != nil {
		t.Errorf("NewPolicy(\"\"): %v", err)
	}
	if _, err := NewPolicy("mesh"); err != nil {
		t.Errorf("NewPolicy(mesh): %v", err)
	}
	if _, err := NewPolicy("ring"); err == nil {
		t.Error("NewPolicy(ring) should fail")
	}
}

func TestFormatterStripsRolePrefixes(t *testing.T) {
	f := NewFormatter()

	d := f.Format(TextTurn(RoleCounselor, "Counselor: CHIA: Here is my answer."))
	if !d.Deliver {
		t.Fatalf("suppressed: %s", d.Reason)
	}
	if d.Text != "Here is my answer." {
		t.Errorf("got %q", d.Text)
	}
}

func TestFormatterAppliesWordReplacements(t *testing.T) {
	f := NewFormatter()

	d := f.Format(TextTurn(RoleCounselor, "An STD can follow unprotected sexual intercourse."))
	if !d.Deliver {
		t.Fatalf("suppressed: %s", d.Reason)
	}
	if d.Text != "An STI can follow sex." {
		t.Errorf("got %q", d.Text)
	}
}

func TestFormatterSuppressesToolCallsAndInternalRoles(t *testing.T) {
	f := NewFormatter()

	if d := f.Format(ToolTurn(RoleAssistant, "assess_hiv_risk", "")); d.Deliver || d.Reason != SuppressToolCall {
		t.Errorf("tool call: %+v", d)
	}
	if d := f.Format(TextTurn(RoleAssistant, "internal note")); d.Deliver || d.Reason != SuppressInternal {
		t.Errorf("assistant text: %+v", d)
	}
	if d := f.Format(TextTurn(RoleCounselor, "   ")); d.Deliver || d.Reason != SuppressEmpty {
		t.Errorf("blank text: %+v", d)
	}
}

func TestFormatterDeduplicatesConsecutive(t *testing.T) {
	f := NewFormatter()

	first := f.Format(TextTurn(RoleCounselor, "Take care."))
	if !first.Deliver {
		t.Fatalf("first suppressed: %s", first.Reason)
	}
	second := f.Format(TextTurn(RoleCounselor, "Take care."))
	if second.Deliver || second.Reason != SuppressDuplicate {
		t.Errorf("duplicate delivered: %+v", second)
	}
	third := f.Format(TextTurn(RoleCounselor, "Anything else?"))
	if !third.Deliver {
		t.Errorf("new text suppressed: %s", third.Reason)
	}
}

func TestIsTerminationPhrase(t *testing.T) {
	if !IsTerminationPhrase("  End Conversation ") {
		t.Error("termination phrase not recognized")
	}
	if IsTerminationPhrase("end the conversation please") {
		t.Error("non-sentinel recognized as termination")
	}
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) Send(text string) { s.sent = append(s.sent, text) }

type fixedResponder struct {
	turn Turn
	errs int
}

func (r *fixedResponder) Respond(_ context.Context, _ *Transcript) (Turn, error) {
	if r.errs > 0 {
		r.errs--
		return Turn{}, errors.New("upstream unavailable")
	}
	return r.turn, nil
}

func newTestDispatcher(sender Sender, assistant, counselor Responder) *Dispatcher {
	d := NewDispatcher(LinearPolicy{}, sender, 12, nil)
	d.RegisterResponder(RoleAssistant, assistant)
	d.RegisterResponder(RoleCounselor, counselor)
	return d
}

func TestDispatcherOneVisibleOutputPerMessage(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender,
		&fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", "")},
		&fixedResponder{turn: TextTurn(RoleCounselor, "Here is what I know.")},
	)

	var suppressed []string
	d.SetSuppressHook(func(reason string) { suppressed = append(suppressed, reason) })

	if err := d.HandleUserMessage(context.Background(), "tell me about PrEP"); err != nil {
		t.Fatalf("HandleUserMessage: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Here is what I know." {
		t.Errorf("sent %v, want exactly the counselor reply", sender.sent)
	}
	if len(suppressed) != 1 || suppressed[0] != SuppressToolCall {
		t.Errorf("suppressed %v, want one tool_call", suppressed)
	}
	if d.State() != StateIdle {
		t.Errorf("state %s, want idle", d.State())
	}

	last, _ := d.Transcript().Last()
	if last.Role != RoleTerminal {
		t.Errorf("transcript does not end with terminal turn")
	}
}

func TestDispatcherRetriesOnceThenSucceeds(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender,
		&fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", ""), errs: 1},
		&fixedResponder{turn: TextTurn(RoleCounselor, "All good.")},
	)

	if err := d.HandleUserMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("HandleUserMessage: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "All good." {
		t.Errorf("sent %v", sender.sent)
	}
}

func TestDispatcherFallbackAfterRepeatedFailure(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender,
		&fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", ""), errs: 2},
		&fixedResponder{turn: TextTurn(RoleCounselor, "unused")},
	)

	if err := d.HandleUserMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("HandleUserMessage: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != FallbackMessage {
		t.Errorf("sent %v, want fallback", sender.sent)
	}
	if d.State() != StateTerminated {
		t.Errorf("state %s, want terminated after fallback", d.State())
	}
}

func TestDispatcherTerminationPhraseEndsExchangeOnly(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender,
		&fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", "")},
		&fixedResponder{turn: TextTurn(RoleCounselor, "Welcome back.")},
	)

	if err := d.HandleUserMessage(context.Background(), "end conversation"); err != nil {
		t.Fatalf("HandleUserMessage: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %v, want nothing after termination", sender.sent)
	}
	if d.State() != StateTerminated {
		t.Errorf("state %s, want terminated", d.State())
	}

	// The session stays open: the next message opens a new exchange.
	if err := d.HandleUserMessage(context.Background(), "hello again"); err != nil {
		t.Fatalf("message after termination: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Welcome back." {
		t.Errorf("sent %v, want the new exchange's reply", sender.sent)
	}
	if d.State() != StateIdle {
		t.Errorf("state %s, want idle after new exchange", d.State())
	}
}

// cyclePolicy never reaches the terminal role, so only the round
// ceiling can end an exchange.
type cyclePolicy struct{}

func (cyclePolicy) Allowed(from Role) []Role {
	switch from {
	case RolePatient, RoleCounselor:
		return []Role{RoleAssistant}
	case RoleAssistant:
		return []Role{RoleCounselor}
	default:
		return nil
	}
}

func TestDispatcherRoundCeilingBoundsOneExchange(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(cyclePolicy{}, sender, 6, nil)
	d.RegisterResponder(RoleAssistant, &fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", "")})
	d.RegisterResponder(RoleCounselor, &fixedResponder{turn: TextTurn(RoleCounselor, "reply")})

	ctx := context.Background()
	if err := d.HandleUserMessage(ctx, "one"); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if d.State() != StateTerminated {
		t.Errorf("state %s, want terminated at round ceiling", d.State())
	}
	last := sender.sent[len(sender.sent)-1]
	if !strings.Contains(last, "pause here") {
		t.Errorf("last message %q, want round-limit notice", last)
	}

	// Hitting the ceiling ends that exchange only.
	if err := d.HandleUserMessage(ctx, "two"); err != nil {
		t.Fatalf("message after ceiling: %v", err)
	}
}

func TestDispatcherCeilingCountsPerExchange(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(LinearPolicy{}, sender, 12, nil)
	d.RegisterResponder(RoleAssistant, &fixedResponder{turn: ToolTurn(RoleAssistant, "answer_question", "")})
	counselor := &sequenceResponder{}
	d.RegisterResponder(RoleCounselor, counselor)

	ctx := context.Background()
	// Far more exchanges than the ceiling would allow if rounds
	// accumulated across the session.
	for i := 0; i < 10; i++ {
		if err := d.HandleUserMessage(ctx, "another question"); err != nil {
			t.Fatalf("message %d: %v", i+1, err)
		}
		if d.State() != StateIdle {
			t.Fatalf("message %d left state %s, want idle", i+1, d.State())
		}
	}
	if len(sender.sent) != 10 {
		t.Errorf("sent %d replies, want 10: %v", len(sender.sent), sender.sent)
	}
	for _, msg := range sender.sent {
		if strings.Contains(msg, "pause here") {
			t.Errorf("round-limit notice delivered across exchanges: %q", msg)
		}
	}
}

// sequenceResponder emits distinct text per call so the deduplicator
// does not swallow replies.
type sequenceResponder struct {
	n int
}

func (r *sequenceResponder) Respond(_ context.Context, _ *Transcript) (Turn, error) {
	r.n++
	return TextTurn(RoleCounselor, fmt.Sprintf("reply %d", r.n)), nil
}
