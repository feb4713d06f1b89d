package dialog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ToolCall is a structured capability request carried on a turn in
// place of visible text.
type ToolCall struct {
	Name     string `json:"name"`
	Argument string `json:"argument,omitempty"`
}

// Turn is one transcript entry. A turn carries either visible content
// or a tool-call envelope, never both.
type Turn struct {
	Role     Role      `json:"role"`
	Content  string    `json:"content,omitempty"`
	Envelope *ToolCall `json:"envelope,omitempty"`
	At       time.Time `json:"at"`
}

func (t Turn) IsToolCall() bool { return t.Envelope != nil }

// TextTurn builds a visible-content turn.
func TextTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, At: time.Now().UTC()}
}

// ToolTurn builds a tool-call envelope turn.
func ToolTurn(role Role, name, argument string) Turn {
	return Turn{Role: role, Envelope: &ToolCall{Name: name, Argument: argument}, At: time.Now().UTC()}
}

// Transcript is the append-only record of an exchange. It is owned by
// a single dispatcher goroutine and needs no locking.
type Transcript struct {
	turns []Turn
}

func NewTranscript() *Transcript { return &Transcript{} }

// Append validates and records a turn. Turns are immutable once
// appended.
func (tr *Transcript) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid role %q", turn.Role)
	}
	hasContent := strings.TrimSpace(turn.Content) != ""
	if hasContent && turn.Envelope != nil {
		return errors.New("turn carries both content and a tool call")
	}
	if !hasContent && turn.Envelope == nil && turn.Role != RoleTerminal {
		return errors.New("turn carries neither content nor a tool call")
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	tr.turns = append(tr.turns, turn)
	return nil
}

func (tr *Transcript) Len() int { return len(tr.turns) }

func (tr *Transcript) Last() (Turn, bool) {
	if len(tr.turns) == 0 {
		return Turn{}, false
	}
	return tr.turns[len(tr.turns)-1], true
}

// Turns returns a copy; callers cannot mutate history.
func (tr *Transcript) Turns() []Turn {
	out := make([]Turn, len(tr.turns))
	copy(out, tr.turns)
	return out
}

// LastUserMessage returns the most recent patient turn's content.
func (tr *Transcript) LastUserMessage() string {
	for i := len(tr.turns) - 1; i >= 0; i-- {
		if tr.turns[i].Role == RolePatient {
			return tr.turns[i].Content
		}
	}
	return ""
}

// Render flattens the transcript into role-prefixed lines for
// summaries and archival. Tool calls render as bracketed markers.
func (tr *Transcript) Render() string {
	var b strings.Builder
	for _, turn := range tr.turns {
		if turn.Role == RoleTerminal {
			continue
		}
		if turn.IsToolCall() {
			fmt.Fprintf(&b, "%s: [requested %s]\n", turn.Role, turn.Envelope.Name)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return b.String()
}
