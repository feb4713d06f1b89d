package dialog

import (
	"context"
	"fmt"
	"log/slog"
)

// Dispatcher states. The dispatcher is driven by one goroutine per
// session; states exist for observability. StateTerminated is final
// for the exchange only: the next patient message starts a fresh one.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingSpeaker State = "awaiting_speaker"
	StateProducing       State = "producing"
	StateTerminated      State = "terminated"
)

// FallbackMessage is delivered when a responder fails twice in a row.
const FallbackMessage = "I'm here to help. Could you please rephrase that?"

// roundLimitMessage ends an exchange that hit the turn ceiling.
const roundLimitMessage = "We've covered a lot just now, so let's pause here. " +
	"What else can I help you with?"

// Responder produces the next turn for its role, given the transcript
// so far.
type Responder interface {
	Respond(ctx context.Context, tr *Transcript) (Turn, error)
}

// Sender delivers visible text to the client.
type Sender interface {
	Send(text string)
}

// Dispatcher runs one session's exchange loop: it appends the patient
// message, walks the speaker policy until the terminal role, and
// routes every produced turn through the formatter so at most the
// counselor's output reaches the client.
type Dispatcher struct {
	policy     Policy
	responders map[Role]Responder
	formatter  *Formatter
	sender     Sender
	maxRounds  int
	log        *slog.Logger

	state      State
	transcript *Transcript
	onSuppress func(reason string)
	translate  func(text string) string
}

func NewDispatcher(policy Policy, sender Sender, maxRounds int, log *slog.Logger) *Dispatcher {
	if maxRounds <= 0 {
		maxRounds = 12
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		policy:     policy,
		responders: make(map[Role]Responder),
		formatter:  NewFormatter(),
		sender:     sender,
		maxRounds:  maxRounds,
		log:        log,
		state:      StateIdle,
		transcript: NewTranscript(),
	}
}

// RegisterResponder binds a role to its turn producer. Must be called
// before the first message is handled.
func (d *Dispatcher) RegisterResponder(role Role, r Responder) {
	d.responders[role] = r
}

// SetSuppressHook installs an observer for turns the formatter keeps
// internal.
func (d *Dispatcher) SetSuppressHook(hook func(reason string)) {
	d.onSuppress = hook
}

// SetTranslator localizes the dispatcher's own service messages (the
// fallback and round-limit notices). Responders localize their own
// output.
func (d *Dispatcher) SetTranslator(fn func(text string) string) {
	d.translate = fn
}

func (d *Dispatcher) localized(text string) string {
	if d.translate == nil {
		return text
	}
	return d.translate(text)
}

func (d *Dispatcher) State() State            { return d.state }
func (d *Dispatcher) Transcript() *Transcript { return d.transcript }

// HandleUserMessage runs one bounded exchange for a patient message.
// It returns only on channel-level failures; responder failures are
// absorbed into the fallback reply. A terminated exchange does not end
// the session: the next message simply starts a new exchange.
func (d *Dispatcher) HandleUserMessage(ctx context.Context, content string) error {
	if IsTerminationPhrase(content) {
		_ = d.transcript.Append(TextTurn(RolePatient, content))
		d.state = StateTerminated
		return nil
	}

	if err := d.transcript.Append(TextTurn(RolePatient, content)); err != nil {
		return err
	}

	// The ceiling counts role turns within this exchange, so a cyclic
	// policy cannot spin forever.
	current := RolePatient
	rounds := 0
	for {
		d.state = StateAwaitingSpeaker
		next, err := Next(d.policy, current)
		if err != nil {
			d.state = StateIdle
			return err
		}
		if next == RoleTerminal {
			_ = d.transcript.Append(Turn{Role: RoleTerminal})
			d.state = StateIdle
			return nil
		}

		responder, ok := d.responders[next]
		if !ok {
			d.state = StateIdle
			return fmt.Errorf("no responder registered for %s", next)
		}

		rounds++
		if rounds > d.maxRounds {
			d.deliver(TextTurn(RoleCounselor, d.localized(roundLimitMessage)))
			_ = d.transcript.Append(Turn{Role: RoleTerminal})
			d.state = StateTerminated
			return nil
		}

		d.state = StateProducing
		turn, err := d.produce(ctx, next, responder)
		if err != nil {
			d.log.Warn("responder failed twice, sending fallback",
				"role", string(next), "error", err)
			d.deliver(TextTurn(RoleCounselor, d.localized(FallbackMessage)))
			_ = d.transcript.Append(Turn{Role: RoleTerminal})
			d.state = StateTerminated
			return nil
		}

		if err := d.transcript.Append(turn); err != nil {
			d.state = StateIdle
			return fmt.Errorf("append %s turn: %w", next, err)
		}
		d.deliver(turn)

		if !turn.IsToolCall() && IsTerminationPhrase(turn.Content) {
			d.state = StateTerminated
			return nil
		}
		current = next
	}
}

// produce asks a responder for its turn, retrying once.
func (d *Dispatcher) produce(ctx context.Context, role Role, r Responder) (Turn, error) {
	turn, err := r.Respond(ctx, d.transcript)
	if err != nil {
		d.log.Warn("responder failed, retrying once", "role", string(role), "error", err)
		turn, err = r.Respond(ctx, d.transcript)
		if err != nil {
			return Turn{}, err
		}
	}
	turn.Role = role
	return turn, nil
}

// deliver routes a turn through the formatter and sends it when it
// survives.
func (d *Dispatcher) deliver(turn Turn) {
	delivery := d.formatter.Format(turn)
	if !delivery.Deliver {
		if d.onSuppress != nil {
			d.onSuppress(delivery.Reason)
		}
		return
	}
	d.sender.Send(delivery.Text)
}
