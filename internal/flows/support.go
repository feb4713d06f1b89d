package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/storage"
)

const (
	supportTypePrompt = "I can connect you with a research assistant for extra support, for example with " +
		"insurance, transportation, or talking to a provider. What kind of support do you need?"

	supportContactPrompt = "How would you like to be contacted?\n" +
		"1. By phone.\n" +
		"2. By email.\n" +
		"0. I'd rather not be contacted."

	supportContactRetryPrompt = "Please reply with 0, 1, or 2."

	supportDeclinedMessage = "That's completely fine. The support options are always available if you change your mind."

	supportEmailPrompt = "What email address should we use?"
	supportPhonePrompt = "What phone number should we use?"

	supportConfirmedMessage = "Thank you. A research assistant will reach out to you soon about your request."
)

// SupportResult reports the support-intake flow outcome.
type SupportResult struct {
	Outcome       Outcome
	SupportType   string
	ContactMethod string
}

// SupportIntake records a request for human support. Declining contact
// (option 0) leaves no record. Accepted requests are stored un-notified;
// the inactivity watcher alerts the research assistant later.
func (e *Engine) SupportIntake(ctx context.Context, ses Session, ch Channel) (SupportResult, error) {
	e.send(ctx, ses, ch, supportTypePrompt)
	supportType, err := ch.Recv(ctx)
	if err != nil {
		return e.supportRecvError(ctx, ses, err)
	}

	choice, err := e.askContactChoice(ctx, ses, ch)
	if err != nil {
		return e.supportRecvError(ctx, ses, err)
	}

	if choice == "0" {
		e.send(ctx, ses, ch, supportDeclinedMessage)
		return SupportResult{Outcome: OutcomeCompleted, SupportType: supportType}, nil
	}

	method := "phone"
	prompt := supportPhonePrompt
	if choice == "2" {
		method = "email"
		prompt = supportEmailPrompt
	}

	e.send(ctx, ses, ch, prompt)
	contact, err := ch.Recv(ctx)
	if err != nil {
		return e.supportRecvError(ctx, ses, err)
	}

	e.archive(ctx, ses, storage.TableSupportRequests, map[string]any{
		"user_id":        ses.UserID,
		"support_type":   supportType,
		"contact_method": method,
		"contact":        strings.TrimSpace(contact),
		"notified":       false,
	})
	e.send(ctx, ses, ch, supportConfirmedMessage)

	return SupportResult{
		Outcome:       OutcomeCompleted,
		SupportType:   supportType,
		ContactMethod: method,
	}, nil
}

// askContactChoice re-prompts until the client picks 0, 1, or 2, up
// to the clarify depth. Exhausting the depth counts as declining.
func (e *Engine) askContactChoice(ctx context.Context, ses Session, ch Channel) (string, error) {
	e.send(ctx, ses, ch, supportContactPrompt)

	for attempt := 0; attempt < e.clarifyDepth; attempt++ {
		reply, err := ch.Recv(ctx)
		if err != nil {
			return "", err
		}
		switch choice := strings.TrimSpace(reply); choice {
		case "0", "1", "2":
			return choice, nil
		}
		e.send(ctx, ses, ch, supportContactRetryPrompt)
	}
	return "0", nil
}

func (e *Engine) supportRecvError(_ context.Context, _ Session, err error) (SupportResult, error) {
	if errors.Is(err, channel.ErrRecvTimeout) {
		return SupportResult{Outcome: OutcomeAbandoned}, nil
	}
	return SupportResult{}, err
}
