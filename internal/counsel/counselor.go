package counsel

import (
	"context"
	"fmt"

	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/tools"
)

// counselorResponder executes the assistant's capability request and
// turns its result into the session's single visible reply, localized
// into the session language.
type counselorResponder struct {
	conv *Conversation
}

func (r *counselorResponder) Respond(ctx context.Context, tr *dialog.Transcript) (dialog.Turn, error) {
	last, ok := tr.Last()
	if !ok || !last.IsToolCall() {
		return dialog.Turn{}, fmt.Errorf("counselor expects a pending capability request")
	}

	svc := r.conv.svc
	ses := r.conv.session()
	result, err := r.conv.registry.Invoke(ctx, string(last.Role), tools.Invocation{
		Name:     last.Envelope.Name,
		Argument: last.Envelope.Argument,
		ChatID:   ses.ChatID,
		UserID:   ses.UserID,
		Language: ses.Language,
	})
	if svc.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		svc.metrics.ToolInvocations.WithLabelValues(last.Envelope.Name, status).Inc()
	}
	if err != nil {
		return dialog.Turn{}, err
	}

	text := svc.classifier.Translate(ctx, result, ses.Language)
	return dialog.TextTurn(dialog.RoleCounselor, text), nil
}
