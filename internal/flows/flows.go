package flows

import (
	"context"
	"log/slog"

	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/storage"
)

// Channel is the duplex conversation surface a flow talks through.
type Channel interface {
	Send(text string)
	Recv(ctx context.Context) (string, error)
}

// Classifier labels free-text replies and localizes outgoing prompts.
type Classifier interface {
	Classify(ctx context.Context, reply, language string) classify.Intent
	Translate(ctx context.Context, text, language string) string
}

// Oracle answers open questions, used for clarifying explanations and
// history summaries.
type Oracle interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Session identifies the conversation a flow runs inside.
type Session struct {
	ChatID   string
	UserID   string
	Language string
}

// Outcome reports how a scripted flow ended.
type Outcome string

const (
	OutcomeElevated  Outcome = "elevated"
	OutcomeLower     Outcome = "lower"
	OutcomeStopped   Outcome = "stopped"
	OutcomeCompleted Outcome = "completed"
	OutcomeAbandoned Outcome = "abandoned"
)

// Engine runs the scripted sub-dialogues: risk assessment, stage of
// change, and support intake. One engine serves all sessions.
type Engine struct {
	classifier   Classifier
	oracle       Oracle
	store        storage.Store
	clarifyDepth int
	log          *slog.Logger
}

func NewEngine(classifier Classifier, o Oracle, store storage.Store, clarifyDepth int, log *slog.Logger) *Engine {
	if clarifyDepth <= 0 {
		clarifyDepth = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		classifier:   classifier,
		oracle:       o,
		store:        store,
		clarifyDepth: clarifyDepth,
		log:          log,
	}
}

// send localizes text into the session language and pushes it out.
func (e *Engine) send(ctx context.Context, ses Session, ch Channel, text string) {
	ch.Send(e.classifier.Translate(ctx, text, ses.Language))
}

// archive writes a flow outcome record. Archival is best-effort; a
// storage failure never aborts a live conversation.
func (e *Engine) archive(ctx context.Context, ses Session, table string, fields map[string]any) {
	err := e.store.Insert(ctx, table, storage.Record{
		ChatID: ses.ChatID,
		Fields: fields,
	})
	if err != nil {
		e.log.Warn("failed to archive flow record", "table", table, "chat_id", ses.ChatID, "error", err)
	}
}
