package counsel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/flows"
	"github.com/antoniostano/chia/internal/memory"
	"github.com/antoniostano/chia/internal/storage"
	"github.com/antoniostano/chia/internal/tools"
)

const flowFollowUp = "Is there anything else I can help you with today?"

// Conversation binds one session to its dispatcher, capability
// registry, and duplex channel.
type Conversation struct {
	svc        *Service
	ch         *channel.Adapter
	registry   *tools.Registry
	dispatcher *dialog.Dispatcher

	// Identity frames arrive on the ws read loop while an exchange may
	// be running; mu guards the fields both goroutines touch.
	mu            sync.Mutex
	ses           flows.Session
	memoryEnabled bool
}

// session snapshots the identity fields for one capability call.
func (c *Conversation) session() flows.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ses
}

func (c *Conversation) memoryOptIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryEnabled
}

// NewConversation builds the per-session conversation state. The
// adapter must already be open.
func (s *Service) NewConversation(ses flows.Session, ch *channel.Adapter) *Conversation {
	conv := &Conversation{svc: s, ses: ses, ch: ch}
	conv.registry = s.buildRegistry(conv)

	d := dialog.NewDispatcher(s.policy, ch, s.maxRounds, s.log)
	d.RegisterResponder(dialog.RoleAssistant, &assistantResponder{registry: conv.registry})
	d.RegisterResponder(dialog.RoleCounselor, &counselorResponder{conv: conv})
	if s.metrics != nil {
		d.SetSuppressHook(func(reason string) {
			s.metrics.SuppressedMessages.WithLabelValues(reason).Inc()
		})
	}
	d.SetTranslator(func(text string) string {
		return s.classifier.Translate(context.Background(), text, conv.session().Language)
	})
	conv.dispatcher = d
	return conv
}

// SetUserID rebinds the conversation to a client-declared identity.
func (c *Conversation) SetUserID(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ses.UserID = userID
}

// SetChatID rebinds the conversation's archival thread.
func (c *Conversation) SetChatID(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ses.ChatID = chatID
}

// SetMemoryEnabled records the client's teachability opt-in.
func (c *Conversation) SetMemoryEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memoryEnabled = enabled
}

// HandleMessage runs one exchange for a client message.
func (c *Conversation) HandleMessage(ctx context.Context, content string) error {
	return c.dispatcher.HandleUserMessage(ctx, content)
}

// Terminated reports whether the last exchange ended in the terminated
// state. The conversation itself stays open for the next message.
func (c *Conversation) Terminated() bool {
	return c.dispatcher.State() == dialog.StateTerminated
}

// Archive persists the transcript and, when the client opted in, a
// memo summarizing the conversation. Called once when the session
// ends.
func (c *Conversation) Archive(ctx context.Context) {
	rendered := c.dispatcher.Transcript().Render()
	if strings.TrimSpace(rendered) == "" {
		return
	}
	ses := c.session()

	err := c.svc.store.Insert(ctx, storage.TableTranscripts, storage.Record{
		ChatID: ses.ChatID,
		Fields: map[string]any{
			"user_id":    ses.UserID,
			"language":   ses.Language,
			"transcript": rendered,
		},
	})
	if err != nil {
		c.svc.log.Warn("transcript archival failed", "chat_id", ses.ChatID, "error", err)
	}

	if !c.memoryOptIn() || c.svc.memos == nil {
		return
	}
	summary, err := c.svc.engine.SummarizeHistory(ctx, rendered)
	if err != nil {
		c.svc.log.Warn("history summary failed", "chat_id", ses.ChatID, "error", err)
		return
	}
	err = c.svc.memos.Save(ctx, memory.Memo{
		UserID: ses.UserID,
		ChatID: ses.ChatID,
		Text:   summary,
	})
	if err != nil {
		c.svc.log.Warn("memo save failed", "chat_id", ses.ChatID, "error", err)
	}
}

// Capability handlers. Each runs as the counselor on an assistant
// request; the returned text becomes the counselor's visible reply.

func (c *Conversation) answerQuestion(ctx context.Context, inv tools.Invocation) (string, error) {
	answer, err := c.svc.askOracle(ctx, c, inv.Argument)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}

func (c *Conversation) assessRisk(ctx context.Context, _ tools.Invocation) (string, error) {
	result, err := c.svc.engine.RiskAssessment(ctx, c.session(), c.ch)
	if err != nil {
		return "", fmt.Errorf("risk assessment: %w", err)
	}
	c.countFlow("risk_assessment", result.Outcome)
	return flowFollowUp, nil
}

func (c *Conversation) assessStage(ctx context.Context, _ tools.Invocation) (string, error) {
	result, err := c.svc.engine.StageOfChange(ctx, c.session(), c.ch)
	if err != nil {
		return "", fmt.Errorf("stage of change: %w", err)
	}
	c.countFlow("stage_of_change", result.Outcome)
	return flowFollowUp, nil
}

func (c *Conversation) searchProvider(ctx context.Context, inv tools.Invocation) (string, error) {
	zip := strings.TrimSpace(inv.Argument)
	if zip == "" {
		return "Could you share your ZIP code so I can look up providers near you?", nil
	}
	listing, err := c.svc.locator.Lookup(ctx, zip, c.session().Language)
	if err != nil {
		return "", fmt.Errorf("provider lookup: %w", err)
	}
	return listing, nil
}

func (c *Conversation) recordSupport(ctx context.Context, _ tools.Invocation) (string, error) {
	result, err := c.svc.engine.SupportIntake(ctx, c.session(), c.ch)
	if err != nil {
		return "", fmt.Errorf("support intake: %w", err)
	}
	c.countFlow("support_intake", result.Outcome)
	return flowFollowUp, nil
}

func (c *Conversation) notifyAssistant(ctx context.Context, inv tools.Invocation) (string, error) {
	if c.svc.notifier == nil {
		return "I've flagged your conversation for a research assistant. Someone will reach out soon.", nil
	}
	ses := c.session()
	subject := fmt.Sprintf("CHIA: client %s asked for a research assistant", ses.UserID)
	body := fmt.Sprintf("Chat %s requested immediate attention.\n\nClient message: %s\n", ses.ChatID, inv.Argument)
	if err := c.svc.notifier.Notify(ctx, subject, body); err != nil {
		return "", fmt.Errorf("notify research assistant: %w", err)
	}
	return "I've let a research assistant know. Someone will reach out soon.", nil
}

func (c *Conversation) summarizeHistory(ctx context.Context, _ tools.Invocation) (string, error) {
	summary, err := c.svc.engine.SummarizeHistory(ctx, c.dispatcher.Transcript().Render())
	if err != nil {
		return "", err
	}
	ses := c.session()
	err = c.svc.memos.Save(ctx, memory.Memo{
		UserID: ses.UserID,
		ChatID: ses.ChatID,
		Text:   summary,
	})
	if err != nil {
		return "", fmt.Errorf("save memo: %w", err)
	}
	// The summary itself stays private.
	return "I've made a note of the key points from our conversation.", nil
}

func (c *Conversation) countFlow(flow string, outcome flows.Outcome) {
	if c.svc.metrics != nil {
		c.svc.metrics.ExchangeOutcomes.WithLabelValues(flow, string(outcome)).Inc()
	}
}
