// Package counsel wires the conversation core together: it builds the
// capability registry for each session, registers the assistant and
// counselor responders with a dispatcher, and runs scripted flows over
// the session's duplex channel.
package counsel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/flows"
	"github.com/antoniostano/chia/internal/memory"
	"github.com/antoniostano/chia/internal/notify"
	"github.com/antoniostano/chia/internal/observability"
	"github.com/antoniostano/chia/internal/oracle"
	"github.com/antoniostano/chia/internal/providers"
	"github.com/antoniostano/chia/internal/storage"
	"github.com/antoniostano/chia/internal/tools"
)

// Capability names exposed to the assistant role.
const (
	CapAnswerQuestion   = "answer_question"
	CapAssessRisk       = "assess_hiv_risk"
	CapAssessStage      = "assess_status_of_change"
	CapSearchProvider   = "search_provider"
	CapRecordSupport    = "record_support_request"
	CapSummarizeHistory = "summarize_chat_history"
	CapNotifyAssistant  = "notify_research_assistant"
)

const answerPreamble = "You are a warm, non-judgmental HIV prevention counselor. " +
	"Answer the client's question accurately and briefly, in plain language."

// Service holds the shared collaborators conversations are built from.
type Service struct {
	oracle     oracle.Oracle
	classifier *classify.Service
	engine     *flows.Engine
	locator    providers.Locator
	memos      memory.Store
	notifier   notify.Notifier
	store      storage.Store
	metrics    *observability.Metrics
	policy     dialog.Policy
	maxRounds  int
	log        *slog.Logger
}

type ServiceDeps struct {
	Oracle     oracle.Oracle
	Classifier *classify.Service
	Engine     *flows.Engine
	Locator    providers.Locator
	Memos      memory.Store
	Notifier   notify.Notifier
	Store      storage.Store
	Metrics    *observability.Metrics
	Policy     dialog.Policy
	MaxRounds  int
	Log        *slog.Logger
}

func NewService(deps ServiceDeps) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	policy := deps.Policy
	if policy == nil {
		policy = dialog.LinearPolicy{}
	}
	return &Service{
		oracle:     deps.Oracle,
		classifier: deps.Classifier,
		engine:     deps.Engine,
		locator:    deps.Locator,
		memos:      deps.Memos,
		notifier:   deps.Notifier,
		store:      deps.Store,
		metrics:    deps.Metrics,
		policy:     policy,
		maxRounds:  deps.MaxRounds,
		log:        log,
	}
}

// buildRegistry creates the per-conversation capability set. Flows
// close over the conversation's channel; every capability is requested
// by the assistant and executed by the counselor.
func (s *Service) buildRegistry(conv *Conversation) *tools.Registry {
	reg := tools.NewRegistry()

	caps := []tools.Capability{
		{
			Name:        CapAnswerQuestion,
			Description: "Answer an open question about HIV prevention or PrEP.",
			Fn:          conv.answerQuestion,
		},
		{
			Name:        CapAssessRisk,
			Description: "Walk the client through the HIV risk questionnaire.",
			Fn:          conv.assessRisk,
		},
		{
			Name:        CapAssessStage,
			Description: "Ask the client where they stand with PrEP.",
			Fn:          conv.assessStage,
		},
		{
			Name:        CapSearchProvider,
			Description: "Find PrEP care providers near a ZIP code.",
			Fn:          conv.searchProvider,
		},
		{
			Name:        CapRecordSupport,
			Description: "Record a request for help from a research assistant.",
			Fn:          conv.recordSupport,
		},
		{
			Name:        CapNotifyAssistant,
			Description: "Alert a research assistant that the client needs a person now.",
			Fn:          conv.notifyAssistant,
		},
		{
			Name:         CapSummarizeHistory,
			Description:  "Condense the conversation into a private memo.",
			Precondition: requireMemoryEnabled(conv),
			Fn:           conv.summarizeHistory,
		},
	}

	for i := range caps {
		caps[i].Caller = string(dialog.RoleAssistant)
		caps[i].Executor = string(dialog.RoleCounselor)
		if err := reg.Register(caps[i]); err != nil {
			s.log.Error("capability registration failed", "name", caps[i].Name, "error", err)
		}
	}
	return reg
}

func requireMemoryEnabled(conv *Conversation) func(tools.Invocation) error {
	return func(tools.Invocation) error {
		if !conv.memoryOptIn() {
			return fmt.Errorf("client has not opted into memory")
		}
		return nil
	}
}

// askOracle composes the counseling preamble, opted-in memos, and the
// client question into one prompt.
func (s *Service) askOracle(ctx context.Context, conv *Conversation, question string) (string, error) {
	var b strings.Builder
	b.WriteString(answerPreamble)
	if userID := conv.session().UserID; conv.memoryOptIn() && s.memos != nil {
		memos, err := s.memos.Relevant(ctx, userID, question, 5)
		if err != nil {
			s.log.Warn("memo lookup failed", "user_id", userID, "error", err)
		}
		for _, m := range memos {
			b.WriteString("\nKnown about this client: ")
			b.WriteString(m.Text)
		}
	}
	b.WriteString("\nThe client asks: ")
	b.WriteString(question)
	return s.oracle.Ask(ctx, b.String())
}
