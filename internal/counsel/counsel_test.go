package counsel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/dialog"
	"github.com/antoniostano/chia/internal/flows"
	"github.com/antoniostano/chia/internal/memory"
	"github.com/antoniostano/chia/internal/oracle"
	"github.com/antoniostano/chia/internal/protocol"
	"github.com/antoniostano/chia/internal/providers"
	"github.com/antoniostano/chia/internal/storage"
)

func TestRouteMessage(t *testing.T) {
	cases := []struct {
		message  string
		wantName string
		wantArg  string
	}{
		{"Can you assess my risk?", CapAssessRisk, ""},
		{"I want a risk assessment", CapAssessRisk, ""},
		{"Am I ready for PrEP?", CapAssessStage, ""},
		{"Can you find a provider near 10001?", CapSearchProvider, "10001"},
		{"Is there a PrEP provider around here?", CapSearchProvider, ""},
		{"I need to talk to a person right now", CapNotifyAssistant, "I need to talk to a person right now"},
		{"I need support, I want to talk to someone", CapRecordSupport, ""},
		{"Could you help with insurance paperwork?", CapRecordSupport, ""},
		{"Please summarize our conversation", CapSummarizeHistory, ""},
		{"What is PrEP?", CapAnswerQuestion, "What is PrEP?"},
		{"", CapAnswerQuestion, ""},
	}

	for _, tc := range cases {
		name, arg := routeMessage(tc.message)
		if name != tc.wantName || arg != tc.wantArg {
			t.Errorf("routeMessage(%q) = (%s, %q), want (%s, %q)",
				tc.message, name, arg, tc.wantName, tc.wantArg)
		}
	}
}

type testHarness struct {
	svc      *Service
	conv     *Conversation
	inbound  chan string
	outbound chan protocol.ChatResponse
	store    *storage.MemoryStore
	memos    *memory.InMemoryStore
	notifier *recordingNotifier
}

type recordingNotifier struct {
	subjects []string
	bodies   []string
}

func (n *recordingNotifier) Notify(_ context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	mock := oracle.NewMockOracle()
	classifier := classify.NewService(mock, "English", nil)
	store := storage.NewMemoryStore()
	memos := memory.NewInMemoryStore()
	engine := flows.NewEngine(classifier, mock, store, 3, nil)
	locator := providers.NewCached(providers.NewMockLocator(), providers.NewMemoryCache(time.Minute))
	notifier := &recordingNotifier{}

	svc := NewService(ServiceDeps{
		Oracle:     mock,
		Classifier: classifier,
		Engine:     engine,
		Locator:    locator,
		Memos:      memos,
		Notifier:   notifier,
		Store:      store,
		Policy:     dialog.LinearPolicy{},
		MaxRounds:  40,
	})

	inbound := make(chan string, 16)
	outbound := make(chan protocol.ChatResponse, 64)
	ch := channel.New(inbound, outbound, 50*time.Millisecond, nil)
	ch.Open()

	conv := svc.NewConversation(flows.Session{ChatID: "chat-1", UserID: "u1"}, ch)

	return &testHarness{
		svc:      svc,
		conv:     conv,
		inbound:  inbound,
		outbound: outbound,
		store:    store,
		memos:    memos,
		notifier: notifier,
	}
}

func (h *testHarness) drainOutbound() []string {
	var out []string
	for {
		select {
		case frame := <-h.outbound:
			out = append(out, frame.Content)
		default:
			return out
		}
	}
}

func TestConversationAnswersQuestion(t *testing.T) {
	h := newHarness(t)

	if err := h.conv.HandleMessage(context.Background(), "What is PrEP?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	sent := h.drainOutbound()
	if len(sent) != 1 {
		t.Fatalf("got %d visible messages, want exactly 1: %v", len(sent), sent)
	}
	if h.conv.Terminated() {
		t.Error("conversation terminated after a plain question")
	}
}

func TestConversationNotifiesResearchAssistant(t *testing.T) {
	h := newHarness(t)

	if err := h.conv.HandleMessage(context.Background(), "I need to speak with someone right now"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	sent := h.drainOutbound()
	if len(sent) != 1 {
		t.Fatalf("got %d visible messages, want 1: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "research assistant") {
		t.Errorf("confirmation message %q", sent[0])
	}
	if len(h.notifier.subjects) != 1 {
		t.Fatalf("got %d notifications, want 1", len(h.notifier.subjects))
	}
	if !strings.Contains(h.notifier.subjects[0], "u1") {
		t.Errorf("subject %q missing client id", h.notifier.subjects[0])
	}
	if !strings.Contains(h.notifier.bodies[0], "right now") {
		t.Errorf("body %q missing client message", h.notifier.bodies[0])
	}
}

func TestConversationRunsRiskFlow(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.inbound <- "no"
	}

	if err := h.conv.HandleMessage(context.Background(), "Can you assess my risk?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	sent := h.drainOutbound()
	// Intro, five questions, lower-risk verdict, follow-up.
	if len(sent) != 8 {
		t.Fatalf("got %d messages, want 8: %v", len(sent), sent)
	}
	if !strings.Contains(sent[6], "appears to be lower") {
		t.Errorf("verdict message %q", sent[6])
	}
	if sent[7] != flowFollowUp {
		t.Errorf("follow-up %q", sent[7])
	}

	recs, _ := h.store.Query(context.Background(), storage.TableEvaluations, storage.Filter{ChatID: "chat-1"})
	if len(recs) != 1 || recs[0].Fields["outcome"] != "lower" {
		t.Errorf("evaluation records %v", recs)
	}
}

func TestConversationProviderLookupNeedsZip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.conv.HandleMessage(ctx, "Is there a PrEP provider around here?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sent := h.drainOutbound()
	if len(sent) != 1 || !strings.Contains(sent[0], "ZIP code") {
		t.Fatalf("got %v, want a ZIP prompt", sent)
	}

	if err := h.conv.HandleMessage(ctx, "Sure, find a provider near 10001"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sent = h.drainOutbound()
	if len(sent) != 1 || !strings.Contains(sent[0], "10001") {
		t.Fatalf("got %v, want a provider listing", sent)
	}
}

func TestConversationSummaryRequiresMemoryOptIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.conv.HandleMessage(ctx, "Please summarize our conversation"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sent := h.drainOutbound()
	if len(sent) != 1 || sent[0] != dialog.FallbackMessage {
		t.Fatalf("got %v, want fallback without memory opt-in", sent)
	}

	h.conv.SetMemoryEnabled(true)
	if err := h.conv.HandleMessage(ctx, "What is PrEP?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	h.drainOutbound()

	if err := h.conv.HandleMessage(ctx, "Please summarize our conversation"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sent = h.drainOutbound()
	if len(sent) != 1 || !strings.Contains(sent[0], "made a note") {
		t.Fatalf("got %v, want summary confirmation", sent)
	}

	memos, _ := h.memos.Recent(ctx, "u1", 10)
	if len(memos) != 1 {
		t.Errorf("got %d memos, want 1", len(memos))
	}
}

func TestConversationIdentityUpdatesDuringExchange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			h.conv.SetUserID(fmt.Sprintf("u%d", i))
			h.conv.SetChatID(fmt.Sprintf("c%d", i))
			h.conv.SetMemoryEnabled(i%2 == 0)
		}
	}()

	for i := 0; i < 5; i++ {
		if err := h.conv.HandleMessage(ctx, "What is PrEP?"); err != nil {
			t.Fatalf("HandleMessage %d: %v", i+1, err)
		}
	}
	close(stop)
	wg.Wait()

	if sent := h.drainOutbound(); len(sent) == 0 {
		t.Error("no replies delivered during identity churn")
	}
}

func TestConversationTerminatesOnSentinel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.conv.HandleMessage(ctx, "end conversation"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !h.conv.Terminated() {
		t.Fatal("conversation not terminated by sentinel")
	}
	if sent := h.drainOutbound(); len(sent) != 0 {
		t.Errorf("got %v after termination, want silence", sent)
	}
}

func TestConversationArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.conv.SetMemoryEnabled(true)

	if err := h.conv.HandleMessage(ctx, "What is PrEP?"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	h.drainOutbound()

	h.conv.Archive(ctx)

	transcripts, _ := h.store.Query(ctx, storage.TableTranscripts, storage.Filter{ChatID: "chat-1"})
	if len(transcripts) != 1 {
		t.Fatalf("got %d transcripts, want 1", len(transcripts))
	}
	rendered, _ := transcripts[0].Fields["transcript"].(string)
	if !strings.Contains(rendered, "patient: What is PrEP?") {
		t.Errorf("transcript %q missing patient line", rendered)
	}

	memos, _ := h.memos.Recent(ctx, "u1", 10)
	if len(memos) != 1 {
		t.Errorf("got %d memos, want 1", len(memos))
	}
}
