package notify

import (
	"context"
	"strings"
	"testing"
)

func TestNewFallsBackToLogNotifier(t *testing.T) {
	n := New(Config{}, nil)
	if _, ok := n.(*LogNotifier); !ok {
		t.Fatalf("got %T, want *LogNotifier", n)
	}
	if err := n.Notify(context.Background(), "subject", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestNewPicksSMTPWhenConfigured(t *testing.T) {
	n := New(Config{SMTPHost: "mail.example.org"}, nil)
	if _, ok := n.(*SMTPNotifier); !ok {
		t.Fatalf("got %T, want *SMTPNotifier", n)
	}
}

func TestSMTPNotifierDefaultsPort(t *testing.T) {
	n := NewSMTPNotifier(Config{SMTPHost: "mail.example.org"})
	if n.cfg.SMTPPort != 465 {
		t.Errorf("got port %d, want 465", n.cfg.SMTPPort)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("bot@example.org", "ra@example.org", "Support request", "A client asked for insurance support.")

	for _, want := range []string{
		"From: bot@example.org\r\n",
		"To: ra@example.org\r\n",
		"Subject: Support request\r\n",
		"A client asked for insurance support.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.Contains(msg, "\r\n\r\n") {
		t.Error("message missing header/body separator")
	}
}
