package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if s.ID == "" || s.ChatID == "" {
		t.Fatalf("session identifiers should not be empty: %+v", s)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.GetByChat(s.ChatID); err != ErrNotFound {
		t.Fatalf("GetByChat() after End = %v, want ErrNotFound", err)
	}
}

func TestManagerIdentityFrames(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("")

	if err := m.SetUserID(s.ID, "study-participant-7"); err != nil {
		t.Fatalf("SetUserID() error = %v", err)
	}
	if err := m.SetChatID(s.ID, "chat-42"); err != nil {
		t.Fatalf("SetChatID() error = %v", err)
	}
	if err := m.SetLanguage(s.ID, "Spanish"); err != nil {
		t.Fatalf("SetLanguage() error = %v", err)
	}
	if err := m.SetMemoryEnabled(s.ID, true); err != nil {
		t.Fatalf("SetMemoryEnabled() error = %v", err)
	}

	got, err := m.GetByChat("chat-42")
	if err != nil {
		t.Fatalf("GetByChat() error = %v", err)
	}
	if got.UserID != "study-participant-7" || got.Language != "Spanish" || !got.MemoryEnabled {
		t.Fatalf("unexpected session state: %+v", got)
	}

	if _, err := m.GetByChat(s.ChatID); err != ErrNotFound {
		t.Fatalf("old chat ID still resolves after rebind")
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1")

	expired := make(chan *Session, 1)
	m.SetExpireHook(func(s *Session) { expired <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case got := <-expired:
		if got.ID != s.ID {
			t.Fatalf("expired session %q, want %q", got.ID, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not expire the inactive session")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}

func TestManagerTouchKeepsSessionAlive(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	before, _ := m.Get(s.ID)

	time.Sleep(5 * time.Millisecond)
	if err := m.Touch(s.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	after, _ := m.Get(s.ID)
	if !after.LastActivityAt.After(before.LastActivityAt) {
		t.Fatal("Touch did not advance LastActivityAt")
	}
}
