package social

import (
	"context"
	"testing"
	"time"

	"loop/cmd/internal/realtime"
)

func TestSummarizeDMParticipantIsTheOtherUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.PutUser(User{ID: "u1", Email: "alice@example.com", Role: RoleAdult})
	s.PutUser(User{ID: "u2", Email: "bob@example.com", Role: RoleAdult})

	now := time.Now().UTC()
	conv, _, err := s.EnsureDM(ctx, "u1", "u2", now)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}
	if err := s.SetStatus(ctx, "u2", realtime.StatusBusy, now); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	b, err := NewSummaries(s)
	if err != nil {
		t.Fatalf("NewSummaries: %v", err)
	}

	summary, ok, err := b.Summarize(ctx, conv.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("Summarize: ok=%v err=%v", ok, err)
	}
	if summary.Type != ConversationDM {
		t.Fatalf("type = %q", summary.Type)
	}
	if summary.LastMessage != nil {
		t.Fatalf("expected nil lastMessage on fresh conversation")
	}
	if summary.Participant == nil {
		t.Fatalf("expected participant for DM viewer")
	}
	if summary.Participant.ID != "u2" || summary.Participant.Status != realtime.StatusBusy {
		t.Fatalf("participant = %+v", summary.Participant)
	}
	// No display name set: falls back to the email local part.
	if summary.Participant.Display != "bob" {
		t.Fatalf("display = %q", summary.Participant.Display)
	}

	// Symmetric view for the other side.
	summary2, ok, err := b.Summarize(ctx, conv.ID, "u2")
	if err != nil || !ok {
		t.Fatalf("Summarize u2: ok=%v err=%v", ok, err)
	}
	if summary2.Participant == nil || summary2.Participant.ID != "u1" {
		t.Fatalf("participant for u2 = %+v", summary2.Participant)
	}
}

func TestSummarizeIncludesLastMessage(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.PutUser(User{ID: "u1", Email: "alice@example.com", Role: RoleAdult})
	s.PutUser(User{ID: "u2", Email: "bob@example.com", Role: RoleAdult})

	now := time.Now().UTC()
	conv, _, err := s.EnsureDM(ctx, "u1", "u2", now)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}
	text := "hello"
	if _, err := s.AppendMessage(ctx, AppendMessageInput{ConvID: conv.ID, SenderID: "u1", Kind: KindText, Text: &text, Now: now}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	b, err := NewSummaries(s)
	if err != nil {
		t.Fatalf("NewSummaries: %v", err)
	}
	summary, ok, err := b.Summarize(ctx, conv.ID, "u2")
	if err != nil || !ok {
		t.Fatalf("Summarize: ok=%v err=%v", ok, err)
	}
	if summary.LastMessage == nil || summary.LastMessage.Text == nil || *summary.LastMessage.Text != "hello" {
		t.Fatalf("lastMessage = %+v", summary.LastMessage)
	}
	if summary.LastMessage.Sender.ID != "u1" || summary.LastMessage.Sender.Display != "alice" {
		t.Fatalf("sender = %+v", summary.LastMessage.Sender)
	}
}

func TestSummarizeMissingConversation(t *testing.T) {
	b, err := NewSummaries(NewInMemoryStore())
	if err != nil {
		t.Fatalf("NewSummaries: %v", err)
	}
	_, ok, err := b.Summarize(context.Background(), "ghost", "u1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing conversation")
	}
}
