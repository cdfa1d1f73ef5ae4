package social

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func seedUser(s *InMemoryStore, id, email string) {
	s.PutUser(User{ID: id, Email: email, Role: RoleAdult})
}

func TestEnsureDMIsUniquePerPair(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")
	seedUser(s, "u2", "bob@example.com")

	now := time.Now().UTC()
	first, created, err := s.EnsureDM(ctx, "u1", "u2", now)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}
	if !created {
		t.Fatalf("expected created on first call")
	}
	if first.DMKey != "u1:u2" {
		t.Fatalf("dmKey = %q", first.DMKey)
	}

	// Reversed order must resolve to the same conversation.
	second, created, err := s.EnsureDM(ctx, "u2", "u1", now)
	if err != nil {
		t.Fatalf("EnsureDM reversed: %v", err)
	}
	if created {
		t.Fatalf("expected existing conversation on second call")
	}
	if second.ID != first.ID {
		t.Fatalf("second.ID = %q, want %q", second.ID, first.ID)
	}
}

func TestEnsureDMConcurrentCreatesCollapse(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")
	seedUser(s, "u2", "bob@example.com")

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creator, other := "u1", "u2"
			if i%2 == 1 {
				creator, other = other, creator
			}
			conv, _, err := s.EnsureDM(ctx, creator, other, time.Now().UTC())
			if err != nil {
				t.Errorf("EnsureDM: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("conversation ids diverged: %q vs %q", ids[i], ids[0])
		}
	}
}

func TestUpsertFriendAcceptedNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if err := s.UpsertFriend(ctx, "u1", "u2", FriendAccepted); err != nil {
		t.Fatalf("UpsertFriend: %v", err)
	}
	if err := s.UpsertFriend(ctx, "u2", "u1", FriendPending); err != nil {
		t.Fatalf("UpsertFriend pending: %v", err)
	}

	edges, err := s.ListAcceptedFriends(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAcceptedFriends: %v", err)
	}
	if len(edges) != 1 || edges[0].AID != "u1" || edges[0].BID != "u2" {
		t.Fatalf("edges = %+v, want the accepted canonical edge to survive", edges)
	}
}

func TestAppendMessageBumpsUpdatedAtMonotonically(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")
	seedUser(s, "u2", "bob@example.com")

	now := time.Now().UTC()
	conv, _, err := s.EnsureDM(ctx, "u1", "u2", now)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}

	text := "one"
	if _, err := s.AppendMessage(ctx, AppendMessageInput{ConvID: conv.ID, SenderID: "u1", Kind: KindText, Text: &text, Now: now}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	firstView, err := s.LoadConversationWithLastMessage(ctx, conv.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Same wall-clock instant: updatedAt must still advance.
	text2 := "two"
	if _, err := s.AppendMessage(ctx, AppendMessageInput{ConvID: conv.ID, SenderID: "u2", Kind: KindText, Text: &text2, Now: now}); err != nil {
		t.Fatalf("AppendMessage same instant: %v", err)
	}
	secondView, err := s.LoadConversationWithLastMessage(ctx, conv.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !secondView.UpdatedAt.After(firstView.UpdatedAt) {
		t.Fatalf("updatedAt did not advance: %v -> %v", firstView.UpdatedAt, secondView.UpdatedAt)
	}
	if secondView.LastMessage == nil || secondView.LastMessage.Text == nil || *secondView.LastMessage.Text != "two" {
		t.Fatalf("last message = %+v", secondView.LastMessage)
	}
}

func TestAppendMessageMissingConversation(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.AppendMessage(context.Background(), AppendMessageInput{ConvID: "ghost", SenderID: "u1", Kind: KindText, Now: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListMessagesPagesOldestFirstWithCursor(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")
	seedUser(s, "u2", "bob@example.com")

	base := time.Now().UTC()
	conv, _, err := s.EnsureDM(ctx, "u1", "u2", base)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}

	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("m%d", i)
		_, err := s.AppendMessage(ctx, AppendMessageInput{
			ConvID:   conv.ID,
			SenderID: "u1",
			Kind:     KindText,
			Text:     &text,
			Now:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	page1, err := s.ListMessages(ctx, HistoryInput{ConvID: conv.ID, Limit: 3})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page1.Items) != 3 || page1.NextCursor == "" {
		t.Fatalf("page1 = %d items, cursor %q", len(page1.Items), page1.NextCursor)
	}
	// Most recent page, oldest first within it.
	if *page1.Items[0].Text != "m2" || *page1.Items[2].Text != "m4" {
		t.Fatalf("page1 = [%s..%s]", *page1.Items[0].Text, *page1.Items[2].Text)
	}

	page2, err := s.ListMessages(ctx, HistoryInput{ConvID: conv.ID, Cursor: page1.NextCursor, Limit: 3})
	if err != nil {
		t.Fatalf("ListMessages page2: %v", err)
	}
	if len(page2.Items) != 2 || page2.NextCursor != "" {
		t.Fatalf("page2 = %d items, cursor %q", len(page2.Items), page2.NextCursor)
	}
	if *page2.Items[0].Text != "m0" || *page2.Items[1].Text != "m1" {
		t.Fatalf("page2 = [%s, %s]", *page2.Items[0].Text, *page2.Items[1].Text)
	}
}

func TestListConversationsOrdersByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")
	seedUser(s, "u2", "bob@example.com")
	seedUser(s, "u3", "cara@example.com")

	base := time.Now().UTC()
	older, _, err := s.EnsureDM(ctx, "u1", "u2", base)
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}
	newer, _, err := s.EnsureDM(ctx, "u1", "u3", base.Add(time.Second))
	if err != nil {
		t.Fatalf("EnsureDM: %v", err)
	}

	list, err := s.ListConversationsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	// Messaging the older conversation moves it to the top.
	text := "bump"
	if _, err := s.AppendMessage(ctx, AppendMessageInput{ConvID: older.ID, SenderID: "u1", Kind: KindText, Text: &text, Now: base.Add(2 * time.Second)}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	list, err = s.ListConversationsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].ID != older.ID {
		t.Fatalf("expected bumped conversation first, got %q", list[0].ID)
	}
}

func TestSetStatusDefaultsDisplayFromEmail(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	seedUser(s, "u1", "alice@example.com")

	if err := s.SetStatus(ctx, "u1", "online", time.Now().UTC()); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Display != "alice" {
		t.Fatalf("display = %q, want email local part", p.Display)
	}
}
