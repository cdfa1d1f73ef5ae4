package realtime

import (
	"encoding/json"
	"testing"

	v1 "loop/shared/contracts/realtime/v1"
)

func TestRouterNotifyTypingTargetsConversation(t *testing.T) {
	reg := NewRegistry(nil)
	rt := NewRouter(nil, reg)

	member := NewClient("s1", "u1", 8)
	other := NewClient("s2", "u2", 8)
	reg.Connect(member, []string{"conv1"})
	reg.Connect(other, nil)

	rt.NotifyTyping("conv1", "u9")

	got := drain(t, member)
	if len(got) != 1 || got[0].Type != v1.TypeTyping {
		t.Fatalf("member got %+v", got)
	}
	var p v1.TypingPayload
	if err := json.Unmarshal(got[0].Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ConversationID != "conv1" || p.UserID != "u9" {
		t.Fatalf("payload = %+v", p)
	}
	if extra := drain(t, other); len(extra) != 0 {
		t.Fatalf("non-member got %d envelopes", len(extra))
	}
}

func TestRouterNotifyStoryExpiredSkipsEmptyBatch(t *testing.T) {
	reg := NewRegistry(nil)
	rt := NewRouter(nil, reg)

	c := NewClient("s1", "u1", 8)
	reg.Connect(c, nil)

	rt.NotifyStoryExpired(nil)
	if got := drain(t, c); len(got) != 0 {
		t.Fatalf("empty batch delivered %d envelopes", len(got))
	}

	rt.NotifyStoryExpired([]string{"st1", "st2"})
	got := drain(t, c)
	if len(got) != 1 || got[0].Type != v1.TypeStoryExpired {
		t.Fatalf("got %+v", got)
	}
	var p v1.StoryExpiredPayload
	if err := json.Unmarshal(got[0].Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(p.StoryIDs) != 2 {
		t.Fatalf("story ids = %v", p.StoryIDs)
	}
}

func TestRouterEnvelopesAreWellFormed(t *testing.T) {
	reg := NewRegistry(nil)
	rt := NewRouter(nil, reg)

	c := NewClient("s1", "u1", 8)
	reg.Connect(c, nil)

	rt.NotifyWalletUpdate("u1", 450)

	got := drain(t, c)
	if len(got) != 1 {
		t.Fatalf("deliveries = %d", len(got))
	}
	env := got[0]
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if env.ID == "" || env.TS.IsZero() {
		t.Fatalf("missing id/ts: %+v", env)
	}
}
