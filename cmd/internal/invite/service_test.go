package invite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loop/cmd/internal/realtime"
	"loop/cmd/internal/social"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T, opts ...Option) (*Service, *social.InMemoryStore) {
	t.Helper()

	users := social.NewInMemoryStore()
	registry := realtime.NewRegistry(nil)
	router := realtime.NewRouter(nil, registry)
	fanout, err := realtime.NewPresenceFanout(nil, social.NewGraph(users), router)
	if err != nil {
		t.Fatalf("NewPresenceFanout: %v", err)
	}
	chat, err := social.NewService(nil, users, router, fanout)
	if err != nil {
		t.Fatalf("social.NewService: %v", err)
	}

	svc, err := NewService(nil, NewInMemoryStore(), users, chat, testSecret, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, users
}

func TestIssueAndAcceptQR(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestService(t)
	users.PutUser(social.User{ID: "owner", Email: "owner@example.com", Role: social.RoleAdult})
	users.PutUser(social.User{ID: "guest", Email: "guest@example.com", Role: social.RoleAdult})

	issued, err := svc.IssueQR(ctx, "owner")
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}
	if !strings.HasPrefix(issued.QRPNG, "data:image/png;base64,") {
		t.Fatalf("QRPNG prefix = %q", issued.QRPNG[:32])
	}
	if issued.Payload == "" || issued.Signature == "" {
		t.Fatalf("issued = %+v", issued)
	}
	if !issued.ExpiresAt.After(time.Now()) {
		t.Fatalf("already expired: %v", issued.ExpiresAt)
	}
	// No display name set: the payload carries the email local part.
	if !strings.Contains(issued.Payload, `"display":"owner"`) {
		t.Fatalf("payload = %s", issued.Payload)
	}

	convID, err := svc.AcceptQR(ctx, "guest", issued.Payload, issued.Signature)
	if err != nil {
		t.Fatalf("AcceptQR: %v", err)
	}
	if convID == "" {
		t.Fatalf("empty conversation id")
	}

	// The pair is now accepted friends with exactly one DM.
	edges, err := users.ListAcceptedFriends(ctx, "guest")
	if err != nil || len(edges) != 1 {
		t.Fatalf("edges = %+v, err = %v", edges, err)
	}

	// A second accept resolves to the same conversation.
	again, err := svc.AcceptQR(ctx, "guest", issued.Payload, issued.Signature)
	if err != nil {
		t.Fatalf("AcceptQR again: %v", err)
	}
	if again != convID {
		t.Fatalf("second accept conversation = %q, want %q", again, convID)
	}
}

func TestAcceptQRRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestService(t)
	users.PutUser(social.User{ID: "owner", Email: "owner@example.com", Role: social.RoleAdult})
	users.PutUser(social.User{ID: "guest", Email: "guest@example.com", Role: social.RoleAdult})

	issued, err := svc.IssueQR(ctx, "owner")
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}

	if _, err := svc.AcceptQR(ctx, "guest", issued.Payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}

	// Tampered payload breaks the signature too.
	tampered := strings.Replace(issued.Payload, "owner", "mallory", 1)
	if _, err := svc.AcceptQR(ctx, "guest", tampered, issued.Signature); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered err = %v, want ErrInvalidSignature", err)
	}
}

func TestAcceptQRRejectsSelfInvite(t *testing.T) {
	ctx := context.Background()
	svc, users := newTestService(t)
	users.PutUser(social.User{ID: "owner", Email: "owner@example.com", Role: social.RoleAdult})

	issued, err := svc.IssueQR(ctx, "owner")
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}
	if _, err := svc.AcceptQR(ctx, "owner", issued.Payload, issued.Signature); !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("err = %v, want ErrSelfInvite", err)
	}
}

func TestAcceptQRRejectsExpiredInvite(t *testing.T) {
	ctx := context.Background()

	current := time.Now().UTC()
	svc, users := newTestService(t, WithTTL(10*time.Minute), WithClock(func() time.Time { return current }))
	users.PutUser(social.User{ID: "owner", Email: "owner@example.com", Role: social.RoleAdult})
	users.PutUser(social.User{ID: "guest", Email: "guest@example.com", Role: social.RoleAdult})

	issued, err := svc.IssueQR(ctx, "owner")
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := svc.AcceptQR(ctx, "guest", issued.Payload, issued.Signature); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestIssueQRUnknownOwner(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.IssueQR(context.Background(), "ghost"); !errors.Is(err, social.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	users := social.NewInMemoryStore()
	registry := realtime.NewRegistry(nil)
	router := realtime.NewRouter(nil, registry)
	fanout, err := realtime.NewPresenceFanout(nil, social.NewGraph(users), router)
	if err != nil {
		t.Fatalf("NewPresenceFanout: %v", err)
	}
	chat, err := social.NewService(nil, users, router, fanout)
	if err != nil {
		t.Fatalf("social.NewService: %v", err)
	}
	if _, err := NewService(nil, NewInMemoryStore(), users, chat, []byte("short")); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
