package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	v1 "loop/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

// gwBackend is a minimal ChatBackend: fixed memberships, presence writes
// reported on a channel so tests can wait for the online/offline side
// effects without sleeping.
type gwBackend struct {
	memberships []string
	presence    chan string
}

func newGWBackend(memberships ...string) *gwBackend {
	return &gwBackend{memberships: memberships, presence: make(chan string, 8)}
}

func (b *gwBackend) ListMemberships(context.Context, string) ([]string, error) {
	return b.memberships, nil
}

func (b *gwBackend) IsMember(context.Context, string, string) (bool, error) { return true, nil }

func (b *gwBackend) SendMessage(_ context.Context, senderID, conversationID, kind, text, mediaURL string) (v1.MessagePayload, error) {
	return v1.MessagePayload{ConversationID: conversationID}, nil
}

func (b *gwBackend) Typing(context.Context, string, string) error { return nil }

func (b *gwBackend) SetPresence(_ context.Context, _ string, status string) error {
	select {
	case b.presence <- status:
	default:
	}
	return nil
}

type gwVerifier struct {
	tokens map[string]string // token -> user id
}

func (v gwVerifier) Verify(token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func newTestGateway(t *testing.T, backend ChatBackend, verifier TokenVerifier) (*Gateway, *Registry) {
	t.Helper()
	t.Setenv("LOOP_WS_ORIGIN_REQUIRED", "false")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewRegistry(log)
	gw, err := NewGateway(log, reg, backend, verifier)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw, reg
}

func startGatewayServer(t *testing.T, gw *Gateway) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dialGateway(t *testing.T, baseHTTPURL, bearerToken string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	h := http.Header{}
	if strings.TrimSpace(bearerToken) != "" {
		h.Set("Authorization", "Bearer "+bearerToken)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{wsSubprotocolV1},
		HTTPHeader:   h,
	})
}

func readEnvelopeUntil(t *testing.T, conn *websocket.Conn, typ string, maxReads int) v1.Envelope {
	t.Helper()
	for i := 0; i < maxReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("conn.Read: %v", err)
		}
		var env v1.Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return v1.Envelope{}
}

func waitPresence(t *testing.T, b *gwBackend, want string) {
	t.Helper()
	select {
	case got := <-b.presence:
		if got != want {
			t.Fatalf("presence write = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for presence %q", want)
	}
}

func TestGatewayRejectsMissingToken(t *testing.T) {
	gw, _ := newTestGateway(t, newGWBackend(), gwVerifier{})
	ts := startGatewayServer(t, gw)

	_, resp, err := dialGateway(t, ts.URL, "")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected 401, got status=%d err=%v", status, err)
	}
}

func TestGatewayRejectsInvalidToken(t *testing.T) {
	gw, _ := newTestGateway(t, newGWBackend(), gwVerifier{tokens: map[string]string{"good": "u1"}})
	ts := startGatewayServer(t, gw)

	_, resp, err := dialGateway(t, ts.URL, "not-a-valid-token")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected 401, got status=%d err=%v", status, err)
	}
}

func TestGatewayConnectFlow(t *testing.T) {
	backend := newGWBackend("conv1")
	gw, reg := newTestGateway(t, backend, gwVerifier{tokens: map[string]string{"good": "u1"}})
	ts := startGatewayServer(t, gw)

	conn, resp, err := dialGateway(t, ts.URL, "good")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("authorized dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// session.ready arrives after Connect, so once it is read the room
	// rebuild is complete.
	ready := readEnvelopeUntil(t, conn, v1.TypeSessionReady, 4)
	var rp v1.SessionReadyPayload
	if err := json.Unmarshal(ready.Payload, &rp); err != nil {
		t.Fatalf("decode session.ready: %v", err)
	}
	if rp.SessionID == "" {
		t.Fatalf("empty session id")
	}
	waitPresence(t, backend, StatusOnline)

	// The membership lookup placed this session in conv1's room.
	msg := v1.Envelope{V: v1.Version, Type: v1.TypeMessageNew, ID: "m1", TS: time.Now().UTC(), Payload: json.RawMessage(`{}`)}
	reg.Deliver(ConversationRoom("conv1"), msg)
	got := readEnvelopeUntil(t, conn, v1.TypeMessageNew, 4)
	if got.ID != "m1" {
		t.Fatalf("delivered id = %q, want m1", got.ID)
	}

	// A live JoinUser pulls the session into rooms created after connect.
	reg.JoinUser("u1", ConversationRoom("conv2"))
	msg2 := v1.Envelope{V: v1.Version, Type: v1.TypeMessageNew, ID: "m2", TS: time.Now().UTC(), Payload: json.RawMessage(`{}`)}
	reg.Deliver(ConversationRoom("conv2"), msg2)
	got2 := readEnvelopeUntil(t, conn, v1.TypeMessageNew, 4)
	if got2.ID != "m2" {
		t.Fatalf("delivered id = %q, want m2", got2.ID)
	}

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitPresence(t, backend, StatusOffline)
}
