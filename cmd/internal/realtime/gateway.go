package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	v1 "loop/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "loop.realtime.v1"

	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// ChatBackend is what the gateway needs from the chat layer. Implementations
// persist first and push through the Router themselves.
type ChatBackend interface {
	// ListMemberships returns the conversation ids the user currently belongs to.
	ListMemberships(ctx context.Context, userID string) ([]string, error)
	// IsMember reports whether the user belongs to the conversation.
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)
	// SendMessage persists a message, bumps the conversation, and pushes message:new.
	SendMessage(ctx context.Context, senderID, conversationID, kind, text, mediaURL string) (v1.MessagePayload, error)
	// Typing pushes the ephemeral typing indicator after a membership check.
	Typing(ctx context.Context, userID, conversationID string) error
	// SetPresence persists the status (authoritative) and fans out best-effort.
	SetPresence(ctx context.Context, userID, status string) error
}

// Gateway is the WebSocket entrypoint for Loop realtime.
//
// It enforces origin policy, token auth at upgrade time, subprotocol
// selection, rate limits, and heartbeats, and routes validated envelopes to
// the Registry and the chat backend. Room membership for the session is
// rebuilt from the membership store once, at connect time.
type Gateway struct {
	log      *slog.Logger
	registry *Registry
	chat     ChatBackend
	verifier TokenVerifier

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout    time.Duration
	readIdleTimeout time.Duration
	sendQueueSize   int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	rateEvents int
	rateWindow time.Duration
}

// NewGateway constructs a gateway with secure defaults.
func NewGateway(log *slog.Logger, registry *Registry, chat ChatBackend, verifier TokenVerifier) (*Gateway, error) {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if registry == nil {
		return nil, errors.New("realtime: nil registry")
	}
	if chat == nil {
		return nil, errors.New("realtime: nil chat backend")
	}
	if verifier == nil {
		return nil, errors.New("realtime: nil token verifier")
	}

	g := &Gateway{log: log, registry: registry, chat: chat, verifier: verifier}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolWS("LOOP_WS_DEV_INSECURE", false)

	g.originRequired = envBoolWS("LOOP_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("LOOP_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy:
	// - same-host is ok
	// - cross-origin requires OriginPatterns (host patterns)
	// We derive these patterns from allowed origins so the two layers agree.
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("LOOP_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.readIdleTimeout = envDurationWS("LOOP_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle)

	g.sendQueueSize = envIntWS("LOOP_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("LOOP_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("LOOP_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	g.rateEvents = envIntWS("LOOP_WS_RATE_EVENTS", rateLimitEvents)
	g.rateWindow = envDurationWS("LOOP_WS_RATE_WINDOW", rateLimitWindow)

	return g, nil
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the realtime loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// Authenticate before upgrading: a session without a resolved user never
	// joins any room.
	userID, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.auth", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{wsSubprotocolV1},

		// Authorize allowed origin hosts (e.g. localhost) for cross-origin requests.
		OriginPatterns: g.originPatterns,

		// Dev-only escape hatch.
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	now := time.Now().UTC()
	sessionID, err := NewSessionID(now)
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session id")
		return
	}
	client := NewClient(sessionID, userID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Conversation room membership is rebuilt from the store once per connect.
	memberships, err := g.chat.ListMemberships(ctx, userID)
	if err != nil {
		g.log.Error("ws.memberships.fail", "user_id", userID, "err", err)
		_ = conn.Close(websocket.StatusInternalError, "membership lookup failed")
		return
	}
	g.registry.Connect(client, memberships)

	// Connect marks the user online. Best-effort: a failed fan-out never
	// tears down the connection.
	if err := g.chat.SetPresence(ctx, userID, StatusOnline); err != nil {
		g.log.Info("ws.presence.online.fail", "user_id", userID, "err", err)
	}

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close client.Send.
	// Delivery safety: client.Send remains open and membership removal happens first.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.registry.Disconnect(sessionID)

			// The request context is gone by now; give the offline write its own deadline.
			offCtx, offCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := g.chat.SetPresence(offCtx, userID, StatusOffline); err != nil {
				g.log.Info("ws.presence.offline.fail", "user_id", userID, "err", err)
			}
			offCancel()

			_ = conn.Close(code, reason)
			cancel()
		})
	}

	ready := newEnvelope(v1.TypeSessionReady, v1.SessionReadyPayload{SessionID: sessionID}, now)
	if !g.enqueue(ctx, client, ready) {
		shutdown(websocket.StatusInternalError, "backpressure: session.ready")
		return
	}

	rl := NewRateLimiter(g.rateEvents, g.rateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.readIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.trySendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.trySendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeConversationJoin:
			g.onJoin(ctx, client, env)

		case v1.TypeMessageSend:
			if err := g.onMessageSend(ctx, client, env); err != nil {
				code := "send_failed"
				if errors.Is(err, ErrNotAMember) {
					code = "not_a_member"
				}
				g.trySendError(ctx, client, code, err.Error())
				continue readLoop
			}

		case v1.TypeTyping:
			g.onTyping(ctx, client, env)

		case v1.TypePresenceSet:
			if err := g.onPresenceSet(ctx, client, env); err != nil {
				g.trySendError(ctx, client, "presence_failed", err.Error())
				continue readLoop
			}

		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- handlers ----

// onJoin validates current membership before joining the room; a join for a
// conversation the user does not belong to is silently ignored.
func (g *Gateway) onJoin(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.ConversationJoinPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		g.trySendError(ctx, client, "join_failed", "invalid payload")
		return
	}

	convID := strings.TrimSpace(p.ConversationID)
	if convID == "" {
		g.trySendError(ctx, client, "join_failed", "missing conversationId")
		return
	}

	ok, err := g.chat.IsMember(ctx, client.UserID, convID)
	if err != nil {
		g.log.Info("ws.join.membership.fail", "session_id", client.SessionID, "err", err)
		return
	}
	if !ok {
		g.log.Debug("ws.join.ignored.not_member", "session_id", client.SessionID, "conversation_id", convID)
		return
	}

	g.registry.Join(client.SessionID, ConversationRoom(convID))

	echo := newEnvelope(v1.TypeConversationJoin, v1.ConversationJoinPayload{ConversationID: convID}, time.Now().UTC())
	_ = g.enqueue(ctx, client, echo)
}

func (g *Gateway) onMessageSend(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.MessageSendPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if strings.TrimSpace(p.ConversationID) == "" {
		return errors.New("missing conversationId")
	}

	text := strings.TrimSpace(p.Text)
	if len([]rune(text)) > maxMessageChars {
		return fmt.Errorf("message too long: max=%d chars", maxMessageChars)
	}

	// The backend persists, bumps the conversation, and pushes message:new to
	// the conversation room (this session included).
	_, err := g.chat.SendMessage(ctx, client.UserID, p.ConversationID, p.Kind, text, p.MediaURL)
	return err
}

// onTyping forwards the ephemeral indicator. Non-membership is silently
// dropped like an unauthorized join; typing is never persisted.
func (g *Gateway) onTyping(ctx context.Context, client *Client, env v1.Envelope) {
	var p v1.TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	if strings.TrimSpace(p.ConversationID) == "" {
		return
	}

	if err := g.chat.Typing(ctx, client.UserID, p.ConversationID); err != nil && !errors.Is(err, ErrNotAMember) {
		g.log.Info("ws.typing.fail", "session_id", client.SessionID, "err", err)
	}
}

func (g *Gateway) onPresenceSet(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.PresenceSetPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("invalid status: %q", p.Status)
	}
	return g.chat.SetPresence(ctx, client.UserID, p.Status)
}

// ---- auth ----

func (g *Gateway) authenticate(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		return "", ErrNotAuthorized
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotAuthorized, err)
	}
	if strings.TrimSpace(userID) == "" {
		return "", ErrNotAuthorized
	}
	return userID, nil
}

func bearerToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	// Browser WebSocket clients cannot set headers; allow a query token.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// ---- send helpers ----

func (g *Gateway) trySendError(ctx context.Context, client *Client, code, msg string) {
	env := newEnvelope(v1.TypeError, v1.ErrorPayload{Code: code, Message: msg}, time.Now().UTC())
	_ = g.enqueue(ctx, client, env)
}

func (g *Gateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	// JSON decode errors are typically returned by json.Unmarshal, not conn.Read.
	// This fallback exists for robustness when error strings are propagated.
	s := err.Error()
	if strings.Contains(s, "unexpected end of JSON input") || strings.Contains(s, "invalid character") {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
