// Package realtime contains Loop's presence and conversation fan-out core:
// the room registry, the presence fan-out engine, the event router, and the
// WebSocket gateway that feeds them.
package realtime

import (
	"log/slog"
	"sync"

	v1 "loop/shared/contracts/realtime/v1"
)

// Room name prefixes. A room is a named multicast group; sessions join and
// leave, deliveries fan out to current joiners only.
const (
	roomUserPrefix         = "user:"
	roomConversationPrefix = "conversation:"
)

// UserRoom returns the room name carrying events addressed to a single user.
func UserRoom(userID string) string { return roomUserPrefix + userID }

// ConversationRoom returns the room name carrying events for a conversation.
func ConversationRoom(conversationID string) string {
	return roomConversationPrefix + conversationID
}

// Registry owns the mapping between connected sessions and the rooms they
// are joined to. It is the only mutable shared state of the realtime core.
//
// Concurrency guarantees:
// - Join/Leave/Disconnect are safe under concurrent Deliver.
// - Deliver never blocks (drops under backpressure).
// - Deliver is panic-safe because Client.Send is never closed by the server.
type Registry struct {
	log *slog.Logger

	mu       sync.RWMutex
	rooms    map[string]map[string]*Client  // room -> session_id -> client
	sessions map[string]map[string]struct{} // session_id -> joined room names
	clients  map[string]*Client             // session_id -> client
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log,
		rooms:    make(map[string]map[string]*Client),
		sessions: make(map[string]map[string]struct{}),
		clients:  make(map[string]*Client),
	}
}

// Connect registers a client and joins its implicit rooms: the user room
// plus one conversation room per current membership. Conversation rooms are
// a derived cache rebuilt at connect time; memberships gained while
// connected require an explicit join request.
func (r *Registry) Connect(client *Client, conversationIDs []string) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.clients[client.SessionID] = client
	r.joinLocked(client, UserRoom(client.UserID))
	for _, id := range conversationIDs {
		if id == "" {
			continue
		}
		r.joinLocked(client, ConversationRoom(id))
	}
	r.mu.Unlock()

	metricSessions.Inc()
	r.log.Info("registry.connect",
		"session_id", client.SessionID,
		"user_id", client.UserID,
		"conversations", len(conversationIDs),
	)
}

// Join adds a session to a room. Joining a room twice is a no-op, never an error.
func (r *Registry) Join(sessionID, room string) {
	if r == nil || sessionID == "" || room == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client := r.clients[sessionID]
	if client == nil {
		return
	}
	r.joinLocked(client, room)
}

func (r *Registry) joinLocked(client *Client, room string) {
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[client.SessionID] = client

	joined := r.sessions[client.SessionID]
	if joined == nil {
		joined = make(map[string]struct{})
		r.sessions[client.SessionID] = joined
	}
	joined[room] = struct{}{}
}

// JoinUser joins every currently connected session of a user to a room.
// Store writes that grant a membership (DM creation, accepted invites) call
// this so already-connected sessions start receiving the room's events
// without waiting for a reconnect or a client-initiated join.
func (r *Registry) JoinUser(userID, room string) {
	if r == nil || userID == "" || room == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.rooms[UserRoom(userID)] {
		r.joinLocked(client, room)
	}
}

// Leave removes a session from a room. Leaving an unjoined room is a no-op.
func (r *Registry) Leave(sessionID, room string) {
	if r == nil || sessionID == "" || room == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(sessionID, room)
}

func (r *Registry) leaveLocked(sessionID, room string) {
	if members := r.rooms[room]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined := r.sessions[sessionID]; joined != nil {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}

// Disconnect removes all room memberships of a session and signals the
// client to shut down. Other sessions of the same user are unaffected.
func (r *Registry) Disconnect(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	r.mu.Lock()
	client := r.clients[sessionID]
	delete(r.clients, sessionID)
	for room := range r.sessions[sessionID] {
		r.leaveLocked(sessionID, room)
	}
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a deliverer still holds a pointer
	// while the client goroutines are being torn down.
	if client != nil {
		client.Close()
		metricSessions.Dec()
	}

	r.log.Info("registry.disconnect", "session_id", sessionID)
}

// InRoom reports whether a session is currently joined to a room.
func (r *Registry) InRoom(sessionID, room string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID][room]
	return ok
}

// DeliverAll sends an envelope to every connected session regardless of room.
// Used only for ephemeral, non-targeted events (expired-story notices).
func (r *Registry) DeliverAll(env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.clients {
		r.send(m, env)
	}
}

// Deliver sends an envelope to every live session currently in the room.
// Best-effort live channel: sessions not present receive nothing, and a full
// or closing client is skipped rather than blocking the whole room.
func (r *Registry) Deliver(room string, env v1.Envelope) {
	if r == nil || room == "" {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rooms[room] {
		r.send(m, env)
	}
}

func (r *Registry) send(m *Client, env v1.Envelope) {
	if m == nil {
		return
	}

	select {
	case <-m.Done():
		// Skip clients that are shutting down.
		return
	default:
	}

	select {
	case m.Send <- env:
		metricDeliveries.WithLabelValues(env.Type).Inc()
	default:
		metricDropped.WithLabelValues(env.Type).Inc()
	}
}
