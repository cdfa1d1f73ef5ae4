package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	v1 "loop/shared/contracts/realtime/v1"
)

// Router delivers conversation/user-scoped events through the Registry.
// It is the only component that touches the live delivery layer; everything
// above it speaks typed payloads.
//
// Delivery is fire-and-forget: no acknowledgment, no durability, no retry.
type Router struct {
	log *slog.Logger
	reg *Registry
}

// NewRouter constructs a Router bound to a Registry.
func NewRouter(log *slog.Logger, reg *Registry) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, reg: reg}
}

// ToConversation delivers an envelope to conversation:<id>.
func (rt *Router) ToConversation(conversationID string, env v1.Envelope) {
	rt.reg.Deliver(ConversationRoom(conversationID), env)
}

// ToUser delivers an envelope to user:<id>.
func (rt *Router) ToUser(userID string, env v1.Envelope) {
	rt.reg.Deliver(UserRoom(userID), env)
}

// ToAll broadcasts an envelope to every connected session.
func (rt *Router) ToAll(env v1.Envelope) {
	rt.reg.DeliverAll(env)
}

// JoinConversation joins every live session of a user to a conversation
// room. Conversation rooms are otherwise rebuilt only at connect time, so a
// membership granted mid-session must be pushed into the registry here.
func (rt *Router) JoinConversation(userID, conversationID string) {
	rt.reg.JoinUser(userID, ConversationRoom(conversationID))
}

// ---- typed event constructors ----

// NotifyMessage pushes message:new to a conversation room.
func (rt *Router) NotifyMessage(conversationID string, p v1.MessagePayload) {
	rt.ToConversation(conversationID, newEnvelope(v1.TypeMessageNew, p, time.Now().UTC()))
}

// NotifyTyping pushes the ephemeral typing indicator to a conversation room.
func (rt *Router) NotifyTyping(conversationID, userID string) {
	rt.ToConversation(conversationID, newEnvelope(v1.TypeTyping, v1.TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
	}, time.Now().UTC()))
}

// NotifyPresence pushes presence:update to one recipient's user room.
func (rt *Router) NotifyPresence(recipientID string, p v1.PresenceUpdatePayload) {
	rt.ToUser(recipientID, newEnvelope(v1.TypePresenceUpdate, p, time.Now().UTC()))
}

// NotifyConversationCreated pushes a personalized summary to one participant.
func (rt *Router) NotifyConversationCreated(userID string, summary v1.ConversationSummaryPayload) {
	rt.ToUser(userID, newEnvelope(v1.TypeConversationCreated, summary, time.Now().UTC()))
}

// NotifyWalletUpdate pushes a balance change to one user.
func (rt *Router) NotifyWalletUpdate(userID string, balance int64) {
	rt.ToUser(userID, newEnvelope(v1.TypeWalletUpdate, v1.WalletUpdatePayload{Balance: balance}, time.Now().UTC()))
}

// NotifyStoryNew broadcasts a freshly posted story.
func (rt *Router) NotifyStoryNew(p v1.StoryNewPayload) {
	rt.ToAll(newEnvelope(v1.TypeStoryNew, p, time.Now().UTC()))
}

// NotifyStoryExpired broadcasts a batch of expired story ids.
func (rt *Router) NotifyStoryExpired(storyIDs []string) {
	if len(storyIDs) == 0 {
		return
	}
	rt.ToAll(newEnvelope(v1.TypeStoryExpired, v1.StoryExpiredPayload{StoryIDs: storyIDs}, time.Now().UTC()))
}

// newEnvelope wraps a fixed-shape payload into a versioned envelope.
// Payloads are structs under our control; marshal failures cannot happen.
// An id failure is logged and the envelope still goes out: an empty id is
// better than losing a live event.
func newEnvelope(typ string, payload any, now time.Time) v1.Envelope {
	raw, _ := json.Marshal(payload)
	id, err := NewEnvelopeID(now)
	if err != nil {
		slog.Default().Warn("realtime.envelope_id.fail", "type", typ, "err", err)
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      now,
		Payload: raw,
	}
}
