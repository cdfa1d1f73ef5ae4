// Package v1 defines the Loop Realtime Protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeSessionReady is pushed by the server right after a successful connect.
	TypeSessionReady = "session.ready"

	// TypeConversationJoin requests joining a conversation room (client -> server)
	// and is echoed back on success.
	TypeConversationJoin = "conversation:join"

	// TypeMessageSend requests sending a new message (client -> server).
	TypeMessageSend = "message:send"
	// TypeMessageNew broadcasts a persisted message (server -> conversation members).
	TypeMessageNew = "message:new"

	// TypeTyping is the ephemeral typing indicator (both directions).
	TypeTyping = "typing"

	// TypePresenceSet requests a presence status change (client -> server).
	TypePresenceSet = "presence:set"
	// TypePresenceUpdate broadcasts a presence change (server -> user rooms).
	TypePresenceUpdate = "presence:update"

	// TypeConversationCreated notifies a participant about a new conversation
	// with a personalized summary (server -> user room).
	TypeConversationCreated = "conversation:created"

	// TypeWalletUpdate notifies a user about a balance change (server -> user room).
	TypeWalletUpdate = "wallet:update"

	// TypeStoryNew announces a freshly posted story (server -> all).
	TypeStoryNew = "story:new"
	// TypeStoryExpired announces a batch of expired stories (server -> all).
	TypeStoryExpired = "story:expired"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSessionReady,
		TypeConversationJoin,
		TypeMessageSend,
		TypeMessageNew,
		TypeTyping,
		TypePresenceSet,
		TypePresenceUpdate,
		TypeConversationCreated,
		TypeWalletUpdate,
		TypeStoryNew,
		TypeStoryExpired,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// SessionReadyPayload carries the server-assigned session id.
type SessionReadyPayload struct {
	SessionID string `json:"sessionId"`
}

// ConversationJoinPayload requests membership in a conversation room.
type ConversationJoinPayload struct {
	ConversationID string `json:"conversationId"`
}

// MessageSendPayload requests sending a message into a conversation.
type MessageSendPayload struct {
	ConversationID string `json:"conversationId"`
	Kind           string `json:"kind,omitempty"`
	Text           string `json:"text,omitempty"`
	MediaURL       string `json:"mediaUrl,omitempty"`
}

// SenderRef identifies a message sender with its resolved display name.
type SenderRef struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// MessagePayload is the wire shape of a pushed message event.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Kind           string    `json:"kind"`
	Text           *string   `json:"text"`
	MediaURL       *string   `json:"mediaUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	Sender         SenderRef `json:"sender"`
}

// TypingPayload is the ephemeral typing indicator payload.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// PresenceSetPayload requests a presence change for the session's user.
type PresenceSetPayload struct {
	Status string `json:"status"`
}

// PresenceUpdatePayload broadcasts a presence change.
type PresenceUpdatePayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// LastMessageView is the most recent message of a conversation summary.
type LastMessageView struct {
	ID        string    `json:"id"`
	Text      *string   `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    SenderRef `json:"sender"`
}

// ParticipantView is the single "other" member of a direct conversation.
type ParticipantView struct {
	ID      string `json:"id"`
	Display string `json:"display"`
	Status  string `json:"status"`
}

// ConversationSummaryPayload is the personalized view pushed on conversation:created
// and returned by the conversation list.
type ConversationSummaryPayload struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	LastMessage *LastMessageView `json:"lastMessage"`
	Participant *ParticipantView `json:"participant"`
}

// WalletUpdatePayload notifies a wallet balance change.
type WalletUpdatePayload struct {
	Balance int64 `json:"balance"`
}

// StoryNewPayload announces a new story.
type StoryNewPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MediaURL  string    `json:"mediaUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StoryExpiredPayload announces a batch of expired story ids.
type StoryExpiredPayload struct {
	StoryIDs []string `json:"storyIds"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
