// Package social owns the membership store and the conversation read models:
// users, friend edges, conversations, messages, and the summary builder that
// materializes the views used by both the list API and the
// conversation:created push.
package social

import "time"

// Conversation types.
const (
	ConversationDM    = "DM"
	ConversationGroup = "GROUP"
)

// Friend edge states. Only ACCEPTED edges count toward presence fan-out and
// DM creation eligibility.
const (
	FriendPending  = "PENDING"
	FriendAccepted = "ACCEPTED"
)

// Message kinds.
const (
	KindText    = "text"
	KindImage   = "image"
	KindGIF     = "gif"
	KindSticker = "sticker"
	KindVoice   = "voice"
)

// ValidKind reports whether k is a known message kind.
func ValidKind(k string) bool {
	switch k {
	case KindText, KindImage, KindGIF, KindSticker, KindVoice:
		return true
	}
	return false
}

// User is an account row. Profile fields are denormalized into the views
// this package returns; the account itself is owned by the identity provider.
type User struct {
	ID    string
	Email string
	Role  string
}

// Roles relevant to policy checks.
const (
	RoleTeen  = "TEEN"
	RoleAdult = "ADULT"
)

// Profile carries the user's display name and presence status.
// Status is last-writer-wins, timestamped by LastActiveAt.
type Profile struct {
	UserID       string
	Display      string
	Status       string
	LastActiveAt time.Time
}

// FriendEdge is stored with AID < BID so every unordered pair has exactly
// one canonical row.
type FriendEdge struct {
	AID   string
	BID   string
	State string
}

// Conversation is identified by id. For DM type, DMKey (the two member ids
// sorted and joined) enforces at most one DM per unordered pair. UpdatedAt
// advances monotonically on every new message.
type Conversation struct {
	ID        string
	Type      string
	DMKey     string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberView is a conversation member joined with its user and profile.
type MemberView struct {
	UserID  string
	Role    string
	Email   string
	Display string // profile display, may be empty
	Status  string // presence status, may be empty
}

// Message belongs to exactly one conversation and is immutable once created.
type Message struct {
	ID        string
	ConvID    string
	SenderID  string
	Kind      string
	Text      *string
	MediaURL  *string
	CreatedAt time.Time
}

// MessageView is a message joined with its sender's email and profile display.
type MessageView struct {
	Message
	SenderEmail   string
	SenderDisplay string // profile display, may be empty
}

// ConversationView is a conversation loaded with its members and its single
// most-recent message (by creation time, ties broken by id).
type ConversationView struct {
	Conversation
	Members     []MemberView
	LastMessage *MessageView
}
