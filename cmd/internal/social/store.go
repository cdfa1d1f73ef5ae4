package social

import (
	"context"
	"time"
)

// AppendMessageInput describes a message append request.
type AppendMessageInput struct {
	ConvID   string
	SenderID string
	Kind     string
	Text     *string
	MediaURL *string
	Now      time.Time
}

// HistoryInput describes a history page request. Cursor is the id of the
// last message of the previous page (exclusive).
type HistoryInput struct {
	ConvID string
	Cursor string
	Limit  int
}

// HistoryResult is one history page, ordered oldest-first for display.
type HistoryResult struct {
	Items      []MessageView
	NextCursor string
}

// Store is the persistence boundary for users, friends, conversations, and
// messages. It is the source of truth the realtime layer treats as read-only;
// room membership is derived from it, never pushed into it.
type Store interface {
	// GetUser returns the account row for id, or ErrUserNotFound.
	GetUser(ctx context.Context, id string) (User, error)
	// GetProfile returns the profile for userID; a missing profile is returned
	// as a zero Profile with the user's id, not an error.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	// SetStatus upserts the profile status (last-writer-wins) and bumps
	// lastActiveAt.
	SetStatus(ctx context.Context, userID, status string, now time.Time) error

	// UpsertFriend writes the canonical (a<b) edge in the given state.
	// An existing edge is upgraded; ACCEPTED never downgrades to PENDING.
	UpsertFriend(ctx context.Context, x, y, state string) error
	// ListAcceptedFriends returns every ACCEPTED edge touching userID.
	ListAcceptedFriends(ctx context.Context, userID string) ([]FriendEdge, error)

	// IsMember reports whether userID belongs to conversationID.
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)
	// ListMemberships returns the conversation ids userID belongs to.
	ListMemberships(ctx context.Context, userID string) ([]string, error)
	// ListOtherMembers returns the distinct member ids of the given
	// conversations, excluding excludeUserID.
	ListOtherMembers(ctx context.Context, conversationIDs []string, excludeUserID string) ([]string, error)

	// EnsureDM returns the single DM conversation for the unordered pair
	// (creatorID, otherID), creating it with both members when absent.
	// created reports whether this call performed the creation. Concurrent
	// calls for the same pair must resolve to exactly one row.
	EnsureDM(ctx context.Context, creatorID, otherID string, now time.Time) (conv Conversation, created bool, err error)
	// LoadConversationWithLastMessage loads a conversation with its members
	// and most recent message, or ErrNotFound if it vanished.
	LoadConversationWithLastMessage(ctx context.Context, conversationID string) (ConversationView, error)
	// ListConversationsForUser returns every conversation the viewer belongs
	// to, ordered by updatedAt descending. The ordering is stable and is the
	// canonical conversation list order.
	ListConversationsForUser(ctx context.Context, viewerID string) ([]ConversationView, error)

	// AppendMessage persists a message and advances the conversation's
	// updatedAt. Returns ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, in AppendMessageInput) (MessageView, error)
	// ListMessages returns one history page, newest-anchored cursor paging,
	// items oldest-first.
	ListMessages(ctx context.Context, in HistoryInput) (HistoryResult, error)

	Close() error
}
