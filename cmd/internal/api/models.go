package api

import (
	"time"

	v1 "loop/shared/contracts/realtime/v1"
)

type presenceRequest struct {
	Status string `json:"status"`
}

type presenceResponse struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type dmCreateRequest struct {
	UserID string `json:"userId"`
}

type conversationListResponse struct {
	Conversations []v1.ConversationSummaryPayload `json:"conversations"`
}

type historyResponse struct {
	Messages   []v1.MessagePayload `json:"messages"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Kind           string `json:"kind,omitempty"`
	Text           string `json:"text,omitempty"`
	MediaURL       string `json:"mediaUrl,omitempty"`
}

type typingRequest struct {
	ConversationID string `json:"conversationId"`
}

type transferView struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Coins     int64     `json:"coins"`
	Memo      *string   `json:"memo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type walletResponse struct {
	Balance   int64          `json:"balance"`
	Transfers []transferView `json:"transfers"`
}

type transferRequest struct {
	ToID  string `json:"toId"`
	Coins int64  `json:"coins"`
	Memo  string `json:"memo,omitempty"`
}

type transferResponse struct {
	Transfer transferView `json:"transfer"`
	Balance  int64        `json:"balance"`
}

type storyPostRequest struct {
	MediaURL string `json:"mediaUrl"`
}

type storyView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MediaURL  string    `json:"mediaUrl"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type storyFeedResponse struct {
	Stories []storyView `json:"stories"`
}

type qrIssueResponse struct {
	QRPNG     string    `json:"qrPng"`
	Payload   string    `json:"payload"`
	Signature string    `json:"signature"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type qrAcceptRequest struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type qrAcceptResponse struct {
	ConversationID string `json:"conversationId"`
}
