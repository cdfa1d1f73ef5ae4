package social

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loop/cmd/internal/realtime"
	v1 "loop/shared/contracts/realtime/v1"
)

// Service is the chat write-side: it updates the Store, materializes views
// through the Summaries builder, and hands them to the Router / presence
// engine for delivery. It implements realtime.ChatBackend.
//
// Delivery failures never roll back a state write: the store commit is
// authoritative, pushes are best-effort.
type Service struct {
	log       *slog.Logger
	store     Store
	router    *realtime.Router
	presence  *realtime.PresenceFanout
	summaries *Summaries

	now func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithClock overrides the service clock (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

// NewService constructs the chat service.
func NewService(log *slog.Logger, store Store, router *realtime.Router, presence *realtime.PresenceFanout, opts ...ServiceOption) (*Service, error) {
	if store == nil || router == nil || presence == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}

	summaries, err := NewSummaries(store)
	if err != nil {
		return nil, err
	}

	s := &Service{
		log:       log,
		store:     store,
		router:    router,
		presence:  presence,
		summaries: summaries,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Summaries exposes the read-side builder.
func (s *Service) Summaries() *Summaries { return s.summaries }

// ListMemberships returns the conversation ids the user belongs to.
func (s *Service) ListMemberships(ctx context.Context, userID string) ([]string, error) {
	return s.store.ListMemberships(ctx, userID)
}

// IsMember reports whether the user belongs to the conversation.
func (s *Service) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	return s.store.IsMember(ctx, userID, conversationID)
}

// CreateDM upserts the ACCEPTED friend edge and the single DM conversation
// for the pair, then pushes a personalized conversation:created summary to
// every participant. Concurrent calls for the same pair collapse into one
// conversation row; both callers still trigger their pushes.
func (s *Service) CreateDM(ctx context.Context, userID, otherID string) (Conversation, error) {
	userID = strings.TrimSpace(userID)
	otherID = strings.TrimSpace(otherID)
	if userID == "" || otherID == "" {
		return Conversation{}, ErrInvalidInput
	}
	if userID == otherID {
		return Conversation{}, fmt.Errorf("%w: cannot DM yourself", ErrInvalidInput)
	}

	if _, err := s.store.GetUser(ctx, otherID); err != nil {
		return Conversation{}, err
	}

	if err := s.store.UpsertFriend(ctx, userID, otherID, FriendAccepted); err != nil {
		return Conversation{}, fmt.Errorf("upsert friend: %w", err)
	}

	conv, created, err := s.store.EnsureDM(ctx, userID, otherID, s.now())
	if err != nil {
		return Conversation{}, fmt.Errorf("ensure dm: %w", err)
	}

	s.notifyConversationCreated(ctx, conv.ID, []string{userID, otherID})

	if created {
		s.log.Info("chat.dm.created", "conversation_id", conv.ID, "created_by", userID)
	}
	return conv, nil
}

// NotifyConversationCreated pushes the personalized summary of an existing
// conversation to the given participants. Used by the invite flow after an
// accepted QR creates or revives a DM.
func (s *Service) NotifyConversationCreated(ctx context.Context, conversationID string, participantIDs []string) {
	s.notifyConversationCreated(ctx, conversationID, participantIDs)
}

func (s *Service) notifyConversationCreated(ctx context.Context, conversationID string, participantIDs []string) {
	for _, participantID := range participantIDs {
		// Live sessions of the new member must enter the room now; the
		// connect-time rebuild only covers memberships that already existed.
		s.router.JoinConversation(participantID, conversationID)

		summary, ok, err := s.summaries.Summarize(ctx, conversationID, participantID)
		if err != nil {
			// The write already succeeded; a failed push must not fail it.
			s.log.Info("chat.push.conversation_created.fail", "conversation_id", conversationID, "user_id", participantID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		s.router.NotifyConversationCreated(participantID, summary)
	}
}

// SendMessage persists a message, advances the conversation's updatedAt, and
// pushes message:new to the conversation room. Non-members get a
// user-visible error.
func (s *Service) SendMessage(ctx context.Context, senderID, conversationID, kind, text, mediaURL string) (v1.MessagePayload, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" || senderID == "" {
		return v1.MessagePayload{}, ErrInvalidInput
	}

	if kind == "" {
		kind = KindText
	}
	if !ValidKind(kind) {
		return v1.MessagePayload{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}

	member, err := s.store.IsMember(ctx, senderID, conversationID)
	if err != nil {
		return v1.MessagePayload{}, fmt.Errorf("membership check: %w", err)
	}
	if !member {
		return v1.MessagePayload{}, realtime.ErrNotAMember
	}

	in := AppendMessageInput{
		ConvID:   conversationID,
		SenderID: senderID,
		Kind:     kind,
		Now:      s.now(),
	}
	if text = strings.TrimSpace(text); text != "" {
		in.Text = &text
	}
	if mediaURL = strings.TrimSpace(mediaURL); mediaURL != "" {
		in.MediaURL = &mediaURL
	}

	view, err := s.store.AppendMessage(ctx, in)
	if err != nil {
		return v1.MessagePayload{}, fmt.Errorf("append message: %w", err)
	}

	payload := messagePayload(view)
	s.router.NotifyMessage(conversationID, payload)
	return payload, nil
}

// Typing forwards the ephemeral indicator to the conversation room after a
// membership check. Nothing is persisted.
func (s *Service) Typing(ctx context.Context, userID, conversationID string) error {
	member, err := s.store.IsMember(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !member {
		return realtime.ErrNotAMember
	}
	s.router.NotifyTyping(conversationID, userID)
	return nil
}

// SetPresence commits the status (authoritative) and then fans out the
// change. A fan-out failure is logged and swallowed: the persisted status
// wins on the next poll/login, live delivery stays best-effort.
func (s *Service) SetPresence(ctx context.Context, userID, status string) error {
	if !realtime.ValidStatus(status) {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidInput, status)
	}

	if err := s.store.SetStatus(ctx, userID, status, s.now()); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if err := s.presence.Broadcast(ctx, userID, status); err != nil {
		s.log.Info("chat.presence.fanout.fail", "user_id", userID, "status", status, "err", err)
	}
	return nil
}

// History returns one page of a conversation's messages for a member.
func (s *Service) History(ctx context.Context, userID, conversationID, cursor string, limit int) ([]v1.MessagePayload, string, error) {
	member, err := s.store.IsMember(ctx, userID, conversationID)
	if err != nil {
		return nil, "", fmt.Errorf("membership check: %w", err)
	}
	if !member {
		return nil, "", realtime.ErrNotAMember
	}

	page, err := s.store.ListMessages(ctx, HistoryInput{ConvID: conversationID, Cursor: cursor, Limit: limit})
	if err != nil {
		return nil, "", err
	}

	items := make([]v1.MessagePayload, 0, len(page.Items))
	for _, view := range page.Items {
		items = append(items, messagePayload(view))
	}
	return items, page.NextCursor, nil
}

func messagePayload(view MessageView) v1.MessagePayload {
	return v1.MessagePayload{
		ID:             view.ID,
		ConversationID: view.ConvID,
		Kind:           view.Kind,
		Text:           view.Text,
		MediaURL:       view.MediaURL,
		CreatedAt:      view.CreatedAt,
		Sender: v1.SenderRef{
			ID:      view.SenderID,
			Display: displayName(view.SenderDisplay, view.SenderEmail),
		},
	}
}
