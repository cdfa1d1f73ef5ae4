package social

import (
	"context"
	"errors"
	"strings"

	"loop/cmd/internal/realtime"
	v1 "loop/shared/contracts/realtime/v1"
)

// Summaries is the pure read-side aggregation over the Store: for a
// conversation and a viewing user it produces the last message plus the
// "other participant" view used both in list responses and in the
// conversation:created push payload.
type Summaries struct {
	store Store
}

// NewSummaries constructs the summary builder.
func NewSummaries(store Store) (*Summaries, error) {
	if store == nil {
		return nil, errors.New("social: nil store")
	}
	return &Summaries{store: store}, nil
}

// Summarize materializes the viewer's summary of a conversation.
// ok is false when the conversation no longer exists; a race with concurrent
// deletion is a normal, non-error outcome.
func (b *Summaries) Summarize(ctx context.Context, conversationID, viewerID string) (v1.ConversationSummaryPayload, bool, error) {
	view, err := b.store.LoadConversationWithLastMessage(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return v1.ConversationSummaryPayload{}, false, nil
	}
	if err != nil {
		return v1.ConversationSummaryPayload{}, false, err
	}
	return toSummary(view, viewerID), true, nil
}

// ListSummaries returns the viewer's summary of every conversation they
// belong to, ordered by updatedAt descending. This is the canonical
// conversation list order.
func (b *Summaries) ListSummaries(ctx context.Context, viewerID string) ([]v1.ConversationSummaryPayload, error) {
	views, err := b.store.ListConversationsForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	out := make([]v1.ConversationSummaryPayload, 0, len(views))
	for _, view := range views {
		out = append(out, toSummary(view, viewerID))
	}
	return out, nil
}

func toSummary(view ConversationView, viewerID string) v1.ConversationSummaryPayload {
	summary := v1.ConversationSummaryPayload{
		ID:   view.ID,
		Type: view.Type,
	}

	if last := view.LastMessage; last != nil {
		summary.LastMessage = &v1.LastMessageView{
			ID:        last.ID,
			Text:      last.Text,
			CreatedAt: last.CreatedAt,
			Sender: v1.SenderRef{
				ID:      last.SenderID,
				Display: displayName(last.SenderDisplay, last.SenderEmail),
			},
		}
	}

	// The single-counterpart view is only meaningful for direct
	// conversations; a group has no canonical "other participant", so the
	// field stays nil there instead of picking an arbitrary member.
	if view.Type == ConversationDM {
		for _, m := range view.Members {
			if m.UserID == viewerID {
				continue
			}
			status := m.Status
			if status == "" {
				status = realtime.StatusOffline
			}
			summary.Participant = &v1.ParticipantView{
				ID:      m.UserID,
				Display: displayName(m.Display, m.Email),
				Status:  status,
			}
			break
		}
	}

	return summary
}

// displayName resolves a profile display name, falling back to the
// email-derived name (the local part) when no display name is set.
func displayName(display, email string) string {
	if strings.TrimSpace(display) != "" {
		return display
	}
	return emailLocalPart(email)
}
