package story

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"loop/cmd/internal/realtime"
	"loop/cmd/internal/social"
	v1 "loop/shared/contracts/realtime/v1"
)

// defaultTTL is how long a story stays visible after posting.
const defaultTTL = 24 * time.Hour

// Service coordinates story posting and feed reads, and pushes story
// announcements over the realtime fan-out.
type Service struct {
	log    *slog.Logger
	store  Store
	users  social.Store
	router *realtime.Router

	ttl time.Duration
	now func() time.Time
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithTTL overrides the story lifetime (default 24h).
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the service clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the story service.
func NewService(log *slog.Logger, store Store, users social.Store, router *realtime.Router, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:    log,
		store:  store,
		users:  users,
		router: router,
		ttl:    defaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Post creates a story for the caller and announces it. The story
// expires ttl after posting.
func (s *Service) Post(ctx context.Context, userID, mediaURL string) (Story, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	if userID == "" || mediaURL == "" {
		return Story{}, ErrInvalidInput
	}
	if u, err := url.Parse(mediaURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Story{}, ErrInvalidInput
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return Story{}, fmt.Errorf("load author: %w", err)
	}

	now := s.now()
	id, err := social.NewID(now)
	if err != nil {
		return Story{}, fmt.Errorf("new story id: %w", err)
	}

	st := Story{
		ID:        id,
		UserID:    userID,
		MediaURL:  mediaURL,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, st); err != nil {
		return Story{}, fmt.Errorf("create story: %w", err)
	}

	s.log.InfoContext(ctx, "story.posted",
		slog.String("story_id", st.ID),
		slog.String("user_id", userID),
	)

	if s.router != nil {
		s.router.NotifyStoryNew(v1.StoryNewPayload{
			ID:        st.ID,
			UserID:    st.UserID,
			MediaURL:  st.MediaURL,
			ExpiresAt: st.ExpiresAt,
		})
	}
	return st, nil
}

// Feed returns unexpired stories from the caller and their accepted
// friends, newest first.
func (s *Service) Feed(ctx context.Context, userID string) ([]Story, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	friends, err := s.users.ListAcceptedFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	authors := make([]string, 0, len(friends)+1)
	authors = append(authors, userID)
	for _, e := range friends {
		other := e.AID
		if other == userID {
			other = e.BID
		}
		authors = append(authors, other)
	}

	stories, err := s.store.FeedFor(ctx, authors, s.now())
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	return stories, nil
}

// Sweep removes stories past their expiry and announces the removals.
// Returns the ids it expired.
func (s *Service) Sweep(ctx context.Context) ([]string, error) {
	expired, err := s.store.ExpireBefore(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("expire stories: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	s.log.InfoContext(ctx, "story.swept", slog.Int("count", len(expired)))

	if s.router != nil {
		s.router.NotifyStoryExpired(expired)
	}
	return expired, nil
}
