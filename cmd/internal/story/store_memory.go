package story

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is the dev/test fallback when DB is not configured.
type InMemoryStore struct {
	mu      sync.Mutex
	stories map[string]Story
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{stories: make(map[string]Story)}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Create(ctx context.Context, st Story) error {
	if st.ID == "" || st.UserID == "" || st.MediaURL == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[st.ID] = st
	return nil
}

func (s *InMemoryStore) FeedFor(ctx context.Context, userIDs []string, now time.Time) ([]Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	authors := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		authors[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Story
	for _, st := range s.stories {
		if _, ok := authors[st.UserID]; !ok {
			continue
		}
		if !st.ExpiresAt.After(now) {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, st := range s.stories {
		if st.ExpiresAt.After(cutoff) {
			continue
		}
		delete(s.stories, id)
		expired = append(expired, id)
	}
	sort.Strings(expired)
	return expired, nil
}
