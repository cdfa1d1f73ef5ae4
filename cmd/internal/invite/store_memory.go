package invite

import (
	"context"
	"sync"
)

// InMemoryStore is the dev/test fallback when DB is not configured.
type InMemoryStore struct {
	mu      sync.Mutex
	invites []Invite
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// Create persists an invite row.
func (s *InMemoryStore) Create(ctx context.Context, in Invite) error {
	if in.ID == "" || in.OwnerID == "" || in.Payload == "" || in.Signature == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites = append(s.invites, in)
	return nil
}

// GetBySignature looks up an invite by its exact payload and signature.
func (s *InMemoryStore) GetBySignature(ctx context.Context, payload, signature string) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invites {
		if inv.Payload == payload && inv.Signature == signature {
			return inv, nil
		}
	}
	return Invite{}, ErrNotFound
}
