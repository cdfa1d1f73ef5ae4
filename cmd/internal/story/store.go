// Package story implements ephemeral media stories: a 24h-lived post
// visible to the author's accepted friends, swept by a periodic expiry
// job.
package story

import (
	"context"
	"time"
)

// Story is a single ephemeral post.
type Story struct {
	ID        string
	UserID    string
	MediaURL  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists stories.
//
// FeedFor returns unexpired stories authored by any of the given users,
// newest first. ExpireBefore deletes stories whose expiry is at or
// before the cutoff and returns the ids it removed.
type Store interface {
	Create(ctx context.Context, s Story) error
	FeedFor(ctx context.Context, userIDs []string, now time.Time) ([]Story, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}
