package invite

import (
	"context"
	"time"
)

// Invite is a stored QR invite row. The payload is the exact signed JSON
// string; signature verification happens in the service, the store only
// persists and looks up.
type Invite struct {
	ID        string
	OwnerID   string
	Payload   string
	Signature string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store is the persistence boundary for QR invites.
type Store interface {
	Create(ctx context.Context, in Invite) error
	GetBySignature(ctx context.Context, payload, signature string) (Invite, error)
	Close() error
}
