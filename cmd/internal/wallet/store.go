// Package wallet implements the in-app coin wallet: lazily created balances,
// peer transfers with a teen monthly cap, and wallet:update pushes.
package wallet

import (
	"context"
	"time"
)

// Wallet is a user's coin balance.
type Wallet struct {
	UserID string
	Coins  int64
}

// Transfer is an immutable coin movement between two users.
type Transfer struct {
	ID        string
	FromID    string
	ToID      string
	Coins     int64
	Memo      *string
	CreatedAt time.Time
}

// TransferInput describes a transfer request. Both wallets must already
// exist; the service ensures that before calling the store.
type TransferInput struct {
	ID     string
	FromID string
	ToID   string
	Coins  int64
	Memo   *string
	Now    time.Time
}

// TransferResult reports the post-transfer balances.
type TransferResult struct {
	Transfer         Transfer
	SenderBalance    int64
	RecipientBalance int64
}

// Store is the persistence boundary for wallets and transfers.
//
// Transfer must be atomic: the balance check, both balance updates, and the
// transfer row commit or roll back together (ErrInsufficientBalance when the
// sender cannot cover the amount).
type Store interface {
	GetOrCreateWallet(ctx context.Context, userID string, initialCoins int64) (Wallet, error)
	ListRecentTransfers(ctx context.Context, userID string, limit int) ([]Transfer, error)
	// SumSentSince returns the total coins userID sent at or after since.
	SumSentSince(ctx context.Context, userID string, since time.Time) (int64, error)
	Transfer(ctx context.Context, in TransferInput) (TransferResult, error)
	Close() error
}
