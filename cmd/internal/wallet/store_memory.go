package wallet

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is the dev/test fallback when DB is not configured.
type InMemoryStore struct {
	mu        sync.Mutex
	wallets   map[string]int64
	transfers []Transfer
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{wallets: make(map[string]int64)}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetOrCreateWallet(ctx context.Context, userID string, initialCoins int64) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[userID]; !ok {
		s.wallets[userID] = initialCoins
	}
	return Wallet{UserID: userID, Coins: s.wallets[userID]}, nil
}

func (s *InMemoryStore) ListRecentTransfers(ctx context.Context, userID string, limit int) ([]Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Transfer
	for _, t := range s.transfers {
		if t.FromID == userID || t.ToID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SumSentSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, t := range s.transfers {
		if t.FromID == userID && !t.CreatedAt.Before(since) {
			total += t.Coins
		}
	}
	return total, nil
}

func (s *InMemoryStore) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.ID == "" || in.FromID == "" || in.ToID == "" || in.Coins <= 0 {
		return TransferResult{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return TransferResult{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallets[in.FromID] < in.Coins {
		return TransferResult{}, ErrInsufficientBalance
	}

	s.wallets[in.FromID] -= in.Coins
	s.wallets[in.ToID] += in.Coins

	t := Transfer{
		ID:        in.ID,
		FromID:    in.FromID,
		ToID:      in.ToID,
		Coins:     in.Coins,
		Memo:      in.Memo,
		CreatedAt: now,
	}
	s.transfers = append(s.transfers, t)

	return TransferResult{
		Transfer:         t,
		SenderBalance:    s.wallets[in.FromID],
		RecipientBalance: s.wallets[in.ToID],
	}, nil
}
