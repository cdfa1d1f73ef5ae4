package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loop/cmd/internal/realtime"
	"loop/cmd/internal/social"
)

const (
	// initialCoins is granted to every wallet on first touch.
	initialCoins = 500

	// teenMonthlyCap bounds total coins a TEEN account may send per
	// calendar month (UTC).
	teenMonthlyCap = 1000

	recentTransferLimit = 20

	maxMemoChars = 140
)

// View is the wallet read model returned to clients.
type View struct {
	Wallet    Wallet
	Transfers []Transfer
}

// Service coordinates wallet reads and transfers and pushes balance
// updates to both parties over the realtime fan-out.
type Service struct {
	log    *slog.Logger
	store  Store
	users  social.Store
	router *realtime.Router

	now func() time.Time
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithClock overrides the service clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the wallet service.
func NewService(log *slog.Logger, store Store, users social.Store, router *realtime.Router, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:    log,
		store:  store,
		users:  users,
		router: router,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the caller's wallet, creating it with the initial grant on
// first access, plus their most recent transfers.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	if userID == "" {
		return View{}, ErrInvalidInput
	}

	w, err := s.store.GetOrCreateWallet(ctx, userID, initialCoins)
	if err != nil {
		return View{}, fmt.Errorf("get wallet: %w", err)
	}
	transfers, err := s.store.ListRecentTransfers(ctx, userID, recentTransferLimit)
	if err != nil {
		return View{}, fmt.Errorf("list transfers: %w", err)
	}
	return View{Wallet: w, Transfers: transfers}, nil
}

// Transfer moves coins from the caller to another user. Teen senders are
// held to a monthly cap; balances for both parties are pushed after
// commit.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, coins int64, memo string) (TransferResult, error) {
	if fromID == "" || toID == "" || coins <= 0 {
		return TransferResult{}, ErrInvalidInput
	}
	if fromID == toID {
		return TransferResult{}, ErrSelfTransfer
	}
	memo = strings.TrimSpace(memo)
	if len([]rune(memo)) > maxMemoChars {
		return TransferResult{}, ErrInvalidInput
	}

	sender, err := s.users.GetUser(ctx, fromID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("load sender: %w", err)
	}
	if _, err := s.users.GetUser(ctx, toID); err != nil {
		return TransferResult{}, fmt.Errorf("load recipient: %w", err)
	}

	now := s.now()

	if sender.Role == social.RoleTeen {
		sent, err := s.store.SumSentSince(ctx, fromID, startOfMonth(now))
		if err != nil {
			return TransferResult{}, fmt.Errorf("sum sent: %w", err)
		}
		if sent+coins > teenMonthlyCap {
			return TransferResult{}, ErrMonthlyCapExceeded
		}
	}

	// Touch both wallets so the transfer has rows to move coins between.
	if _, err := s.store.GetOrCreateWallet(ctx, fromID, initialCoins); err != nil {
		return TransferResult{}, fmt.Errorf("ensure sender wallet: %w", err)
	}
	if _, err := s.store.GetOrCreateWallet(ctx, toID, initialCoins); err != nil {
		return TransferResult{}, fmt.Errorf("ensure recipient wallet: %w", err)
	}

	id, err := social.NewID(now)
	if err != nil {
		return TransferResult{}, fmt.Errorf("new transfer id: %w", err)
	}

	var memoPtr *string
	if memo != "" {
		memoPtr = &memo
	}

	res, err := s.store.Transfer(ctx, TransferInput{
		ID:     id,
		FromID: fromID,
		ToID:   toID,
		Coins:  coins,
		Memo:   memoPtr,
		Now:    now,
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.log.InfoContext(ctx, "wallet.transfer",
		slog.String("transfer_id", res.Transfer.ID),
		slog.String("from_id", fromID),
		slog.String("to_id", toID),
		slog.Int64("coins", coins),
	)

	if s.router != nil {
		s.router.NotifyWalletUpdate(fromID, res.SenderBalance)
		s.router.NotifyWalletUpdate(toID, res.RecipientBalance)
	}
	return res, nil
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
