package wallet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL. The pool is owned by the
// caller; Close is a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "loop").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("wallet: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "loop"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("wallet: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) GetOrCreateWallet(ctx context.Context, userID string, initialCoins int64) (Wallet, error) {
	if userID == "" {
		return Wallet{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}

	wallets := pgx.Identifier{s.schema, "wallets"}.Sanitize()

	var w Wallet
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+wallets+` (user_id, coins)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING user_id, coins`,
		userID, initialCoins,
	).Scan(&w.UserID, &w.Coins)
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (s *PostgresStore) ListRecentTransfers(ctx context.Context, userID string, limit int) ([]Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	transfers := pgx.Identifier{s.schema, "coin_transfers"}.Sanitize()

	rows, err := s.pool.Query(ctx,
		`SELECT id, from_id, to_id, coins, memo, created_at
		   FROM `+transfers+`
		  WHERE from_id = $1 OR to_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.FromID, &t.ToID, &t.Coins, &t.Memo, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SumSentSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	transfers := pgx.Identifier{s.schema, "coin_transfers"}.Sanitize()

	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(coins), 0)
		   FROM `+transfers+`
		  WHERE from_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *PostgresStore) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
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

	wallets := pgx.Identifier{s.schema, "wallets"}.Sanitize()
	transfers := pgx.Identifier{s.schema, "coin_transfers"}.Sanitize()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Debit conditionally so a concurrent spend cannot push the sender
	// balance negative.
	var senderBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE `+wallets+`
		    SET coins = coins - $2
		  WHERE user_id = $1 AND coins >= $2
		  RETURNING coins`,
		in.FromID, in.Coins,
	).Scan(&senderBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, ErrInsufficientBalance
	}
	if err != nil {
		return TransferResult{}, err
	}

	var recipientBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE `+wallets+`
		    SET coins = coins + $2
		  WHERE user_id = $1
		  RETURNING coins`,
		in.ToID, in.Coins,
	).Scan(&recipientBalance)
	if err != nil {
		return TransferResult{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+transfers+` (id, from_id, to_id, coins, memo, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.FromID, in.ToID, in.Coins, in.Memo, now,
	); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		Transfer: Transfer{
			ID:        in.ID,
			FromID:    in.FromID,
			ToID:      in.ToID,
			Coins:     in.Coins,
			Memo:      in.Memo,
			CreatedAt: now,
		},
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
	}, nil
}
