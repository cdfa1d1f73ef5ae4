package invite

import (
	"context"
	"errors"
	"strings"

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
			return errors.New("invite: empty schema")
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
		return nil, errors.New("invite: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) Create(ctx context.Context, in Invite) error {
	if in.ID == "" || in.OwnerID == "" || in.Payload == "" || in.Signature == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	invites := pgx.Identifier{s.schema, "qr_invites"}.Sanitize()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+invites+` (id, owner_id, payload, signature, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.OwnerID, in.Payload, in.Signature, in.CreatedAt, in.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) GetBySignature(ctx context.Context, payload, signature string) (Invite, error) {
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	invites := pgx.Identifier{s.schema, "qr_invites"}.Sanitize()

	var inv Invite
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, payload, signature, created_at, expires_at
		   FROM `+invites+`
		  WHERE payload = $1 AND signature = $2
		  ORDER BY created_at DESC
		  LIMIT 1`,
		payload, signature,
	).Scan(&inv.ID, &inv.OwnerID, &inv.Payload, &inv.Signature, &inv.CreatedAt, &inv.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		return Invite{}, err
	}
	return inv, nil
}
