package story

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
			return errors.New("story: empty schema")
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
		return nil, errors.New("story: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) Create(ctx context.Context, st Story) error {
	if st.ID == "" || st.UserID == "" || st.MediaURL == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stories := pgx.Identifier{s.schema, "stories"}.Sanitize()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+stories+` (id, user_id, media_url, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		st.ID, st.UserID, st.MediaURL, st.CreatedAt, st.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) FeedFor(ctx context.Context, userIDs []string, now time.Time) ([]Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	stories := pgx.Identifier{s.schema, "stories"}.Sanitize()

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, media_url, created_at, expires_at
		   FROM `+stories+`
		  WHERE user_id = ANY($1) AND expires_at > $2
		  ORDER BY created_at DESC, id DESC`,
		userIDs, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Story
	for rows.Next() {
		var st Story
		if err := rows.Scan(&st.ID, &st.UserID, &st.MediaURL, &st.CreatedAt, &st.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stories := pgx.Identifier{s.schema, "stories"}.Sanitize()

	rows, err := s.pool.Query(ctx,
		`DELETE FROM `+stories+`
		  WHERE expires_at <= $1
		  RETURNING id`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		expired = append(expired, id)
	}
	return expired, rows.Err()
}
