package social

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
// - EnsureDM serializes per dmKey with a transactional advisory lock plus an
//   ON CONFLICT upsert, so concurrent creations for the same pair resolve to
//   exactly one conversation row.
// - AppendMessage bumps updated_at with GREATEST(updated_at + 1ms, now) so
//   the canonical list order always advances.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "loop").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("social: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("social: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "loop",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("social: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, role FROM `+users+` WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	profiles := pgIdent(s.schema, "profiles")

	var p Profile
	var display, status *string
	var lastActive *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, display, status, last_active_at FROM `+profiles+` WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &display, &status, &lastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		return Profile{}, err
	}
	if display != nil {
		p.Display = *display
	}
	if status != nil {
		p.Status = *status
	}
	if lastActive != nil {
		p.LastActiveAt = *lastActive
	}
	return p, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, userID, status string, now time.Time) error {
	if userID == "" || status == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")
	profiles := pgIdent(s.schema, "profiles")

	// The default display is the email local part; an existing display is
	// never overwritten here.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+profiles+` (user_id, display, status, last_active_at)
		 SELECT u.id, split_part(u.email, '@', 1), $2, $3
		   FROM `+users+` u WHERE u.id = $1
		 ON CONFLICT (user_id)
		 DO UPDATE SET status = EXCLUDED.status, last_active_at = EXCLUDED.last_active_at`,
		userID, status, now,
	)
	return err
}

func (s *PostgresStore) UpsertFriend(ctx context.Context, x, y, state string) error {
	if x == "" || y == "" || x == y {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a, b := SortPair(x, y)
	friends := pgIdent(s.schema, "friends")

	// ACCEPTED never downgrades to PENDING.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+friends+` (a_id, b_id, state) VALUES ($1, $2, $3)
		 ON CONFLICT (a_id, b_id)
		 DO UPDATE SET state = EXCLUDED.state
		 WHERE `+friends+`.state <> 'ACCEPTED'`,
		a, b, state,
	)
	return err
}

func (s *PostgresStore) ListAcceptedFriends(ctx context.Context, userID string) ([]FriendEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	friends := pgIdent(s.schema, "friends")

	rows, err := s.pool.Query(ctx,
		`SELECT a_id, b_id, state FROM `+friends+`
		  WHERE state = 'ACCEPTED' AND (a_id = $1 OR b_id = $1)
		  ORDER BY a_id, b_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FriendEdge
	for rows.Next() {
		var e FriendEdge
		if err := rows.Scan(&e.AID, &e.BID, &e.State); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" || conversationID == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	members := pgIdent(s.schema, "conversation_members")

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+members+` WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members := pgIdent(s.schema, "conversation_members")

	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id FROM `+members+` WHERE user_id = $1 ORDER BY conversation_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOtherMembers(ctx context.Context, conversationIDs []string, excludeUserID string) ([]string, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members := pgIdent(s.schema, "conversation_members")

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM `+members+`
		  WHERE conversation_id = ANY($1) AND user_id <> $2
		  ORDER BY user_id`,
		conversationIDs, excludeUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnsureDM(ctx context.Context, creatorID, otherID string, now time.Time) (Conversation, bool, error) {
	if creatorID == "" || otherID == "" || creatorID == otherID {
		return Conversation{}, false, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Conversation{}, false, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	key := DMKey(creatorID, otherID)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Conversation{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conversations := pgIdent(s.schema, "conversations")
	members := pgIdent(s.schema, "conversation_members")

	// Serialize DM creation per pair; the second writer's creation collapses
	// into a read of the existing row.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return Conversation{}, false, fmt.Errorf("advisory lock: %w", err)
	}

	var conv Conversation
	err = tx.QueryRow(ctx,
		`SELECT id, type, dm_key, created_by, created_at, updated_at
		   FROM `+conversations+` WHERE dm_key = $1`,
		key,
	).Scan(&conv.ID, &conv.Type, &conv.DMKey, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return Conversation{}, false, err
		}
		return conv, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, false, err
	}

	id, err := NewID(now)
	if err != nil {
		return Conversation{}, false, err
	}

	conv = Conversation{
		ID:        id,
		Type:      ConversationDM,
		DMKey:     key,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+conversations+` (id, type, dm_key, created_by, created_at, updated_at)
		 VALUES ($1, 'DM', $2, $3, $4, $4)`,
		conv.ID, key, creatorID, now,
	); err != nil {
		return Conversation{}, false, err
	}

	a, b := SortPair(creatorID, otherID)
	if _, err := tx.Exec(ctx,
		`INSERT INTO `+members+` (conversation_id, user_id, role)
		 VALUES ($1, $2, 'member'), ($1, $3, 'member')`,
		conv.ID, a, b,
	); err != nil {
		return Conversation{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, in AppendMessageInput) (MessageView, error) {
	if in.ConvID == "" || in.SenderID == "" || !ValidKind(in.Kind) {
		return MessageView{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return MessageView{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return MessageView{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conversations := pgIdent(s.schema, "conversations")
	messages := pgIdent(s.schema, "messages")

	// updated_at must strictly advance even when timestamps collide.
	tag, err := tx.Exec(ctx,
		`UPDATE `+conversations+`
		    SET updated_at = GREATEST(updated_at + interval '1 millisecond', $2)
		  WHERE id = $1`,
		in.ConvID, now,
	)
	if err != nil {
		return MessageView{}, err
	}
	if tag.RowsAffected() == 0 {
		return MessageView{}, ErrNotFound
	}

	id, err := NewID(now)
	if err != nil {
		return MessageView{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+messages+` (id, conversation_id, sender_id, kind, text, media_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, in.ConvID, in.SenderID, in.Kind, in.Text, in.MediaURL, now,
	); err != nil {
		return MessageView{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MessageView{}, err
	}

	view := MessageView{
		Message: Message{
			ID:        id,
			ConvID:    in.ConvID,
			SenderID:  in.SenderID,
			Kind:      in.Kind,
			Text:      in.Text,
			MediaURL:  in.MediaURL,
			CreatedAt: now,
		},
	}

	users := pgIdent(s.schema, "users")
	profiles := pgIdent(s.schema, "profiles")

	var display *string
	if err := s.pool.QueryRow(ctx,
		`SELECT u.email, p.display
		   FROM `+users+` u
		   LEFT JOIN `+profiles+` p ON p.user_id = u.id
		  WHERE u.id = $1`,
		in.SenderID,
	).Scan(&view.SenderEmail, &display); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return MessageView{}, err
	}
	if display != nil {
		view.SenderDisplay = *display
	}

	return view, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, in HistoryInput) (HistoryResult, error) {
	if in.ConvID == "" {
		return HistoryResult{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return HistoryResult{}, err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	messages := pgIdent(s.schema, "messages")
	users := pgIdent(s.schema, "users")
	profiles := pgIdent(s.schema, "profiles")

	base := `SELECT m.id, m.conversation_id, m.sender_id, m.kind, m.text, m.media_url, m.created_at,
	                u.email, p.display
	           FROM ` + messages + ` m
	           JOIN ` + users + ` u ON u.id = m.sender_id
	           LEFT JOIN ` + profiles + ` p ON p.user_id = m.sender_id
	          WHERE m.conversation_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if in.Cursor == "" {
		rows, err = s.pool.Query(ctx,
			base+` ORDER BY m.created_at DESC, m.id DESC LIMIT $2`,
			in.ConvID, limit,
		)
	} else {
		// Message ids are ULIDs: ordering by (created_at, id) descending and
		// anchoring on the cursor row's position pages without gaps.
		rows, err = s.pool.Query(ctx,
			base+` AND (m.created_at, m.id) < (
			          SELECT c.created_at, c.id FROM `+messages+` c WHERE c.id = $2
			        )
			  ORDER BY m.created_at DESC, m.id DESC LIMIT $3`,
			in.ConvID, in.Cursor, limit,
		)
	}
	if err != nil {
		return HistoryResult{}, err
	}
	defer rows.Close()

	var desc []MessageView
	for rows.Next() {
		var v MessageView
		var display *string
		if err := rows.Scan(&v.ID, &v.ConvID, &v.SenderID, &v.Kind, &v.Text, &v.MediaURL, &v.CreatedAt, &v.SenderEmail, &display); err != nil {
			return HistoryResult{}, err
		}
		if display != nil {
			v.SenderDisplay = *display
		}
		desc = append(desc, v)
	}
	if err := rows.Err(); err != nil {
		return HistoryResult{}, err
	}

	var next string
	if len(desc) == limit {
		next = desc[len(desc)-1].ID
	}

	items := make([]MessageView, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		items = append(items, desc[i])
	}
	return HistoryResult{Items: items, NextCursor: next}, nil
}

func (s *PostgresStore) LoadConversationWithLastMessage(ctx context.Context, conversationID string) (ConversationView, error) {
	if err := ctx.Err(); err != nil {
		return ConversationView{}, err
	}

	conversations := pgIdent(s.schema, "conversations")

	var conv Conversation
	var dmKey *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, type, dm_key, created_by, created_at, updated_at
		   FROM `+conversations+` WHERE id = $1`,
		conversationID,
	).Scan(&conv.ID, &conv.Type, &dmKey, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationView{}, ErrNotFound
	}
	if err != nil {
		return ConversationView{}, err
	}
	if dmKey != nil {
		conv.DMKey = *dmKey
	}

	view := ConversationView{Conversation: conv}
	if err := s.fillMembers(ctx, &view); err != nil {
		return ConversationView{}, err
	}
	if err := s.fillLastMessage(ctx, &view); err != nil {
		return ConversationView{}, err
	}
	return view, nil
}

func (s *PostgresStore) ListConversationsForUser(ctx context.Context, viewerID string) ([]ConversationView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conversations := pgIdent(s.schema, "conversations")
	members := pgIdent(s.schema, "conversation_members")

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.type, c.dm_key, c.created_by, c.created_at, c.updated_at
		   FROM `+conversations+` c
		   JOIN `+members+` m ON m.conversation_id = c.id
		  WHERE m.user_id = $1
		  ORDER BY c.updated_at DESC, c.id DESC`,
		viewerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationView
	for rows.Next() {
		var conv Conversation
		var dmKey *string
		if err := rows.Scan(&conv.ID, &conv.Type, &dmKey, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		if dmKey != nil {
			conv.DMKey = *dmKey
		}
		out = append(out, ConversationView{Conversation: conv})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.fillMembers(ctx, &out[i]); err != nil {
			return nil, err
		}
		if err := s.fillLastMessage(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) fillMembers(ctx context.Context, view *ConversationView) error {
	members := pgIdent(s.schema, "conversation_members")
	users := pgIdent(s.schema, "users")
	profiles := pgIdent(s.schema, "profiles")

	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id, m.role, u.email, p.display, p.status
		   FROM `+members+` m
		   JOIN `+users+` u ON u.id = m.user_id
		   LEFT JOIN `+profiles+` p ON p.user_id = m.user_id
		  WHERE m.conversation_id = $1
		  ORDER BY m.user_id`,
		view.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var mv MemberView
		var display, status *string
		if err := rows.Scan(&mv.UserID, &mv.Role, &mv.Email, &display, &status); err != nil {
			return err
		}
		if display != nil {
			mv.Display = *display
		}
		if status != nil {
			mv.Status = *status
		}
		view.Members = append(view.Members, mv)
	}
	return rows.Err()
}

func (s *PostgresStore) fillLastMessage(ctx context.Context, view *ConversationView) error {
	messages := pgIdent(s.schema, "messages")
	users := pgIdent(s.schema, "users")
	profiles := pgIdent(s.schema, "profiles")

	var v MessageView
	var display *string
	err := s.pool.QueryRow(ctx,
		`SELECT m.id, m.conversation_id, m.sender_id, m.kind, m.text, m.media_url, m.created_at,
		        u.email, p.display
		   FROM `+messages+` m
		   JOIN `+users+` u ON u.id = m.sender_id
		   LEFT JOIN `+profiles+` p ON p.user_id = m.sender_id
		  WHERE m.conversation_id = $1
		  ORDER BY m.created_at DESC, m.id DESC
		  LIMIT 1`,
		view.ID,
	).Scan(&v.ID, &v.ConvID, &v.SenderID, &v.Kind, &v.Text, &v.MediaURL, &v.CreatedAt, &v.SenderEmail, &display)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if display != nil {
		v.SenderDisplay = *display
	}
	view.LastMessage = &v
	return nil
}

// ---- identifier helpers ----

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
