package social

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is the dev/test fallback when DB is not configured.
// It implements the full Store contract with the same semantics the
// Postgres store provides, including the dmKey uniqueness invariant and the
// monotonic updatedAt bump.
type InMemoryStore struct {
	mu       sync.Mutex
	users    map[string]User
	profiles map[string]Profile
	friends  map[string]FriendEdge          // canonical "a:b" -> edge
	convs    map[string]*Conversation       // conv id -> conversation
	dmIndex  map[string]string              // dmKey -> conv id
	members  map[string]map[string]string   // conv id -> user id -> role
	msgs     map[string][]Message           // conv id -> messages in insertion order
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]User),
		profiles: make(map[string]Profile),
		friends:  make(map[string]FriendEdge),
		convs:    make(map[string]*Conversation),
		dmIndex:  make(map[string]string),
		members:  make(map[string]map[string]string),
		msgs:     make(map[string][]Message),
	}
}

// Close closes the store (noop for in-memory).
func (s *InMemoryStore) Close() error { return nil }

// PutUser seeds an account row. Dev/test hook; accounts are otherwise owned
// by the identity provider.
func (s *InMemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// GetUser returns the account row for id.
func (s *InMemoryStore) GetUser(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// GetProfile returns the profile for userID; missing profiles are zero-valued.
func (s *InMemoryStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return Profile{UserID: userID}, nil
}

// SetStatus upserts the profile status and bumps lastActiveAt.
func (s *InMemoryStore) SetStatus(ctx context.Context, userID, status string, now time.Time) error {
	if userID == "" || status == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		display := ""
		if u, found := s.users[userID]; found {
			display = emailLocalPart(u.Email)
		}
		p = Profile{UserID: userID, Display: display}
	}
	p.Status = status
	p.LastActiveAt = now
	s.profiles[userID] = p
	return nil
}

// UpsertFriend writes the canonical edge; ACCEPTED never downgrades.
func (s *InMemoryStore) UpsertFriend(ctx context.Context, x, y, state string) error {
	if x == "" || y == "" || x == y {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a, b := SortPair(x, y)
	key := a + ":" + b

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.friends[key]; ok && existing.State == FriendAccepted {
		return nil
	}
	s.friends[key] = FriendEdge{AID: a, BID: b, State: state}
	return nil
}

// ListAcceptedFriends returns every ACCEPTED edge touching userID.
func (s *InMemoryStore) ListAcceptedFriends(ctx context.Context, userID string) ([]FriendEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FriendEdge
	for _, e := range s.friends {
		if e.State != FriendAccepted {
			continue
		}
		if e.AID == userID || e.BID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AID != out[j].AID {
			return out[i].AID < out[j].AID
		}
		return out[i].BID < out[j].BID
	})
	return out, nil
}

// IsMember reports whether userID belongs to conversationID.
func (s *InMemoryStore) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[conversationID][userID]
	return ok, nil
}

// ListMemberships returns the conversation ids userID belongs to.
func (s *InMemoryStore) ListMemberships(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for convID, m := range s.members {
		if _, ok := m[userID]; ok {
			out = append(out, convID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListOtherMembers returns distinct members of the conversations, excluding one user.
func (s *InMemoryStore) ListOtherMembers(ctx context.Context, conversationIDs []string, excludeUserID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, convID := range conversationIDs {
		for userID := range s.members[convID] {
			if userID == excludeUserID {
				continue
			}
			seen[userID] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for userID := range seen {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

// EnsureDM returns the single DM for the pair, creating it when absent.
func (s *InMemoryStore) EnsureDM(ctx context.Context, creatorID, otherID string, now time.Time) (Conversation, bool, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	// The dmIndex lookup under the store lock is what collapses concurrent
	// creations for the same pair into one row.
	if convID, ok := s.dmIndex[key]; ok {
		return *s.convs[convID], false, nil
	}

	id, err := NewID(now)
	if err != nil {
		return Conversation{}, false, err
	}

	conv := Conversation{
		ID:        id,
		Type:      ConversationDM,
		DMKey:     key,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs[id] = &conv
	s.dmIndex[key] = id
	s.members[id] = map[string]string{
		creatorID: "member",
		otherID:   "member",
	}
	return conv, true, nil
}

// AppendMessage persists a message and advances updatedAt.
func (s *InMemoryStore) AppendMessage(ctx context.Context, in AppendMessageInput) (MessageView, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[in.ConvID]
	if !ok {
		return MessageView{}, ErrNotFound
	}

	id, err := NewID(now)
	if err != nil {
		return MessageView{}, err
	}

	msg := Message{
		ID:        id,
		ConvID:    in.ConvID,
		SenderID:  in.SenderID,
		Kind:      in.Kind,
		Text:      in.Text,
		MediaURL:  in.MediaURL,
		CreatedAt: now,
	}
	s.msgs[in.ConvID] = append(s.msgs[in.ConvID], msg)

	// updatedAt must advance on every message even if clocks stall; the
	// canonical list order depends on it.
	if now.After(conv.UpdatedAt) {
		conv.UpdatedAt = now
	} else {
		conv.UpdatedAt = conv.UpdatedAt.Add(time.Millisecond)
	}

	return s.viewLocked(msg), nil
}

// ListMessages returns a history page, cursor paging by message id.
func (s *InMemoryStore) ListMessages(ctx context.Context, in HistoryInput) (HistoryResult, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.msgs[in.ConvID]

	// Newest first, then take a page after the cursor.
	desc := make([]Message, len(all))
	copy(desc, all)
	sort.SliceStable(desc, func(i, j int) bool {
		if !desc[i].CreatedAt.Equal(desc[j].CreatedAt) {
			return desc[i].CreatedAt.After(desc[j].CreatedAt)
		}
		return desc[i].ID > desc[j].ID
	})

	start := 0
	if in.Cursor != "" {
		for i, m := range desc {
			if m.ID == in.Cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(desc) {
		end = len(desc)
	}
	page := desc[start:end]

	var next string
	if len(page) == limit && end < len(desc) {
		next = page[len(page)-1].ID
	}

	// Oldest first for display.
	items := make([]MessageView, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		items = append(items, s.viewLocked(page[i]))
	}

	return HistoryResult{Items: items, NextCursor: next}, nil
}

// LoadConversationWithLastMessage loads one conversation view.
func (s *InMemoryStore) LoadConversationWithLastMessage(ctx context.Context, conversationID string) (ConversationView, error) {
	if err := ctx.Err(); err != nil {
		return ConversationView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return ConversationView{}, ErrNotFound
	}
	return s.conversationViewLocked(*conv), nil
}

// ListConversationsForUser returns views ordered by updatedAt descending.
func (s *InMemoryStore) ListConversationsForUser(ctx context.Context, viewerID string) ([]ConversationView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ConversationView
	for convID, m := range s.members {
		if _, ok := m[viewerID]; !ok {
			continue
		}
		if conv, found := s.convs[convID]; found {
			out = append(out, s.conversationViewLocked(*conv))
		}
	}

	// Stable canonical order: updatedAt desc, id as tie-break.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- view assembly (lock held) ----

func (s *InMemoryStore) viewLocked(m Message) MessageView {
	v := MessageView{Message: m}
	if u, ok := s.users[m.SenderID]; ok {
		v.SenderEmail = u.Email
	}
	if p, ok := s.profiles[m.SenderID]; ok {
		v.SenderDisplay = p.Display
	}
	return v
}

func (s *InMemoryStore) conversationViewLocked(conv Conversation) ConversationView {
	view := ConversationView{Conversation: conv}

	memberIDs := make([]string, 0, len(s.members[conv.ID]))
	for userID := range s.members[conv.ID] {
		memberIDs = append(memberIDs, userID)
	}
	sort.Strings(memberIDs)

	for _, userID := range memberIDs {
		mv := MemberView{UserID: userID, Role: s.members[conv.ID][userID]}
		if u, ok := s.users[userID]; ok {
			mv.Email = u.Email
		}
		if p, ok := s.profiles[userID]; ok {
			mv.Display = p.Display
			mv.Status = p.Status
		}
		view.Members = append(view.Members, mv)
	}

	if msgs := s.msgs[conv.ID]; len(msgs) > 0 {
		// Most recent by creation time, insertion order breaking ties.
		last := msgs[0]
		for _, m := range msgs[1:] {
			if !m.CreatedAt.Before(last.CreatedAt) {
				last = m
			}
		}
		lv := s.viewLocked(last)
		view.LastMessage = &lv
	}

	return view
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
