package invite

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"loop/cmd/internal/social"
)

const (
	defaultTTL     = 10 * time.Minute
	defaultQRSize  = 256
	minSecretBytes = 32
)

// Payload is the signed content of a QR invite.
type Payload struct {
	UID     string    `json:"uid"`
	Display string    `json:"display"`
	Nonce   string    `json:"nonce"`
	TS      time.Time `json:"ts"`
}

// Issued is what the owner shows to a prospective friend.
type Issued struct {
	QRPNG     string // data URL, image/png base64
	Payload   string
	Signature string
	ExpiresAt time.Time
}

// Service issues and accepts HMAC-signed QR friend invites. An accepted
// invite upserts the ACCEPTED friend edge and the DM conversation for the
// pair, with the personalized conversation:created pushes handled by the
// chat service.
type Service struct {
	log    *slog.Logger
	store  Store
	users  social.Store
	chat   *social.Service
	secret []byte

	ttl    time.Duration
	qrSize int
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithTTL sets the invite lifetime (default 10 minutes).
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl <= 0 {
			return ErrInvalidInput
		}
		s.ttl = ttl
		return nil
	}
}

// WithQRSize sets the QR image edge length in pixels.
func WithQRSize(px int) Option {
	return func(s *Service) error {
		if px <= 0 {
			return ErrInvalidInput
		}
		s.qrSize = px
		return nil
	}
}

// WithClock overrides the service clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(log *slog.Logger, store Store, users social.Store, chat *social.Service, secret []byte, opts ...Option) (*Service, error) {
	if store == nil || users == nil || chat == nil {
		return nil, ErrInvalidInput
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("invite: secret too short: need >= %d bytes", minSecretBytes)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		log:    log,
		store:  store,
		users:  users,
		chat:   chat,
		secret: secret,
		ttl:    defaultTTL,
		qrSize: defaultQRSize,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IssueQR creates a signed, time-boxed invite for ownerID and renders it as
// a QR PNG data URL.
func (s *Service) IssueQR(ctx context.Context, ownerID string) (Issued, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Issued{}, ErrInvalidInput
	}

	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return Issued{}, err
	}
	profile, err := s.users.GetProfile(ctx, ownerID)
	if err != nil {
		return Issued{}, err
	}

	now := s.now()
	nonce, err := social.NewID(now)
	if err != nil {
		return Issued{}, err
	}

	display := profile.Display
	if display == "" {
		display = localPart(user.Email)
	}

	payloadJSON, err := json.Marshal(Payload{
		UID:     ownerID,
		Display: display,
		Nonce:   nonce,
		TS:      now,
	})
	if err != nil {
		return Issued{}, err
	}

	payload := string(payloadJSON)
	signature := s.sign(payload)
	expiresAt := now.Add(s.ttl)

	id, err := social.NewID(now)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.Create(ctx, Invite{
		ID:        id,
		OwnerID:   ownerID,
		Payload:   payload,
		Signature: signature,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		return Issued{}, fmt.Errorf("store invite: %w", err)
	}

	qrValue, err := json.Marshal(struct {
		Payload   string `json:"payload"`
		Signature string `json:"signature"`
	}{payload, signature})
	if err != nil {
		return Issued{}, err
	}

	png, err := qrcode.Encode(string(qrValue), qrcode.Medium, s.qrSize)
	if err != nil {
		return Issued{}, fmt.Errorf("render qr: %w", err)
	}

	s.log.Info("invite.issued", "invite_id", id, "owner_id", ownerID)

	return Issued{
		QRPNG:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Payload:   payload,
		Signature: signature,
		ExpiresAt: expiresAt,
	}, nil
}

// AcceptQR verifies a scanned invite and, on success, makes the two users
// accepted friends with a DM conversation between them. Returns the
// conversation id.
func (s *Service) AcceptQR(ctx context.Context, userID, payload, signature string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || payload == "" || signature == "" {
		return "", ErrInvalidInput
	}

	if !hmac.Equal([]byte(s.sign(payload)), []byte(signature)) {
		return "", ErrInvalidSignature
	}

	var p Payload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("%w: bad payload", ErrInvalidInput)
	}
	if strings.TrimSpace(p.UID) == "" {
		return "", fmt.Errorf("%w: missing uid", ErrInvalidInput)
	}
	if p.UID == userID {
		return "", ErrSelfInvite
	}

	inv, err := s.store.GetBySignature(ctx, payload, signature)
	if err != nil {
		return "", err
	}
	if s.now().After(inv.ExpiresAt) {
		return "", ErrExpired
	}

	conv, err := s.chat.CreateDM(ctx, userID, p.UID)
	if err != nil {
		return "", err
	}

	s.log.Info("invite.accepted", "invite_id", inv.ID, "owner_id", inv.OwnerID, "accepted_by", userID, "conversation_id", conv.ID)
	return conv.ID, nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
