package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

// Verifier validates HS256 JWTs and extracts the user id from the sub claim.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier. The secret must be at least 32 bytes.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("token: secret too short: need >= %d bytes", minSecretBytes)
	}
	return &Verifier{secret: secret}, nil
}

// Verify parses and validates the token and returns the subject user id.
func (v *Verifier) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}

	tok, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return "", ErrInvalidToken
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", errors.Join(ErrNoSubject, err)
	}
	if strings.TrimSpace(sub) == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

// Sign issues a token for a user id. Exposed for dev tooling and tests; the
// production issuer is the external identity provider.
func (v *Verifier) Sign(userID string, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = userID
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
