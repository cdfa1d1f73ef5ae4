package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSignAndVerify(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	raw, err := v.Sign("u1", nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sub, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "u1" {
		t.Fatalf("sub = %q, want u1", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	other, err := NewVerifier([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewVerifier other: %v", err)
	}

	raw, err := issuer.Sign("u1", nil)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := other.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	raw, err := v.Sign("u1", jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scope": "chat"}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(raw); !errors.Is(err, ErrNoSubject) {
		t.Fatalf("err = %v, want ErrNoSubject", err)
	}
}

func TestVerifyRejectsGarbageAndEmpty(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	for _, raw := range []string{"", "   ", "not.a.jwt"} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) err = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestNewVerifierRejectsShortSecret(t *testing.T) {
	if _, err := NewVerifier([]byte("short")); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
