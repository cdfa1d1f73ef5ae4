package realtime

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestBearerTokenSources(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := bearerToken(r); got != "abc123" {
		t.Fatalf("header token = %q", got)
	}

	// Case-insensitive scheme.
	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "bearer abc123")
	if got := bearerToken(r); got != "abc123" {
		t.Fatalf("lowercase scheme token = %q", got)
	}

	// Browser clients cannot set headers; query fallback.
	r = httptest.NewRequest("GET", "/ws?token=qrs789", nil)
	if got := bearerToken(r); got != "qrs789" {
		t.Fatalf("query token = %q", got)
	}

	// Header wins over query.
	r = httptest.NewRequest("GET", "/ws?token=query", nil)
	r.Header.Set("Authorization", "Bearer header")
	if got := bearerToken(r); got != "header" {
		t.Fatalf("precedence token = %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	if got := bearerToken(r); got != "" {
		t.Fatalf("empty request token = %q", got)
	}
}

func TestOriginHostOnly(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://app.example.com", "app.example.com"},
		{"https://App.Example.com:8443", "app.example.com"},
		{"app.example.com:443", "app.example.com"},
		{"app.example.com", "app.example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := originHostOnly(tc.in); got != tc.want {
			t.Fatalf("originHostOnly(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{
		"https://b.example.com",
		"https://a.example.com:8443",
		"https://b.example.com:9443", // duplicate host
		"*",                          // wildcard never becomes a pattern
		"",
	})
	want := []string{"a.example.com", "b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("patterns = %v, want %v", got, want)
	}
}
