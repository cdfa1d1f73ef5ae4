package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("LOOP_TEST_STR", "  value  ")
	if got := EnvString("LOOP_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("LOOP_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString missing = %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("LOOP_TEST_BOOL", "true")
	if !EnvBool("LOOP_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("LOOP_TEST_BOOL", "not-a-bool")
	if EnvBool("LOOP_TEST_BOOL", false) {
		t.Fatalf("invalid value must fall back to default")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("LOOP_TEST_INT", "42")
	if got := EnvInt("LOOP_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	t.Setenv("LOOP_TEST_INT", "-1")
	if got := EnvInt("LOOP_TEST_INT", 7); got != 7 {
		t.Fatalf("non-positive must fall back, got %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("LOOP_TEST_DUR", "250ms")
	if got := EnvDuration("LOOP_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v", got)
	}
	t.Setenv("LOOP_TEST_DUR", "nope")
	if got := EnvDuration("LOOP_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("invalid value must fall back, got %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.HTTPAddr == "" || cfg.LogLevel == "" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.DBSchema != "loop" {
		t.Fatalf("schema default = %q", cfg.DBSchema)
	}
	if cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		t.Fatalf("timeouts = %+v", cfg)
	}
}
