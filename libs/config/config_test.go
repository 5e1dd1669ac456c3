package config

import "testing"

func TestString(t *testing.T) {
	t.Setenv("LOG_LEVEL", "  ")
	if got := String("LOG_LEVEL", "info"); got != "info" {
		t.Fatalf("expected fallback info, got %q", got)
	}
	t.Setenv("LOG_LEVEL", " debug ")
	if got := String("LOG_LEVEL", "info"); got != "debug" {
		t.Fatalf("expected debug, got %q", got)
	}
}

func TestCheckPort(t *testing.T) {
	if err := CheckPort("PORT", "8085"); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
	for _, v := range []string{"99999", "0", "http"} {
		if err := CheckPort("PORT", v); err == nil {
			t.Fatalf("expected error for %q", v)
		}
	}
}

func TestBool(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "0")
	if Bool("OTEL_ENABLED", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("OTEL_ENABLED", "")
	if !Bool("OTEL_ENABLED", true) {
		t.Fatalf("expected fallback true")
	}
}
