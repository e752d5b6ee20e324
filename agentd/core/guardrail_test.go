package core

import (
	"errors"
	"testing"
	"time"
)

func TestGuardrailDenyDefaults(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{})

	if err := guard.Check("echo hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := guard.Check("rm -rf / --no-preserve-root"); !errors.Is(err, ErrPolicyRejected) {
		t.Fatalf("expected policy rejection, got %v", err)
	}
	if err := guard.Check("sudo SHUTDOWN now"); !errors.Is(err, ErrPolicyRejected) {
		t.Fatalf("expected case-insensitive rejection, got %v", err)
	}
}

func TestGuardrailAllowPrefixes(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{AllowPrefixes: []string{"echo", "ls"}})

	if err := guard.Check("echo hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := guard.Check("  ls -la"); err != nil {
		t.Fatalf("expected leading whitespace to be trimmed, got %v", err)
	}
	if err := guard.Check("cat /etc/passwd"); !errors.Is(err, ErrPolicyRejected) {
		t.Fatalf("expected allowlist rejection, got %v", err)
	}
}

func TestGuardrailDenyWinsOverAllow(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{
		AllowPrefixes:  []string{"rm"},
		DenySubstrings: []string{"rm -rf /"},
	})

	if err := guard.Check("rm -rf /"); !errors.Is(err, ErrPolicyRejected) {
		t.Fatalf("expected deny to override allow, got %v", err)
	}
	if err := guard.Check("rm old.log"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGuardrailCheckIsPure(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{MinInterval: time.Hour})

	// Check never consumes a rate slot.
	for i := 0; i < 10; i++ {
		if err := guard.Check("echo hi"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := guard.ReserveSlot(); err != nil {
		t.Fatalf("first reservation should succeed, got %v", err)
	}
}

func TestGuardrailReserveSlot(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{MinInterval: time.Second})
	current := time.Unix(1000, 0)
	guard.now = func() time.Time { return current }

	if err := guard.ReserveSlot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := guard.ReserveSlot(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}

	current = current.Add(500 * time.Millisecond)
	if err := guard.ReserveSlot(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit inside window, got %v", err)
	}

	current = current.Add(600 * time.Millisecond)
	if err := guard.ReserveSlot(); err != nil {
		t.Fatalf("expected acceptance after window, got %v", err)
	}
}

func TestGuardrailZeroIntervalDisablesRateLimit(t *testing.T) {
	guard := NewGuardrail(PolicyConfig{})
	for i := 0; i < 5; i++ {
		if err := guard.ReserveSlot(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
