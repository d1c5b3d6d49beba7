package auth

import (
	"path/filepath"
	"testing"
	"time"
)

func TestVerifyPassword(t *testing.T) {
	s := NewService("secret", "jwt-secret", time.Hour, "")
	if !s.VerifyPassword("secret") {
		t.Fatal("expected correct password to verify")
	}
	if s.VerifyPassword("wrong") {
		t.Fatal("expected incorrect password to fail")
	}
	if s.VerifyPassword("") {
		t.Fatal("expected empty password to fail")
	}
}

func TestVerifyPasswordUnconfigured(t *testing.T) {
	s := NewService("", "jwt-secret", time.Hour, "")
	if s.VerifyPassword("") {
		t.Fatal("expected unconfigured password to never match")
	}
}

func TestIssueTokenAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := NewService("secret", "jwt-secret", time.Hour, path)

	token, err := s.IssueToken("conn-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !s.IsValid("conn-1", token) {
		t.Fatal("expected issued token to validate")
	}
	if s.IsValid("conn-1", "bogus") {
		t.Fatal("expected wrong token to fail validation")
	}

	// A second instance reading the same file sees the persisted token.
	reloaded := NewService("secret", "jwt-secret", time.Hour, path)
	if !reloaded.IsValid("conn-1", token) {
		t.Fatal("expected token to survive reload from disk")
	}
}

func TestIssueTokenDisabledWithoutSecret(t *testing.T) {
	s := NewService("secret", "", time.Hour, "")
	if _, err := s.IssueToken("conn-1"); err != ErrAuthDisabled {
		t.Fatalf("IssueToken error = %v, want ErrAuthDisabled", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc := newJWTService("my-secret", time.Minute)
	token, err := svc.Generate("conn-42")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	sub, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sub != "conn-42" {
		t.Fatalf("Validate subject = %q", sub)
	}
}

func TestJWTValidateRejectsWrongSecret(t *testing.T) {
	issuer := newJWTService("secret-a", time.Minute)
	token, err := issuer.Generate("conn-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	verifier := newJWTService("secret-b", time.Minute)
	if _, err := verifier.Validate(token); err != ErrInvalidToken {
		t.Fatalf("Validate error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTZeroExpiryNeverExpires(t *testing.T) {
	svc := newJWTService("secret", 0)
	token, err := svc.Generate("conn-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Validate(token); err != nil {
		t.Fatalf("Validate: %v, want a zero-expiry token to remain valid", err)
	}
}
