package auth

import (
	"context"
	"testing"
	"time"
)

func TestSessionIssuerRoundTripsThroughValidator(t *testing.T) {
	clockNow := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }

	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte("super-secret"),
		TTL:           30 * time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte("super-secret"),
		CookieName:    testSessionCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected validator error: %v", err)
	}

	session, err := issuer.Issue(context.Background(), "user-123", "user@example.com")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if session.Claims.SessionID() == "" {
		t.Fatalf("expected a session id")
	}
	if !session.ExpiresAt().Equal(clockNow.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", session.ExpiresAt())
	}

	claims, err := validator.ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.UserID != "user-123" || claims.Subject != "user-123" || claims.UserEmail != "user@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.SessionID() != session.Claims.SessionID() {
		t.Fatalf("session id mismatch: %s vs %s", claims.SessionID(), session.Claims.SessionID())
	}
}

func TestSessionIssuerIssuesDistinctSessionIDs(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	first, err := issuer.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	second, err := issuer.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if first.Claims.SessionID() == second.Claims.SessionID() {
		t.Fatalf("expected distinct session ids")
	}
}

func TestSessionIssuerRejectsMissingInputs(t *testing.T) {
	if _, err := NewSessionIssuer(SessionIssuerConfig{}); err == nil {
		t.Fatalf("expected constructor error for missing secret")
	}
	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte("secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := issuer.Issue(context.Background(), " ", "a@b.com"); err == nil {
		t.Fatalf("expected error for missing user id")
	}
}
