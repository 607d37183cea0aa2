package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

var testSessionNow = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func signTestSession(t *testing.T, claims SessionClaims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestSessionValidator(t *testing.T) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return testSessionNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func validTestSessionClaims() SessionClaims {
	return SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "session-1",
			Issuer:    defaultSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(testSessionNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(testSessionNow.Add(time.Hour)),
		},
	}
}

func TestSessionValidatorAcceptsIssuedSession(t *testing.T) {
	validator := newTestSessionValidator(t)

	claims, err := validator.ValidateToken(signTestSession(t, validTestSessionClaims(), testSessionSigningSecret))
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID || claims.UserEmail != testSessionUserEmail {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.SessionID() != "session-1" {
		t.Fatalf("unexpected session id: %s", claims.SessionID())
	}
}

func TestSessionValidatorRejectsBadTokens(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*SessionClaims)
		secret  string
		wantErr error
	}{
		{
			name: "expired",
			mutate: func(c *SessionClaims) {
				c.ExpiresAt = jwt.NewNumericDate(testSessionNow.Add(-time.Hour))
			},
			wantErr: ErrExpiredSessionToken,
		},
		{
			name:    "no expiry",
			mutate:  func(c *SessionClaims) { c.ExpiresAt = nil },
			wantErr: ErrInvalidSessionToken,
		},
		{
			name:    "foreign issuer",
			mutate:  func(c *SessionClaims) { c.Issuer = "someone-else" },
			wantErr: ErrInvalidSessionToken,
		},
		{
			name:    "foreign secret",
			secret:  "other-secret",
			wantErr: ErrInvalidSessionToken,
		},
		{
			name:    "no user",
			mutate:  func(c *SessionClaims) { c.UserID = "" },
			wantErr: ErrMissingSessionSubject,
		},
	}

	validator := newTestSessionValidator(t)
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			claims := validTestSessionClaims()
			if testCase.mutate != nil {
				testCase.mutate(&claims)
			}
			secret := testCase.secret
			if secret == "" {
				secret = testSessionSigningSecret
			}
			if _, err := validator.ValidateToken(signTestSession(t, claims, secret)); !errors.Is(err, testCase.wantErr) {
				t.Fatalf("unexpected error: got %v, want %v", err, testCase.wantErr)
			}
		})
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	validator := newTestSessionValidator(t)

	request := httptest.NewRequest(http.MethodPost, "/api/delete-account", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signTestSession(t, validTestSessionClaims(), testSessionSigningSecret),
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}

	bare := httptest.NewRequest(http.MethodPost, "/api/delete-account", http.NoBody)
	if _, err := validator.ValidateRequest(bare); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewSessionValidatorRequiresSecretAndCookie(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{CookieName: testSessionCookieName}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("x")}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected missing cookie name error, got %v", err)
	}
}
