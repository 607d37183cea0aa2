package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/showcase/internal/auth"
	"github.com/MarcoPoloResearchLab/showcase/internal/profiles"
	"github.com/MarcoPoloResearchLab/showcase/internal/users"
	"go.uber.org/zap"
)

var (
	errMissingSessions   = errors.New("backend: session validator required")
	errMissingIssuer     = errors.New("backend: session issuer required")
	errMissingExchanger  = errors.New("backend: code exchanger required")
	errMissingIdentities = errors.New("backend: identity service required")
	errMissingProfiles   = errors.New("backend: profile store required")
	errMissingRequest    = errors.New("backend: request credentials required")
)

// LocalConfig wires the services that back the local client.
type LocalConfig struct {
	Sessions           *auth.SessionValidator
	Issuer             *auth.SessionIssuer
	Revocations        auth.RevocationStore
	Exchanger          auth.CodeExchanger
	Identities         *users.Service
	Profiles           *profiles.Store
	VerifierCookieName string
	Cookie             auth.CookieOptions
	Logger             *zap.Logger
}

// LocalFactory builds clients backed by the service's own database, session
// cookies and identity provider.
type LocalFactory struct {
	cfg    LocalConfig
	logger *zap.Logger
}

// NewLocalFactory validates the configuration and returns a LocalFactory.
func NewLocalFactory(cfg LocalConfig) (*LocalFactory, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, errMissingSessions
	case cfg.Issuer == nil:
		return nil, errMissingIssuer
	case cfg.Exchanger == nil:
		return nil, errMissingExchanger
	case cfg.Identities == nil:
		return nil, errMissingIdentities
	case cfg.Profiles == nil:
		return nil, errMissingProfiles
	}
	if cfg.Revocations == nil {
		cfg.Revocations = auth.NoopRevocationStore{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFactory{cfg: cfg, logger: logger}, nil
}

// ForRequest returns a client bound to the request cookies and response writer.
func (f *LocalFactory) ForRequest(credentials Credentials) (Client, error) {
	if credentials.Request == nil || credentials.Writer == nil {
		return nil, errMissingRequest
	}
	return &localClient{
		LocalConfig: f.cfg,
		request:     credentials.Request,
		writer:      credentials.Writer,
		logger:      f.logger,
	}, nil
}

type localClient struct {
	LocalConfig
	request *http.Request
	writer  http.ResponseWriter
	logger  *zap.Logger
}

func (c *localClient) GetUser(ctx context.Context) (User, error) {
	claims, err := c.Sessions.ValidateRequest(c.request)
	if err != nil {
		c.logger.Debug("session cookie rejected", zap.Error(err))
		return User{}, ErrNoSession
	}
	if claims.SessionID() == "" {
		c.logger.Debug("session cookie has no session id")
		return User{}, ErrNoSession
	}

	revoked, err := c.Revocations.IsRevoked(ctx, claims.SessionID())
	if err != nil {
		return User{}, newError(OpGetUser, http.StatusServiceUnavailable, "session lookup failed", err)
	}
	if revoked {
		return User{}, ErrNoSession
	}

	identity, found, err := c.Identities.Lookup(ctx, claims.UserID)
	if err != nil {
		return User{}, newError(OpGetUser, http.StatusInternalServerError, "identity lookup failed", err)
	}
	if !found {
		return User{}, ErrNoSession
	}
	return User{ID: identity.UserID, Email: identity.Email}, nil
}

func (c *localClient) SignOut(ctx context.Context) error {
	defer auth.ClearCookie(c.writer, c.Sessions.CookieName(), c.Cookie)

	claims, err := c.Sessions.ValidateRequest(c.request)
	if err != nil || claims.SessionID() == "" {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := c.Revocations.Revoke(ctx, claims.SessionID(), claims.ExpiresAt.Time); err != nil {
		return newError(OpSignOut, http.StatusServiceUnavailable, "session revocation failed", err)
	}
	return nil
}

func (c *localClient) ExchangeCodeForSession(ctx context.Context, code string) (Session, error) {
	codeVerifier := c.codeVerifier()

	external, err := c.Exchanger.Exchange(ctx, code, codeVerifier)
	if err != nil {
		return Session{}, newError(OpExchangeCode, http.StatusUnauthorized, "authorization code rejected", err)
	}

	identity, err := c.Identities.Upsert(ctx, users.Claims{
		Provider: external.Provider,
		Subject:  external.Subject,
		Email:    external.Email,
	})
	if err != nil {
		return Session{}, newError(OpExchangeCode, http.StatusInternalServerError, "identity provisioning failed", err)
	}

	issued, err := c.Issuer.Issue(ctx, identity.UserID, identity.Email)
	if err != nil {
		return Session{}, newError(OpExchangeCode, http.StatusInternalServerError, "session issuance failed", err)
	}

	auth.SetCookie(c.writer, c.Sessions.CookieName(), issued.Token, issued.ExpiresAt(), c.Cookie)
	if codeVerifier != "" {
		auth.ClearCookie(c.writer, c.VerifierCookieName, c.Cookie)
	}

	return Session{
		User:      User{ID: identity.UserID, Email: identity.Email},
		ExpiresAt: issued.ExpiresAt(),
	}, nil
}

func (c *localClient) DeleteIdentity(ctx context.Context, userID string) error {
	err := c.Identities.Delete(ctx, userID)
	if errors.Is(err, users.ErrIdentityNotFound) {
		return newError(OpDeleteIdentity, http.StatusNotFound, "user not found", err)
	}
	if err != nil {
		return newError(OpDeleteIdentity, http.StatusInternalServerError, "identity deletion failed", err)
	}
	return nil
}

func (c *localClient) SelectProfile(ctx context.Context, userID string) (profiles.Profile, bool, error) {
	profile, found, err := c.Profiles.FindByUserID(ctx, userID)
	if err != nil {
		return profiles.Profile{}, false, newError(OpSelectProfile, http.StatusInternalServerError, "profile lookup failed", err)
	}
	return profile, found, nil
}

func (c *localClient) InsertProfile(ctx context.Context, profile profiles.Profile) error {
	_, err := c.Profiles.Insert(ctx, profile)
	if errors.Is(err, profiles.ErrProfileExists) {
		return newError(OpInsertProfile, http.StatusConflict, "profile already exists", err)
	}
	if err != nil {
		return newError(OpInsertProfile, http.StatusInternalServerError, "profile insert failed", err)
	}
	return nil
}

func (c *localClient) DeleteProfile(ctx context.Context, userID string) error {
	if err := c.Profiles.DeleteByUserID(ctx, userID); err != nil {
		return newError(OpDeleteProfile, http.StatusInternalServerError, "profile deletion failed", err)
	}
	return nil
}

func (c *localClient) codeVerifier() string {
	name := strings.TrimSpace(c.VerifierCookieName)
	if name == "" {
		return ""
	}
	cookie, err := c.request.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
