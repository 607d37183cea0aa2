package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultProviderName = "oidc"

var (
	ErrMissingAuthorizationCode = errors.New("exchanger: authorization code required")
	ErrMissingIDToken           = errors.New("exchanger: provider did not return an id_token")
	ErrInvalidExchangerConfig   = errors.New("exchanger: invalid configuration")
)

// ExternalIdentity is what the identity provider asserted about the user. It carries facts only.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

// CodeExchanger turns an authorization code into a verified external identity.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, codeVerifier string) (ExternalIdentity, error)
}

// IdentityVerifier verifies a raw ID token and extracts its identity claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (ExternalIdentity, error)
}

// OIDCExchangerConfig wires the OAuth2 client and ID token verifier.
type OIDCExchangerConfig struct {
	OAuth2       *oauth2.Config
	Verifier     IdentityVerifier
	ProviderName string
	Logger       *zap.Logger
}

// OIDCExchanger exchanges codes at the provider token endpoint and verifies the returned ID token.
type OIDCExchanger struct {
	oauth2Config *oauth2.Config
	verifier     IdentityVerifier
	provider     string
	logger       *zap.Logger
}

// NewOIDCExchanger validates the configuration and returns an exchanger.
func NewOIDCExchanger(cfg OIDCExchangerConfig) (*OIDCExchanger, error) {
	if cfg.OAuth2 == nil || strings.TrimSpace(cfg.OAuth2.ClientID) == "" {
		return nil, fmt.Errorf("%w: oauth2 client required", ErrInvalidExchangerConfig)
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("%w: id token verifier required", ErrInvalidExchangerConfig)
	}
	provider := strings.TrimSpace(cfg.ProviderName)
	if provider == "" {
		provider = defaultProviderName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OIDCExchanger{
		oauth2Config: cfg.OAuth2,
		verifier:     cfg.Verifier,
		provider:     provider,
		logger:       logger,
	}, nil
}

// Exchange redeems the code, with the PKCE verifier when one is supplied.
func (e *OIDCExchanger) Exchange(ctx context.Context, code, codeVerifier string) (ExternalIdentity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ExternalIdentity{}, ErrMissingAuthorizationCode
	}

	var options []oauth2.AuthCodeOption
	if verifier := strings.TrimSpace(codeVerifier); verifier != "" {
		options = append(options, oauth2.VerifierOption(verifier))
	}

	token, err := e.oauth2Config.Exchange(ctx, code, options...)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("exchanger: token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return ExternalIdentity{}, ErrMissingIDToken
	}

	identity, err := e.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("exchanger: id token verification failed: %w", err)
	}
	identity.Provider = e.provider

	e.logger.Debug("authorization code exchanged",
		zap.String("provider", identity.Provider),
		zap.Bool("email_present", identity.Email != ""),
		zap.Bool("email_verified", identity.EmailVerified),
	)
	return identity, nil
}

type oidcIdentityVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCIdentityVerifier adapts a go-oidc verifier to IdentityVerifier.
func NewOIDCIdentityVerifier(verifier *oidc.IDTokenVerifier) IdentityVerifier {
	return &oidcIdentityVerifier{verifier: verifier}
}

func (v *oidcIdentityVerifier) Verify(ctx context.Context, rawIDToken string) (ExternalIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ExternalIdentity{}, err
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return ExternalIdentity{}, fmt.Errorf("parse id token claims: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ExternalIdentity{}, errors.New("id token missing subject")
	}
	return ExternalIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// OIDCProviderConfig describes how to reach the identity provider.
type OIDCProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Logger       *zap.Logger
}

// NewOIDCExchangerFromDiscovery discovers the provider endpoints and builds an exchanger.
func NewOIDCExchangerFromDiscovery(ctx context.Context, cfg OIDCProviderConfig) (*OIDCExchanger, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("exchanger: discover provider %s: %w", cfg.IssuerURL, err)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return NewOIDCExchanger(OIDCExchangerConfig{
		OAuth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		Verifier:     NewOIDCIdentityVerifier(provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})),
		ProviderName: providerNameFromIssuer(cfg.IssuerURL),
		Logger:       cfg.Logger,
	})
}

func providerNameFromIssuer(issuerURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(issuerURL), "https://"), "http://")
	host, _, _ = strings.Cut(host, "/")
	if host == "" {
		return defaultProviderName
	}
	return host
}
