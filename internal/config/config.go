package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "SHOWCASE"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabaseDriver      = "sqlite"
	defaultDatabaseDSN         = "showcase.db"
	defaultLogLevel            = "info"
	defaultLogEncoding         = "json"
	defaultSessionIssuer       = "showcase-auth"
	defaultSessionCookieName   = "app_session"
	defaultVerifierCookieName  = "app_code_verifier"
	defaultSessionTTLMinutes   = 7 * 24 * 60
	defaultAvatarBaseURL       = "https://api.dicebear.com/7.x/avataaars/svg"
	databaseDriverSQLite       = "sqlite"
	databaseDriverPostgres     = "postgres"
	defaultOIDCScopesSeparator = ","
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	PublicOrigin       string
	AllowedOrigins     []string
	DatabaseDriver     string
	DatabaseDSN        string
	LogLevel           string
	LogEncoding        string
	SessionSecret      string
	SessionIssuer      string
	SessionCookieName  string
	VerifierCookieName string
	SessionTTL         time.Duration
	SecureCookies      bool
	OIDCIssuerURL      string
	OIDCClientID       string
	OIDCClientSecret   string
	OIDCRedirectURL    string
	OIDCScopes         []string
	RedisAddress       string
	RedisPassword      string
	RedisDB            int
	SentryDSN          string
	SentryEnvironment  string
	AvatarBaseURL      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.public_origin", "")
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.cookie_name", defaultSessionCookieName)
	configViper.SetDefault("session.verifier_cookie_name", defaultVerifierCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("session.secure_cookies", true)
	configViper.SetDefault("oidc.scopes", "openid,email,profile")
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("sentry.dsn", "")
	configViper.SetDefault("avatar.base_url", defaultAvatarBaseURL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		PublicOrigin:       strings.TrimSpace(configViper.GetString("http.public_origin")),
		AllowedOrigins:     splitList(configViper.GetStringSlice("http.allowed_origins")),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		LogLevel:           configViper.GetString("log.level"),
		LogEncoding:        configViper.GetString("log.encoding"),
		SessionSecret:      configViper.GetString("session.signing_secret"),
		SessionIssuer:      configViper.GetString("session.issuer"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		VerifierCookieName: configViper.GetString("session.verifier_cookie_name"),
		SessionTTL:         time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		SecureCookies:      configViper.GetBool("session.secure_cookies"),
		OIDCIssuerURL:      configViper.GetString("oidc.issuer_url"),
		OIDCClientID:       configViper.GetString("oidc.client_id"),
		OIDCClientSecret:   configViper.GetString("oidc.client_secret"),
		OIDCRedirectURL:    configViper.GetString("oidc.redirect_url"),
		OIDCScopes:         splitList([]string{configViper.GetString("oidc.scopes")}),
		RedisAddress:       configViper.GetString("redis.address"),
		RedisPassword:      configViper.GetString("redis.password"),
		RedisDB:            configViper.GetInt("redis.db"),
		SentryDSN:          configViper.GetString("sentry.dsn"),
		SentryEnvironment:  configViper.GetString("sentry.environment"),
		AvatarBaseURL:      configViper.GetString("avatar.base_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.VerifierCookieName) == "" {
		return fmt.Errorf("session.verifier_cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	switch c.DatabaseDriver {
	case databaseDriverSQLite, databaseDriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.OIDCIssuerURL) == "" {
		return fmt.Errorf("oidc.issuer_url is required")
	}
	if strings.TrimSpace(c.OIDCClientID) == "" {
		return fmt.Errorf("oidc.client_id is required")
	}
	if strings.TrimSpace(c.OIDCRedirectURL) == "" {
		return fmt.Errorf("oidc.redirect_url is required")
	}
	if strings.TrimSpace(c.AvatarBaseURL) == "" {
		return fmt.Errorf("avatar.base_url is required")
	}
	return nil
}

// splitList flattens comma separated entries, as env values arrive as one string.
func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, defaultOIDCScopesSeparator) {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
