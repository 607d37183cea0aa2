package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/showcase/internal/auth"
	"github.com/MarcoPoloResearchLab/showcase/internal/backend"
	"github.com/MarcoPoloResearchLab/showcase/internal/config"
	"github.com/MarcoPoloResearchLab/showcase/internal/database"
	"github.com/MarcoPoloResearchLab/showcase/internal/logging"
	"github.com/MarcoPoloResearchLab/showcase/internal/profiles"
	"github.com/MarcoPoloResearchLab/showcase/internal/server"
	"github.com/MarcoPoloResearchLab/showcase/internal/users"
	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sentryFlushTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "showcase-api",
		Short: "Showcase account and sign-in backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("public-origin", "", "Public origin used for absolute redirects (empty sends relative redirects)")
	flags.StringSlice("allowed-origins", nil, "Origins allowed to call the API with credentials")
	flags.String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	flags.String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	flags.String("session-secret", "", "Session signing secret (overrides env)")
	flags.Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session lifetime in minutes")
	flags.String("oidc-issuer-url", "", "OpenID Connect issuer URL")
	flags.String("oidc-client-id", "", "OpenID Connect client ID")
	flags.String("oidc-redirect-url", "", "Redirect URL registered for the auth callback")
	flags.String("redis-address", defaults.GetString("redis.address"), "Redis address for session revocation")
	flags.String("sentry-dsn", defaults.GetString("sentry.dsn"), "Sentry DSN for error reporting")
	flags.String("avatar-base-url", defaults.GetString("avatar.base_url"), "Avatar generation service base URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.public_origin", "public-origin")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "session.signing_secret", "session-secret")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "oidc.issuer_url", "oidc-issuer-url")
	bindFlag(cmd, "oidc.client_id", "oidc-client-id")
	bindFlag(cmd, "oidc.redirect_url", "oidc-redirect-url")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "sentry.dsn", "sentry-dsn")
	bindFlag(cmd, "avatar.base_url", "avatar-base-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	reporter, flushReporter, err := newReporter(appConfig)
	if err != nil {
		return err
	}
	defer flushReporter()

	db, err := database.Open(database.Config{Driver: appConfig.DatabaseDriver, DSN: appConfig.DatabaseDSN}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	revocations, closeRevocations, err := newRevocationStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeRevocations()

	clients, err := newClientFactory(ctx, appConfig, db, revocations, logger)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Clients:        clients,
		AvatarBaseURL:  appConfig.AvatarBaseURL,
		PublicOrigin:   appConfig.PublicOrigin,
		AllowedOrigins: appConfig.AllowedOrigins,
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		Metrics:  server.NewMetrics(),
		Reporter: reporter,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newClientFactory(ctx context.Context, appConfig config.AppConfig, db *gorm.DB, revocations auth.RevocationStore, logger *zap.Logger) (*backend.LocalFactory, error) {
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		Issuer:        appConfig.SessionIssuer,
		CookieName:    appConfig.SessionCookieName,
	})
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSecret),
		Issuer:        appConfig.SessionIssuer,
		TTL:           appConfig.SessionTTL,
	})
	if err != nil {
		return nil, err
	}

	exchanger, err := auth.NewOIDCExchangerFromDiscovery(ctx, auth.OIDCProviderConfig{
		IssuerURL:    appConfig.OIDCIssuerURL,
		ClientID:     appConfig.OIDCClientID,
		ClientSecret: appConfig.OIDCClientSecret,
		RedirectURL:  appConfig.OIDCRedirectURL,
		Scopes:       appConfig.OIDCScopes,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	identities, err := users.NewService(users.ServiceConfig{Database: db, Clock: time.Now})
	if err != nil {
		return nil, err
	}

	profileStore, err := profiles.NewStore(profiles.StoreConfig{
		Database:   db,
		IDProvider: profiles.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return backend.NewLocalFactory(backend.LocalConfig{
		Sessions:           sessions,
		Issuer:             issuer,
		Revocations:        revocations,
		Exchanger:          exchanger,
		Identities:         identities,
		Profiles:           profileStore,
		VerifierCookieName: appConfig.VerifierCookieName,
		Cookie:             auth.CookieOptions{Secure: appConfig.SecureCookies},
		Logger:             logger,
	})
}

func newRevocationStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (auth.RevocationStore, func(), error) {
	if appConfig.RedisAddress == "" {
		logger.Info("session revocation disabled, redis address not configured")
		return auth.NoopRevocationStore{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     appConfig.RedisAddress,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("session revocation enabled", zap.String("redis_address", appConfig.RedisAddress))
	return auth.NewRedisRevocationStore(client), func() { _ = client.Close() }, nil
}

func newReporter(appConfig config.AppConfig) (server.ErrorReporter, func(), error) {
	if appConfig.SentryDSN == "" {
		return nil, func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         appConfig.SentryDSN,
		Environment: appConfig.SentryEnvironment,
	}); err != nil {
		return nil, nil, err
	}
	return server.NewSentryReporter(sentry.CurrentHub()), func() { sentry.Flush(sentryFlushTimeout) }, nil
}
