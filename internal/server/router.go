package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/showcase/internal/backend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	deleteAccountPath   = "/api/delete-account"
	authCallbackPath    = "/auth/callback"
	healthPath          = "/healthz"
	metricsPath         = "/metrics"
	rootPath            = "/"
	profileCreationPath = "/profile-creation"
	healthCheckTimeout  = 2 * time.Second
)

var (
	errMissingClientFactory = errors.New("backend client factory dependency required")
	errMissingAvatarBaseURL = errors.New("avatar base url dependency required")
	errInvalidPublicOrigin  = errors.New("public origin must be an absolute http(s) origin")
)

// HealthCheck reports whether the storage behind the backend is reachable.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Clients       backend.ClientFactory
	AvatarBaseURL string
	// PublicOrigin makes redirects absolute, e.g. "https://app.example.com".
	// Empty keeps them relative to whatever origin the browser used.
	PublicOrigin   string
	AllowedOrigins []string
	HealthCheck    HealthCheck
	Metrics        *Metrics
	Reporter       ErrorReporter
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Clients == nil {
		return nil, errMissingClientFactory
	}
	if strings.TrimSpace(deps.AvatarBaseURL) == "" {
		return nil, errMissingAvatarBaseURL
	}
	publicOrigin, err := normalizeOrigin(deps.PublicOrigin)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(metrics.middleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		clients:       deps.Clients,
		avatarBaseURL: deps.AvatarBaseURL,
		publicOrigin:  publicOrigin,
		healthCheck:   deps.HealthCheck,
		metrics:       metrics,
		reporter:      reporter,
		clock:         clock,
		logger:        logger,
	}

	router.POST(deleteAccountPath, handler.handleDeleteAccount)
	router.GET(authCallbackPath, handler.handleAuthCallback)
	router.GET(healthPath, handler.handleHealth)
	router.GET(metricsPath, gin.WrapH(metrics.Handler()))

	return router, nil
}

type httpHandler struct {
	clients       backend.ClientFactory
	avatarBaseURL string
	publicOrigin  string
	healthCheck   HealthCheck
	metrics       *Metrics
	reporter      ErrorReporter
	clock         func() time.Time
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.healthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.healthCheck(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) report(err error, operation string) {
	if h.reporter == nil {
		return
	}
	h.reporter.Report(err, operation)
}

func (h *httpHandler) clientFor(c *gin.Context) (backend.Client, error) {
	return h.clients.ForRequest(backend.Credentials{Request: c.Request, Writer: c.Writer})
}

// redirectLocation anchors path to the configured public origin, if any.
// Request headers never influence the result.
func (h *httpHandler) redirectLocation(path string) string {
	return h.publicOrigin + path
}

func normalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidPublicOrigin, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", errInvalidPublicOrigin
	}
	if strings.Trim(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return "", errInvalidPublicOrigin
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
