package server

import (
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/showcase/internal/backend"
	"github.com/MarcoPoloResearchLab/showcase/internal/profiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const opAuthCallback = "auth_callback"

// handleAuthCallback always answers with a redirect. Only a rejected code changes
// the target; every other failure is logged and the user continues to profile creation.
func (h *httpHandler) handleAuthCallback(c *gin.Context) {
	target := profileCreationPath
	if code := c.Query("code"); code != "" {
		target = h.completeSignIn(c, code)
	} else {
		h.metrics.observeCallback(outcomeNoCode)
	}
	c.Redirect(http.StatusTemporaryRedirect, h.redirectLocation(target))
}

// completeSignIn exchanges the code and provisions a starter profile, returning the redirect path.
func (h *httpHandler) completeSignIn(c *gin.Context, code string) (target string) {
	target = profileCreationPath
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			h.logger.Error("error during auth callback", zap.String("operation", opAuthCallback), zap.Error(err))
			h.report(err, opAuthCallback)
			h.metrics.observeCallback(outcomeUnexpected)
			target = profileCreationPath
		}
	}()

	ctx := c.Request.Context()
	client, err := h.clientFor(c)
	if err != nil {
		h.logger.Error("error during auth callback", zap.String("operation", opAuthCallback), zap.Error(err))
		h.report(err, opAuthCallback)
		h.metrics.observeCallback(outcomeUnexpected)
		return target
	}

	session, err := client.ExchangeCodeForSession(ctx, code)
	if err != nil {
		h.logger.Error("error exchanging code for session", zap.String("operation", backend.OpExchangeCode), zap.Error(err))
		h.metrics.observeCallback(outcomeExchangeFailed)
		return rootPath
	}
	if session.User.ID == "" {
		return target
	}

	_, found, err := client.SelectProfile(ctx, session.User.ID)
	if err != nil {
		h.logger.Warn("profile lookup failed, attempting provisioning",
			zap.String("operation", backend.OpSelectProfile),
			zap.String("user_id", session.User.ID),
			zap.Error(err),
		)
	}
	if found {
		h.metrics.observeCallback(outcomeProfileExists)
		return target
	}

	profile := profiles.DefaultProfile(session.User.ID, session.User.Email, profiles.DefaultsConfig{
		AvatarBaseURL: h.avatarBaseURL,
		Clock:         h.clock,
	})
	if err := client.InsertProfile(ctx, profile); err != nil {
		h.logger.Error("profile provisioning failed",
			zap.String("operation", backend.OpInsertProfile),
			zap.String("user_id", session.User.ID),
			zap.Error(err),
		)
		h.metrics.observeCallback(outcomeProvisionFailed)
		return target
	}

	h.logger.Info("profile provisioned", zap.String("user_id", session.User.ID), zap.String("username", profile.Username))
	h.metrics.observeCallback(outcomeProfileCreated)
	return target
}
