package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/showcase/internal/backend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	opDeleteAccount = "delete_account"

	messageNotAuthenticated     = "Not authenticated"
	messageProfileDeleteFailed  = "Failed to delete profile"
	messageAccountDeleteFailed  = "Failed to delete account"
	messageUnexpectedError      = "An unexpected error occurred"
	messageAccountDeleteSuccess = "Account deleted successfully"
)

type deleteAccountResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleDeleteAccount removes the caller's profile and then their auth identity.
// It stops at the first failure; a profile that was already removed is not restored
// when the identity deletion fails.
func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	defer func() {
		if recovered := recover(); recovered != nil {
			h.failDeletionUnexpectedly(c, "account deletion panicked", fmt.Errorf("panic: %v", recovered))
		}
	}()

	ctx := c.Request.Context()
	client, err := h.clientFor(c)
	if err != nil {
		h.failDeletionUnexpectedly(c, "failed to create backend client", err)
		return
	}

	user, err := client.GetUser(ctx)
	if err != nil {
		if !errors.Is(err, backend.ErrNoSession) {
			h.logger.Error("failed to resolve session user", zap.String("operation", backend.OpGetUser), zap.Error(err))
		}
		h.metrics.observeDeletion(outcomeUnauthenticated)
		c.JSON(http.StatusUnauthorized, deleteAccountResponse{Error: messageNotAuthenticated})
		return
	}

	if err := client.DeleteProfile(ctx, user.ID); err != nil {
		h.logger.Error("error deleting profile",
			zap.String("operation", backend.OpDeleteProfile),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		h.metrics.observeDeletion(outcomeProfileFailed)
		c.JSON(http.StatusInternalServerError, deleteAccountResponse{Error: messageProfileDeleteFailed})
		return
	}

	if err := client.DeleteIdentity(ctx, user.ID); err != nil {
		h.logger.Error("error deleting auth user",
			zap.String("operation", backend.OpDeleteIdentity),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		h.metrics.observeDeletion(outcomeIdentityFailed)
		c.JSON(http.StatusInternalServerError, deleteAccountResponse{Error: messageAccountDeleteFailed})
		return
	}

	if err := client.SignOut(ctx); err != nil {
		h.logger.Warn("sign out after account deletion failed",
			zap.String("operation", backend.OpSignOut),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	h.logger.Info("account deleted", zap.String("user_id", user.ID))
	h.metrics.observeDeletion(outcomeDeleted)
	c.JSON(http.StatusOK, deleteAccountResponse{Success: true, Message: messageAccountDeleteSuccess})
}

func (h *httpHandler) failDeletionUnexpectedly(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.String("operation", opDeleteAccount), zap.Error(err))
	h.report(err, opDeleteAccount)
	h.metrics.observeDeletion(outcomeUnexpected)
	if c.Writer.Written() {
		return
	}
	c.JSON(http.StatusInternalServerError, deleteAccountResponse{Error: messageUnexpectedError})
}
