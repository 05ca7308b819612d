package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/captionloom/caption-server/internal/api/http/middleware"
	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/emergency"
	"github.com/gin-gonic/gin"
)

type EmergencyHandler struct {
	service   *emergency.Service
	jwtSecret string
}

func NewEmergencyHandler(service *emergency.Service, jwtSecret string) *EmergencyHandler {
	return &EmergencyHandler{service: service, jwtSecret: jwtSecret}
}

// Issue creates a bypass token for an allow-listed identity. Admin-only;
// the token is returned once for out-of-band delivery.
func (h *EmergencyHandler) Issue(c *gin.Context) {
	var req dto.IssueEmergencyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issued, err := h.service.Issue(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, emergency.ErrNotAllowlisted) {
			c.JSON(http.StatusForbidden, gin.H{"error": "identity is not on the maintenance allow-list"})
			return
		}
		slog.Error("Failed to issue emergency token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, dto.IssueEmergencyTokenResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt.Format(time.RFC3339),
	})
}

// Redeem consumes a bypass token and sets the short-lived bypass cookie.
// Every failure gets the same response so redemption cannot be used as a
// token-guessing oracle.
func (h *EmergencyHandler) Redeem(c *gin.Context) {
	var req dto.RedeemEmergencyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.service.Redeem(c.Request.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, emergency.ErrTokenNotFound),
			errors.Is(err, emergency.ErrTokenExpired),
			errors.Is(err, emergency.ErrAlreadyConsumed):
			slog.Warn("Emergency token redemption rejected", "reason", err, "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		default:
			slog.Error("Failed to redeem emergency token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	bypass, err := auth.GenerateBypassToken(h.jwtSecret, identity, auth.DefaultBypassTTL)
	if err != nil {
		slog.Error("Failed to generate bypass token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.BypassCookie, bypass, int(auth.DefaultBypassTTL.Seconds()), "/", "", false, true)

	c.JSON(http.StatusOK, dto.RedeemEmergencyTokenResponse{
		Identity:  identity,
		ExpiresAt: time.Now().Add(auth.DefaultBypassTTL).Format(time.RFC3339),
	})
}
