package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/captionloom/caption-server/internal/accounts"
	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/captionloom/caption-server/internal/bootstrap"
	"github.com/captionloom/caption-server/internal/otp"
	"github.com/captionloom/caption-server/internal/systemlock"
	"github.com/gin-gonic/gin"
)

type BootstrapHandler struct {
	flow *bootstrap.Flow
}

func NewBootstrapHandler(flow *bootstrap.Flow) *BootstrapHandler {
	return &BootstrapHandler{flow: flow}
}

func (h *BootstrapHandler) VerifyPin(c *gin.Context) {
	var req dto.VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.flow.VerifyPin(c.Request.Context(), req.Pin); err != nil {
		h.pinError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyPinResponse{Verified: true})
}

func (h *BootstrapHandler) RequestCode(c *gin.Context) {
	var req dto.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.flow.RequestCode(c.Request.Context(), req.Pin, req.Email)
	if err != nil {
		if errors.Is(err, otp.ErrThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "a code was sent recently, wait before requesting another"})
			return
		}
		h.pinError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RequestCodeResponse{
		ExpiresAt: result.ExpiresAt.Format(time.RFC3339),
		Delivered: result.Delivered,
	})
}

func (h *BootstrapHandler) CreateAdmin(c *gin.Context) {
	var req dto.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.flow.CreateAdmin(c.Request.Context(), req.Pin, req.Email, req.Code, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrCodeNotFound),
			errors.Is(err, otp.ErrCodeExpired),
			errors.Is(err, otp.ErrCodeMismatch),
			errors.Is(err, otp.ErrAlreadyConsumed):
			// One generic message for every code failure; the kind would
			// be an oracle for guessing.
			slog.Warn("Admin creation rejected", "reason", err, "client_ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		case errors.Is(err, accounts.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		default:
			h.pinError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, dto.CreateAdminResponse{
		ID:    result.Account.ID,
		Email: result.Account.Email,
		Role:  result.Account.Role,
		Token: result.SessionToken,
	})
}

func (h *BootstrapHandler) Status(c *gin.Context) {
	status, err := h.flow.Status(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load bootstrap status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.BootstrapStatusResponse{
		PinConfigured: status.PinConfigured,
		AdminExists:   status.AdminExists,
	})
}

// pinError maps PIN/flow failures without hinting how close a guess was.
func (h *BootstrapHandler) pinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bootstrap.ErrPinMismatch):
		slog.Warn("Pin verification failed", "client_ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid pin"})
	case errors.Is(err, systemlock.ErrNotConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": "system lock is not configured"})
	default:
		// Store failures on a gate check fail closed as an unavailable
		// gate, not as open access.
		slog.Error("Bootstrap step failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	}
}
