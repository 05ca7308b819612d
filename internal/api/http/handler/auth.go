package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/captionloom/caption-server/internal/accounts"
	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/captionloom/caption-server/internal/auth"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (accounts.Account, error)
}

type AuthHandler struct {
	authenticator Authenticator
	jwtConfig     auth.JWTConfig
}

func NewAuthHandler(authenticator Authenticator, jwtConfig auth.JWTConfig) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwtConfig:     jwtConfig,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.authenticator.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		slog.Error("Failed to authenticate", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	token, err := auth.GenerateToken(h.jwtConfig, account.ID, account.Email, account.Role)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}
