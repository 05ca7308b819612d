package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/captionloom/caption-server/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBootstrapProtocol walks the whole first-administrator flow against a
// live router: PIN check, code request, code-gated account creation, then
// login with the new account.
func TestBootstrapProtocol(t *testing.T, router *gin.Engine, sender *CaptureSender, pin, jwtSecret string) {
	const adminEmail = "owner@example.com"
	const adminPassword = "sturdy-passphrase"

	t.Run("status before setup", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/v1/bootstrap/status", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.BootstrapStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.PinConfigured)
		assert.False(t, resp.AdminExists)
	})

	t.Run("wrong pin rejected", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/bootstrap/verify-pin", dto.VerifyPinRequest{Pin: "000000"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("correct pin verifies", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/bootstrap/verify-pin", dto.VerifyPinRequest{Pin: pin})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("request code", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/bootstrap/request-code", dto.RequestCodeRequest{
			Pin:   pin,
			Email: adminEmail,
		})
		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, sender.LastCode(), 6)
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		code := "000000"
		if code == sender.LastCode() {
			code = "000001"
		}
		rr := doJSON(router, "POST", "/api/v1/bootstrap/create-admin", dto.CreateAdminRequest{
			Pin:      pin,
			Email:    adminEmail,
			Code:     code,
			Password: adminPassword,
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("create admin", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/bootstrap/create-admin", dto.CreateAdminRequest{
			Pin:      pin,
			Email:    adminEmail,
			Code:     sender.LastCode(),
			Password: adminPassword,
		})
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.CreateAdminResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, adminEmail, resp.Email)
		assert.Equal(t, "admin", resp.Role)
		assert.NotEmpty(t, resp.ID)

		claims, err := auth.ValidateToken(jwtSecret, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, adminEmail, claims.Email)
	})

	t.Run("code replay rejected", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/bootstrap/create-admin", dto.CreateAdminRequest{
			Pin:      pin,
			Email:    adminEmail,
			Code:     sender.LastCode(),
			Password: adminPassword,
		})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("status after setup", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/v1/bootstrap/status", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.BootstrapStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.AdminExists)
	})

	t.Run("login with new account", func(t *testing.T) {
		token := Login(t, router, adminEmail, adminPassword)
		claims, err := auth.ValidateToken(jwtSecret, token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Role)
	})
}
