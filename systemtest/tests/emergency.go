package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEmergencyAccess issues a bypass token for an allow-listed identity,
// redeems it, and uses the resulting cookie to pass the closed gate.
func TestEmergencyAccess(t *testing.T, router *gin.Engine, adminToken string) {
	rr := doJSONWithAuth(router, "PUT", "/api/v1/admin/maintenance", dto.UpdateMaintenanceRequest{
		Enabled:       boolPtr(true),
		AllowedEmails: []string{"owner@example.com", "oncall@example.com"},
	}, adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var issued dto.IssueEmergencyTokenResponse

	t.Run("issue for allow-listed identity", func(t *testing.T) {
		rr := doJSONWithAuth(router, "POST", "/api/v1/admin/emergency-access",
			dto.IssueEmergencyTokenRequest{Email: "oncall@example.com"}, adminToken)
		require.Equal(t, http.StatusCreated, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &issued))
		assert.Contains(t, issued.Token, "ea_")
	})

	t.Run("issue refused off the allow-list", func(t *testing.T) {
		rr := doJSONWithAuth(router, "POST", "/api/v1/admin/emergency-access",
			dto.IssueEmergencyTokenRequest{Email: "stranger@example.com"}, adminToken)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("issue requires admin", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/admin/emergency-access",
			dto.IssueEmergencyTokenRequest{Email: "oncall@example.com"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	var bypassCookie *http.Cookie

	t.Run("redeem sets bypass cookie", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/emergency-access/redeem",
			dto.RedeemEmergencyTokenRequest{Token: issued.Token})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.RedeemEmergencyTokenResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "oncall@example.com", resp.Identity)

		for _, cookie := range rr.Result().Cookies() {
			if cookie.Name == "maintenance_bypass" {
				bypassCookie = cookie
			}
		}
		require.NotNil(t, bypassCookie)
		assert.True(t, bypassCookie.HttpOnly)
	})

	t.Run("cookie passes the closed gate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, appPath, nil)
		req.AddCookie(bypassCookie)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("token is single use", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/emergency-access/redeem",
			dto.RedeemEmergencyTokenRequest{Token: issued.Token})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	rr = doJSONWithAuth(router, "DELETE", "/api/v1/admin/maintenance", nil, adminToken)
	require.Equal(t, http.StatusNoContent, rr.Code)
}
