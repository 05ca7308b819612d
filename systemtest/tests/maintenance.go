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

// appPath is a route outside the gate's exemption list. It is not
// registered, so a passed gate answers 404 and a closed gate answers 503;
// the distinction is what the scenario asserts on.
const appPath = "/api/v1/captions"

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// TestMaintenanceGating enables maintenance as an admin and checks who gets
// through: exempt paths, allow-listed accounts, and nobody else.
func TestMaintenanceGating(t *testing.T, router *gin.Engine, adminToken string) {
	t.Run("disabled by default", func(t *testing.T) {
		rr := doJSON(router, "GET", appPath, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("enable maintenance", func(t *testing.T) {
		rr := doJSONWithAuth(router, "PUT", "/api/v1/admin/maintenance", dto.UpdateMaintenanceRequest{
			Enabled:       boolPtr(true),
			Message:       strPtr("Upgrading the caption models"),
			AllowedEmails: []string{"owner@example.com", "oncall@example.com"},
		}, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("anonymous request blocked", func(t *testing.T) {
		rr := doJSON(router, "GET", appPath, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "Upgrading the caption models")
	})

	t.Run("status page still reachable", func(t *testing.T) {
		rr := doJSON(router, "GET", "/maintenance", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.MaintenanceStatusResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Enabled)
		assert.Equal(t, "Upgrading the caption models", resp.Message)
	})

	t.Run("health still reachable", func(t *testing.T) {
		rr := doJSON(router, "GET", "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("allow-listed account passes", func(t *testing.T) {
		rr := doJSONWithAuth(router, "GET", appPath, nil, adminToken)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("disable maintenance", func(t *testing.T) {
		rr := doJSONWithAuth(router, "PUT", "/api/v1/admin/maintenance", dto.UpdateMaintenanceRequest{
			Enabled: boolPtr(false),
		}, adminToken)
		require.Equal(t, http.StatusOK, rr.Code)

		get := httptest.NewRequest(http.MethodGet, appPath, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, get)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
