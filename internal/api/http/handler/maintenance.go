package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/captionloom/caption-server/internal/api/http/middleware"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/gin-gonic/gin"
)

type MaintenanceHandler struct {
	gate *maintenance.Gate
}

func NewMaintenanceHandler(gate *maintenance.Gate) *MaintenanceHandler {
	return &MaintenanceHandler{gate: gate}
}

// Status is the public endpoint backing the maintenance page. It fails
// open: a store outage must not make the page itself unrenderable.
func (h *MaintenanceHandler) Status(c *gin.Context) {
	cfg := h.gate.Status(c.Request.Context())

	c.JSON(http.StatusOK, dto.MaintenanceStatusResponse{
		Enabled:       cfg.Enabled,
		Message:       cfg.Message,
		EstimatedTime: cfg.EstimatedTime,
	})
}

func (h *MaintenanceHandler) GetConfig(c *gin.Context) {
	cfg, err := h.gate.GetConfig(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load maintenance config", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}

	c.JSON(http.StatusOK, configResponse(cfg))
}

func (h *MaintenanceHandler) UpdateConfig(c *gin.Context) {
	var req dto.UpdateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.gate.SetConfig(c.Request.Context(), maintenance.Update{
		Enabled:       req.Enabled,
		Message:       req.Message,
		EstimatedTime: req.EstimatedTime,
		AllowedIPs:    req.AllowedIPs,
		AllowedEmails: req.AllowedEmails,
	}, actor(c))
	if err != nil {
		slog.Error("Failed to update maintenance config", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update maintenance config"})
		return
	}

	c.JSON(http.StatusOK, configResponse(cfg))
}

func (h *MaintenanceHandler) ClearConfig(c *gin.Context) {
	if err := h.gate.Clear(c.Request.Context(), actor(c)); err != nil {
		slog.Error("Failed to clear maintenance config", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear maintenance config"})
		return
	}

	c.Status(http.StatusNoContent)
}

func configResponse(cfg maintenance.Config) dto.MaintenanceConfigResponse {
	return dto.MaintenanceConfigResponse{
		Enabled:       cfg.Enabled,
		Message:       cfg.Message,
		EstimatedTime: cfg.EstimatedTime,
		AllowedIPs:    cfg.AllowedIPs,
		AllowedEmails: cfg.AllowedEmails,
		UpdatedAt:     cfg.UpdatedAt.Format(time.RFC3339),
	}
}

func actor(c *gin.Context) string {
	if email, exists := c.Get(middleware.ContextEmail); exists {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return "unknown"
}
