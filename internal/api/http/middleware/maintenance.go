package middleware

import (
	"net/http"
	"strings"

	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/gin-gonic/gin"
)

// BypassCookie carries the short-lived token set after an emergency access
// redemption.
const BypassCookie = "maintenance_bypass"

// exemptPrefixes are the paths evaluated before the gate: the bootstrap and
// admin surfaces (so operators can never lock themselves out), the
// maintenance status itself, the redeem endpoint, and login. The exception
// is re-checked by path on every request, never from client-supplied state.
var exemptPrefixes = []string{
	"/health",
	"/maintenance",
	"/api/v1/bootstrap/",
	"/api/v1/admin/",
	"/api/v1/emergency-access/redeem",
	"/api/v1/auth/login",
}

func MaintenanceGate(gate *maintenance.Gate, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exemptPrefixes {
			if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		email := identityFor(c, jwtSecret)

		if !gate.IsAllowed(c.Request.Context(), c.ClientIP(), email) {
			cfg := gate.Status(c.Request.Context())
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":          "maintenance",
				"message":        cfg.Message,
				"estimated_time": cfg.EstimatedTime,
			})
			return
		}
		c.Next()
	}
}

// identityFor resolves the email the gate should consider: the session
// claims if authenticated, else a valid bypass cookie.
func identityFor(c *gin.Context, jwtSecret string) string {
	if email, exists := c.Get(ContextEmail); exists {
		if e, ok := email.(string); ok && e != "" {
			return e
		}
	}

	cookie, err := c.Cookie(BypassCookie)
	if err != nil {
		return ""
	}
	identity, err := auth.ValidateBypassToken(jwtSecret, cookie)
	if err != nil {
		return ""
	}
	return identity
}
