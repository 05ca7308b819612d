package http

import (
	"github.com/captionloom/caption-server/internal/accounts"
	"github.com/captionloom/caption-server/internal/api/http/handler"
	"github.com/captionloom/caption-server/internal/api/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoute wires the gating middleware chain and the route handlers.
// Order matters: the limiter sees every request (admins exempt), then the
// maintenance gate decides, then handlers run.
func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.OptionalJWTAuth(srvs.JWT.Secret))
	engine.Use(middleware.RateLimit(srvs.Limiter, srvs.IsAdmin))
	engine.Use(middleware.MaintenanceGate(srvs.Maintenance, srvs.JWT.Secret))

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	maintenanceHandler := handler.NewMaintenanceHandler(srvs.Maintenance)
	engine.GET("/maintenance", maintenanceHandler.Status)

	bootstrapHandler := handler.NewBootstrapHandler(srvs.Bootstrap)
	bootstrapGroup := engine.Group("/api/v1/bootstrap")
	{
		bootstrapGroup.GET("/status", bootstrapHandler.Status)
		bootstrapGroup.POST("/verify-pin", bootstrapHandler.VerifyPin)
		bootstrapGroup.POST("/request-code", bootstrapHandler.RequestCode)
		bootstrapGroup.POST("/create-admin", bootstrapHandler.CreateAdmin)
	}

	authHandler := handler.NewAuthHandler(srvs.Authenticator, srvs.JWT)
	engine.POST("/api/v1/auth/login", authHandler.Login)

	emergencyHandler := handler.NewEmergencyHandler(srvs.Emergency, srvs.JWT.Secret)
	engine.POST("/api/v1/emergency-access/redeem", emergencyHandler.Redeem)

	adminGroup := engine.Group("/api/v1/admin")
	adminGroup.Use(middleware.JWTAuth(srvs.JWT.Secret), middleware.RequireRole(accounts.RoleAdmin))
	{
		adminGroup.GET("/maintenance", maintenanceHandler.GetConfig)
		adminGroup.PUT("/maintenance", maintenanceHandler.UpdateConfig)
		adminGroup.DELETE("/maintenance", maintenanceHandler.ClearConfig)
		adminGroup.POST("/emergency-access", emergencyHandler.Issue)
	}
}
