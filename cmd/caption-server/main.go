package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/captionloom/caption-server/internal/accounts"
	internalhttp "github.com/captionloom/caption-server/internal/api/http"
	"github.com/captionloom/caption-server/internal/bootstrap"
	"github.com/captionloom/caption-server/internal/db"
	"github.com/captionloom/caption-server/internal/emergency"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/captionloom/caption-server/internal/mailer"
	"github.com/captionloom/caption-server/internal/otp"
	"github.com/captionloom/caption-server/internal/ratelimit"
	"github.com/captionloom/caption-server/internal/secrets"
	"github.com/captionloom/caption-server/internal/systemlock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

const reaperInterval = time.Minute

func main() {
	InitConfig()

	slog.Info("Caption Server", "version", AppVersion)

	if err := db.RunMigrations(config.Db.Url, config.Db.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.InitDB(ctx, config.Db.Url, config.Db.Schema)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	secretStore := secrets.NewPgStore(pool)
	lockService := systemlock.NewService(secretStore)

	codeIssuer := otp.NewIssuer(otp.NewPgStore(pool), otp.Config{
		TTL:         time.Duration(config.Otp.TTLSeconds) * time.Second,
		MinInterval: time.Duration(config.Otp.MinIntervalSeconds) * time.Second,
	})

	gate := maintenance.NewGate(secretStore, maintenance.Options{
		BaselineIPs:    ParseCommaSeparated(config.Maintenance.AllowedIPs),
		BaselineEmails: ParseCommaSeparated(config.Maintenance.AllowedEmails),
	})

	emergencyService := emergency.NewService(emergency.NewPgStore(pool), gate,
		time.Duration(config.Emergency.TTLHours)*time.Hour)

	accountService := accounts.NewService(pool)

	sender := &mailer.LogSender{RevealBodies: config.Mailer.RevealBodies}
	flow := bootstrap.NewFlow(lockService, codeIssuer, accountService, sender, config.Http.JWT)

	limiter := ratelimit.NewLimiter(config.Http.Rate.Capacity,
		time.Duration(config.Http.Rate.WindowSeconds)*time.Second)
	go limiter.StartReaper(ctx, reaperInterval)
	go runStoreReaper(ctx, codeIssuer, emergencyService)

	services := &internalhttp.Services{
		Bootstrap:     flow,
		Maintenance:   gate,
		Emergency:     emergencyService,
		Limiter:       limiter,
		Authenticator: accountService,
		IsAdmin: func(ctx context.Context, userID string) bool {
			admin, err := accountService.IsAdmin(ctx, userID)
			if err != nil {
				slog.Warn("Admin lookup failed", "error", err)
				return false
			}
			return admin
		},
		JWT: config.Http.JWT,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// runStoreReaper periodically deletes expired one-time codes and emergency
// tokens so the gating tables do not grow without bound.
func runStoreReaper(ctx context.Context, issuer *otp.Issuer, emergencyService *emergency.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := issuer.Reap(ctx); err != nil {
				slog.Warn("Code reap failed", "error", err)
			}
			if err := emergencyService.Reap(ctx); err != nil {
				slog.Warn("Token reap failed", "error", err)
			}
		}
	}
}
