package http

import (
	"context"

	"github.com/captionloom/caption-server/internal/api/http/handler"
	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/bootstrap"
	"github.com/captionloom/caption-server/internal/emergency"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/captionloom/caption-server/internal/ratelimit"
)

type Config struct {
	Port uint            `mapstructure:"port"`
	JWT  auth.JWTConfig  `mapstructure:"jwt"`
	Rate RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Capacity      int `mapstructure:"capacity"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// AdminCheckFunc is the admin-identity collaborator consulted by the rate
// limiter exemption. It must be cheap; callers may cache.
type AdminCheckFunc func(ctx context.Context, userID string) bool

type Services struct {
	Bootstrap     *bootstrap.Flow
	Maintenance   *maintenance.Gate
	Emergency     *emergency.Service
	Limiter       *ratelimit.Limiter
	Authenticator handler.Authenticator
	IsAdmin       AdminCheckFunc
	JWT           auth.JWTConfig
}
