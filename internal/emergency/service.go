// Package emergency issues single-use, 24-hour bypass tokens that let an
// allow-listed identity through the maintenance gate without full
// re-authentication.
package emergency

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	tokenPrefix = "ea_"
	tokenLength = 32 // 32 bytes = 256 bits

	DefaultTTL = 24 * time.Hour
)

var (
	ErrNotAllowlisted  = errors.New("identity is not on the maintenance allow-list")
	ErrTokenNotFound   = errors.New("emergency token not found")
	ErrTokenExpired    = errors.New("emergency token expired")
	ErrAlreadyConsumed = errors.New("emergency token already used")
)

type Token struct {
	TokenHash string
	Identity  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// TokenStore persists token records keyed by hash. Consume must be a
// compare-and-set: once consumed, a token is permanently invalid.
type TokenStore interface {
	Insert(ctx context.Context, token Token) error
	GetByHash(ctx context.Context, tokenHash string) (*Token, error)
	Consume(ctx context.Context, tokenHash string) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AllowlistChecker reports whether an email is on the effective maintenance
// allow-list.
type AllowlistChecker interface {
	IsEmailAllowed(ctx context.Context, email string) (bool, error)
}

type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	store     TokenStore
	allowlist AllowlistChecker
	ttl       time.Duration
}

func NewService(store TokenStore, allowlist AllowlistChecker, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, allowlist: allowlist, ttl: ttl}
}

// Issue generates a token for an allow-listed identity. The plaintext token
// is returned once for out-of-band delivery and stored only as a hash.
func (s *Service) Issue(ctx context.Context, identity string) (*IssuedToken, error) {
	allowed, err := s.allowlist.IsEmailAllowed(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("check allow-list: %w", err)
	}
	if !allowed {
		return nil, ErrNotAllowlisted
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := Token{
		TokenHash: HashToken(token),
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	slog.Info("Emergency access token issued", "identity", identity, "expires_at", rec.ExpiresAt)
	return &IssuedToken{Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// Redeem consumes the token and returns the identity it is bound to. The
// token grants nothing after redemption; the caller is responsible for the
// short-lived bypass it establishes.
func (s *Service) Redeem(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)

	rec, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("load token: %w", err)
	}

	if rec.Consumed {
		return "", ErrAlreadyConsumed
	}
	if time.Now().After(rec.ExpiresAt) {
		return "", ErrTokenExpired
	}

	consumed, err := s.store.Consume(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	if !consumed {
		return "", ErrAlreadyConsumed
	}

	slog.Info("Emergency access token redeemed", "identity", rec.Identity)
	return rec.Identity, nil
}

// Reap deletes expired records to bound table growth.
func (s *Service) Reap(ctx context.Context) error {
	removed, err := s.store.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("reap tokens: %w", err)
	}
	if removed > 0 {
		slog.Debug("Reaped expired emergency tokens", "removed", removed)
	}
	return nil
}

// GenerateToken creates an opaque token with crypto/rand.
func GenerateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash under which tokens are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}
