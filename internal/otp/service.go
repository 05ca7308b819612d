// Package otp issues and verifies short-lived single-use numeric codes
// bound to an identity.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMinInterval = 60 * time.Second

	codeSpace = 1000000 // 6 digits, 000000-999999
)

var (
	ErrThrottled       = errors.New("a code was issued too recently")
	ErrCodeNotFound    = errors.New("no code found for identity")
	ErrCodeExpired     = errors.New("code has expired")
	ErrCodeMismatch    = errors.New("code does not match")
	ErrAlreadyConsumed = errors.New("code has already been used")
)

type Code struct {
	Identity  string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// CodeStore persists code records. Consume must be a compare-and-set so
// concurrent verifications for the same code cannot both succeed.
type CodeStore interface {
	Latest(ctx context.Context, identity string) (*Code, error)
	Insert(ctx context.Context, code Code) error
	ConsumeOutstanding(ctx context.Context, identity string) error
	Consume(ctx context.Context, identity, codeHash string) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	TTL         time.Duration
	MinInterval time.Duration
}

type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

type Issuer struct {
	store       CodeStore
	ttl         time.Duration
	minInterval time.Duration
}

func NewIssuer(store CodeStore, cfg Config) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Issuer{
		store:       store,
		ttl:         cfg.TTL,
		minInterval: cfg.MinInterval,
	}
}

// Issue generates a fresh code for the identity, invalidating any prior
// outstanding code so at most one live code exists per identity. The
// plaintext code is returned only to the caller for dispatch; it is stored
// hashed.
func (i *Issuer) Issue(ctx context.Context, identity string) (*IssuedCode, error) {
	prior, err := i.store.Latest(ctx, identity)
	if err != nil && !errors.Is(err, ErrCodeNotFound) {
		return nil, fmt.Errorf("load prior code: %w", err)
	}

	now := time.Now()
	if prior != nil && !prior.Consumed && now.Before(prior.ExpiresAt) &&
		now.Sub(prior.CreatedAt) < i.minInterval {
		return nil, ErrThrottled
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	if err := i.store.ConsumeOutstanding(ctx, identity); err != nil {
		return nil, fmt.Errorf("invalidate prior codes: %w", err)
	}

	rec := Code{
		Identity:  identity,
		CodeHash:  HashCode(code),
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	slog.Info("One-time code issued", "identity", identity, "expires_at", rec.ExpiresAt)
	return &IssuedCode{Code: code, ExpiresAt: rec.ExpiresAt}, nil
}

// Verify checks the code against the identity's latest record and consumes
// it on success. A code verifies exactly once.
func (i *Issuer) Verify(ctx context.Context, identity, code string) error {
	rec, err := i.store.Latest(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("load code: %w", err)
	}

	if rec.Consumed {
		return ErrAlreadyConsumed
	}
	if time.Now().After(rec.ExpiresAt) {
		return ErrCodeExpired
	}
	if HashCode(code) != rec.CodeHash {
		return ErrCodeMismatch
	}

	consumed, err := i.store.Consume(ctx, identity, rec.CodeHash)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		// A concurrent verification won the race.
		return ErrAlreadyConsumed
	}

	slog.Info("One-time code verified", "identity", identity)
	return nil
}

// Reap deletes expired records to bound table growth.
func (i *Issuer) Reap(ctx context.Context) error {
	removed, err := i.store.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("reap codes: %w", err)
	}
	if removed > 0 {
		slog.Debug("Reaped expired one-time codes", "removed", removed)
	}
	return nil
}

// HashCode computes the SHA-256 hash under which codes are stored.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return fmt.Sprintf("%x", sum)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
