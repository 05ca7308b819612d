// Package systemlock guards administrative bootstrap behind a shared
// numeric PIN stored as a bcrypt hash.
package systemlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/captionloom/caption-server/internal/secrets"
)

// SecretKey is the single record in the secret store owned by this package.
const SecretKey = "system_lock_pin"

var (
	ErrInvalidFormat       = errors.New("pin must be 4-6 digits")
	ErrNotConfigured       = errors.New("system lock pin is not configured")
	ErrIncorrectCurrentPin = errors.New("current pin is incorrect")
)

// SecretStore is the slice of the secret store the lock needs.
type SecretStore interface {
	GetSecret(ctx context.Context, key string) (*secrets.HashedSecret, error)
	UpsertSecret(ctx context.Context, sec secrets.HashedSecret) error
	SetSecretActive(ctx context.Context, key string, active bool) error
}

type Status struct {
	Locked bool
	SetBy  string
	SetAt  time.Time
}

type Service struct {
	store SecretStore
}

func NewService(store SecretStore) *Service {
	return &Service{store: store}
}

// SetPin hashes and stores the PIN, overwriting any previous record.
func (s *Service) SetPin(ctx context.Context, pin, actor string) error {
	if !ValidPinFormat(pin) {
		return ErrInvalidFormat
	}

	hash, err := HashPin(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	err = s.store.UpsertSecret(ctx, secrets.HashedSecret{
		Key:    SecretKey,
		Hash:   hash,
		SetBy:  actor,
		SetAt:  time.Now(),
		Active: true,
	})
	if err != nil {
		return fmt.Errorf("store pin: %w", err)
	}

	slog.Info("System lock pin set", "actor", actor)
	return nil
}

// VerifyPin reports whether pin matches the active stored hash. A mismatch
// is not an error; errors mean the lock is unconfigured or the store failed.
func (s *Service) VerifyPin(ctx context.Context, pin string) (bool, error) {
	sec, err := s.store.GetSecret(ctx, SecretKey)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return false, ErrNotConfigured
		}
		return false, fmt.Errorf("load pin record: %w", err)
	}
	if !sec.Active {
		return false, ErrNotConfigured
	}

	return CheckPin(pin, sec.Hash), nil
}

// ChangePin rotates the PIN after verifying the current one.
func (s *Service) ChangePin(ctx context.Context, currentPin, newPin, actor string) error {
	ok, err := s.VerifyPin(ctx, currentPin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIncorrectCurrentPin
	}
	return s.SetPin(ctx, newPin, actor)
}

// Disable opens the gate without erasing the hash, so a later re-enable
// keeps the audit fields.
func (s *Service) Disable(ctx context.Context, actor string) error {
	err := s.store.SetSecretActive(ctx, SecretKey, false)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return ErrNotConfigured
		}
		return fmt.Errorf("disable pin: %w", err)
	}

	slog.Warn("System lock disabled", "actor", actor)
	return nil
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	sec, err := s.store.GetSecret(ctx, SecretKey)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return Status{Locked: false}, nil
		}
		return Status{}, fmt.Errorf("load pin record: %w", err)
	}

	return Status{
		Locked: sec.Active,
		SetBy:  sec.SetBy,
		SetAt:  sec.SetAt,
	}, nil
}
