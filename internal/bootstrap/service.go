// Package bootstrap orchestrates the three-step first-administrator
// protocol: PIN verification, one-time code issuance, then code-gated
// account creation. The flow is stateless between HTTP calls; the PIN is
// re-verified on every step and the only persisted gate is the code's
// single-use consumption.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/captionloom/caption-server/internal/accounts"
	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/mailer"
	"github.com/captionloom/caption-server/internal/otp"
	"github.com/captionloom/caption-server/internal/systemlock"
)

const mailTimeout = 10 * time.Second

// ErrPinMismatch means the lock is configured but the supplied PIN is
// wrong. Distinct from systemlock.ErrNotConfigured so operators can tell
// "nothing set up" from "wrong value".
var ErrPinMismatch = errors.New("pin does not match")

type PinVerifier interface {
	VerifyPin(ctx context.Context, pin string) (bool, error)
	Status(ctx context.Context) (systemlock.Status, error)
}

type CodeIssuer interface {
	Issue(ctx context.Context, identity string) (*otp.IssuedCode, error)
	Verify(ctx context.Context, identity, code string) error
}

type AccountCreator interface {
	CreateAdmin(ctx context.Context, email, password string) (accounts.Account, error)
	AdminExists(ctx context.Context) (bool, error)
}

type CodeRequestResult struct {
	ExpiresAt time.Time
	Delivered bool
}

type CreateAdminResult struct {
	Account      accounts.Account
	SessionToken string
}

type FlowStatus struct {
	PinConfigured bool
	AdminExists   bool
}

type Flow struct {
	lock      PinVerifier
	codes     CodeIssuer
	creator   AccountCreator
	mail      mailer.Sender
	jwtConfig auth.JWTConfig
}

func NewFlow(lock PinVerifier, codes CodeIssuer, creator AccountCreator, mail mailer.Sender, jwtConfig auth.JWTConfig) *Flow {
	return &Flow{
		lock:      lock,
		codes:     codes,
		creator:   creator,
		mail:      mail,
		jwtConfig: jwtConfig,
	}
}

// VerifyPin is step one: it proves knowledge of the PIN. Nothing is
// persisted; later steps re-verify.
func (f *Flow) VerifyPin(ctx context.Context, pin string) error {
	ok, err := f.lock.VerifyPin(ctx, pin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPinMismatch
	}
	return nil
}

// RequestCode is step two: re-verify the PIN, issue a code for the
// identity, and dispatch it by email. A failed dispatch does not roll back
// the code; it stays valid for its TTL and the caller can resend.
func (f *Flow) RequestCode(ctx context.Context, pin, identity string) (*CodeRequestResult, error) {
	if err := f.VerifyPin(ctx, pin); err != nil {
		return nil, err
	}

	issued, err := f.codes.Issue(ctx, identity)
	if err != nil {
		return nil, err
	}

	mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	delivered := f.mail.Send(mailCtx, identity,
		"Your administrator verification code",
		fmt.Sprintf("Your verification code is %s. It expires at %s.",
			issued.Code, issued.ExpiresAt.Format(time.RFC3339)))
	if !delivered {
		slog.Warn("Verification code email dispatch failed", "identity", identity)
	}

	return &CodeRequestResult{ExpiresAt: issued.ExpiresAt, Delivered: delivered}, nil
}

// CreateAdmin is step three: re-verify the PIN, consume the code, then
// insert the account. No admin record is ever written without both checks
// succeeding; replay protection rests on the code's single use.
func (f *Flow) CreateAdmin(ctx context.Context, pin, identity, code, password string) (*CreateAdminResult, error) {
	if err := f.VerifyPin(ctx, pin); err != nil {
		return nil, err
	}

	if err := f.codes.Verify(ctx, identity, code); err != nil {
		return nil, err
	}

	account, err := f.creator.CreateAdmin(ctx, identity, password)
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(f.jwtConfig, account.ID, account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	slog.Info("Administrator account created", "email", account.Email, "id", account.ID)
	return &CreateAdminResult{Account: account, SessionToken: token}, nil
}

// Status reports where the flow stands for the setup UI.
func (f *Flow) Status(ctx context.Context) (FlowStatus, error) {
	lockStatus, err := f.lock.Status(ctx)
	if err != nil {
		return FlowStatus{}, err
	}

	adminExists, err := f.creator.AdminExists(ctx)
	if err != nil {
		return FlowStatus{}, err
	}

	return FlowStatus{
		PinConfigured: lockStatus.Locked,
		AdminExists:   adminExists,
	}, nil
}
