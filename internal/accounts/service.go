// Package accounts manages the user records the gating core needs: admin
// creation during bootstrap, credential checks, and the admin lookup used
// by the rate limiter exemption.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Account struct {
	ID        string
	Email     string
	Role      string
	CreatedAt time.Time
}

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// CreateAdmin inserts an administrator account. The unique constraint on
// email is the only guard against a concurrent insert racing the same
// identity; the loser gets ErrEmailExists.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, role, created_at`,
		email, hash, RoleAdmin)

	var acc Account
	var id uuid.UUID
	if err := row.Scan(&id, &acc.Email, &acc.Role, &acc.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrEmailExists
		}
		return Account{}, fmt.Errorf("create admin: %w", err)
	}
	acc.ID = id.String()

	return acc, nil
}

// Authenticate checks email/password and returns the account on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`, email)

	var acc Account
	var id uuid.UUID
	var hash string
	if err := row.Scan(&id, &acc.Email, &hash, &acc.Role, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}

	if !CheckPassword(password, hash) {
		return Account{}, ErrInvalidCredentials
	}
	acc.ID = id.String()

	return acc, nil
}

// IsAdmin reports whether the user holds the admin role. Unknown or
// malformed IDs are simply not admins.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	var role string
	row := s.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, parsed)
	if err := row.Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query role: %w", err)
	}
	return role == RoleAdmin, nil
}

// AdminExists reports whether any administrator account has been created.
func (s *Service) AdminExists(ctx context.Context) (bool, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, RoleAdmin)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}
