package emergency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres-backed TokenStore. The conditional UPDATE in
// Consume guarantees single use under concurrent redemptions.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, token Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO emergency_tokens (token_hash, identity, created_at, expires_at, consumed)
		 VALUES ($1, $2, $3, $4, false)`,
		token.TokenHash, token.Identity, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *PgStore) GetByHash(ctx context.Context, tokenHash string) (*Token, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT token_hash, identity, created_at, expires_at, consumed
		 FROM emergency_tokens WHERE token_hash = $1`, tokenHash)

	var t Token
	if err := row.Scan(&t.TokenHash, &t.Identity, &t.CreatedAt, &t.ExpiresAt, &t.Consumed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &t, nil
}

func (s *PgStore) Consume(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE emergency_tokens SET consumed = true
		 WHERE token_hash = $1 AND consumed = false`, tokenHash)
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM emergency_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
